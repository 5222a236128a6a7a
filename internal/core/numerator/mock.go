// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGenerator is a test implementation of Generator.
// Use in unit tests to avoid database dependencies.
type MockGenerator struct {
	NextNumberFunc func(ctx context.Context, cfg Config, period time.Time) (string, error)

	mu   sync.Mutex
	seqs map[string]int64
}

// NextNumber implements Generator.
func (m *MockGenerator) NextNumber(ctx context.Context, cfg Config, period time.Time) (string, error) {
	if m.NextNumberFunc != nil {
		return m.NextNumberFunc(ctx, cfg, period)
	}

	// Default: predictable in-memory sequence per prefix+year
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqs == nil {
		m.seqs = make(map[string]int64)
	}
	key := fmt.Sprintf("%s_%d", cfg.Prefix, period.Year())
	m.seqs[key]++
	width := cfg.PadWidth
	if width <= 0 {
		width = 5
	}
	return fmt.Sprintf("%s-%d%0*d", cfg.Prefix, period.Year(), width, m.seqs[key]), nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
