// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"time"
)

// Generator generates sequential document numbers.
// This is the domain contract - implementations live in infrastructure layer.
//
// Numbers are derived from the highest existing number for the current year
// prefix, so generation must run inside the caller's transaction. A duplicate
// number raised by the unique constraint on insert surfaces as a Conflict and
// is never silently resolved.
type Generator interface {
	// NextNumber generates the next document number.
	// Pattern: PREFIX-YEARXXXXX (e.g., PAS-202500001)
	NextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
}
