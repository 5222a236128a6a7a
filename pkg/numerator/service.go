// Package numerator implements document auto-numbering backed by PostgreSQL.
//
// Numbers follow the pattern PREFIX-YEARXXXXX (e.g. PAS-202500001). The next
// sequence is derived by scanning the highest existing number for the year,
// so generation must run inside the transaction that inserts the document.
// The unique constraint on the number column is the final arbiter: a race
// between two generators surfaces as a conflict on insert, never as a
// silently reused number.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"payables/internal/core/numerator"
)

// Querier is the minimal database surface the service needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierProvider resolves the querier for the current context. Wiring it to
// the transaction manager's GetQuerier keeps generation inside the caller's
// transaction.
type QuerierProvider func(ctx context.Context) Querier

var _ numerator.Generator = (*Service)(nil)

// Service generates sequential document numbers.
type Service struct {
	provider QuerierProvider
}

// New creates a numbering service with a static querier.
// Use for testing scenarios.
func New(querier Querier) *Service {
	return &Service{provider: func(context.Context) Querier { return querier }}
}

// NewWithProvider creates a numbering service that resolves its querier per
// call, typically from the transaction in context.
func NewWithProvider(provider QuerierProvider) *Service {
	return &Service{provider: provider}
}

// NextNumber generates the next document number for the period's year.
func (s *Service) NextNumber(ctx context.Context, cfg numerator.Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	yearPrefix := fmt.Sprintf("%s-%s", cfg.Prefix, period.Format("2006"))

	last, err := s.scanMax(ctx, cfg, yearPrefix)
	if err != nil {
		return "", err
	}

	return formatNumber(cfg, yearPrefix, last+1), nil
}

// scanMax returns the highest sequence already issued under the year prefix,
// or 0 when the year has no documents yet.
func (s *Service) scanMax(ctx context.Context, cfg numerator.Config, yearPrefix string) (int64, error) {
	// Lexicographic MAX works because all numbers under one prefix share
	// the same fixed width.
	sql := fmt.Sprintf(
		"SELECT COALESCE(MAX(%s), '') FROM %s WHERE %s LIKE $1",
		cfg.Column, cfg.Table, cfg.Column,
	)

	var max string
	if err := s.provider(ctx).QueryRow(ctx, sql, yearPrefix+"%").Scan(&max); err != nil {
		return 0, fmt.Errorf("scan max number: %w", err)
	}
	if max == "" {
		return 0, nil
	}

	seq := ParseSequence(max, yearPrefix)
	if seq < 0 {
		return 0, fmt.Errorf("malformed document number %q", max)
	}
	return seq, nil
}

func formatNumber(cfg numerator.Config, yearPrefix string, seq int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	return fmt.Sprintf("%s%0*d", yearPrefix, padWidth, seq)
}

// ParseSequence extracts the sequence part of a formatted number.
// Returns -1 when the number does not match the prefix.
func ParseSequence(formatted, yearPrefix string) int64 {
	rest, ok := strings.CutPrefix(formatted, yearPrefix)
	if !ok || rest == "" {
		return -1
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return -1
	}
	return seq
}
