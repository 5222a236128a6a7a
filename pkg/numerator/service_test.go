package numerator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"payables/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val string
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*string); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	maxNumber string
	err       error
	lastSQL   string
	lastArgs  []any
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.lastSQL = sql
	m.lastArgs = args
	return &mockRow{val: m.maxNumber, err: m.err}
}

func testConfig() numerator.Config {
	return numerator.DefaultConfig("PAS", "accrued_liabilities", "liability_number")
}

func TestNextNumberFirstOfYear(t *testing.T) {
	querier := &mockQuerier{maxNumber: ""}
	svc := New(querier)

	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	got, err := svc.NextNumber(context.Background(), testConfig(), period)
	if err != nil {
		t.Fatalf("NextNumber: %v", err)
	}
	if got != "PAS-202600001" {
		t.Errorf("got %q, want PAS-202600001", got)
	}

	if len(querier.lastArgs) != 1 || querier.lastArgs[0] != "PAS-2026%" {
		t.Errorf("scan pattern = %v, want [PAS-2026%%]", querier.lastArgs)
	}
}

func TestNextNumberIncrements(t *testing.T) {
	querier := &mockQuerier{maxNumber: "PAS-202600041"}
	svc := New(querier)

	period := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	got, err := svc.NextNumber(context.Background(), testConfig(), period)
	if err != nil {
		t.Fatalf("NextNumber: %v", err)
	}
	if got != "PAS-202600042" {
		t.Errorf("got %q, want PAS-202600042", got)
	}
}

func TestNextNumberResetsAcrossYears(t *testing.T) {
	// The LIKE pattern scopes the scan to the period's year, so a new year
	// starts back at 1 regardless of prior volumes.
	querier := &mockQuerier{maxNumber: ""}
	svc := New(querier)

	period := time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
	got, err := svc.NextNumber(context.Background(), testConfig(), period)
	if err != nil {
		t.Fatalf("NextNumber: %v", err)
	}
	if got != "PAS-202700001" {
		t.Errorf("got %q, want PAS-202700001", got)
	}
}

func TestNextNumberWideSequence(t *testing.T) {
	// Sequences past the pad width keep growing instead of wrapping.
	querier := &mockQuerier{maxNumber: "PAS-2026123456"}
	svc := New(querier)

	period := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := svc.NextNumber(context.Background(), testConfig(), period)
	if err != nil {
		t.Fatalf("NextNumber: %v", err)
	}
	if got != "PAS-2026123457" {
		t.Errorf("got %q, want PAS-2026123457", got)
	}
}

func TestNextNumberMalformedExisting(t *testing.T) {
	querier := &mockQuerier{maxNumber: "PAS-2026-XYZ"}
	svc := New(querier)

	period := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.NextNumber(context.Background(), testConfig(), period); err == nil {
		t.Fatal("expected error for malformed stored number")
	}
}

func TestNextNumberQueryError(t *testing.T) {
	querier := &mockQuerier{err: errors.New("connection lost")}
	svc := New(querier)

	if _, err := svc.NextNumber(context.Background(), testConfig(), time.Now()); err == nil {
		t.Fatal("expected error when scan fails")
	}
}

func TestParseSequence(t *testing.T) {
	tests := []struct {
		name      string
		formatted string
		prefix    string
		want      int64
	}{
		{"standard", "SINV-202600007", "SINV-2026", 7},
		{"wide", "EXP-2026123456", "EXP-2026", 123456},
		{"wrong prefix", "SINV-202600007", "EXP-2026", -1},
		{"no sequence", "SINV-2026", "SINV-2026", -1},
		{"garbage", "SINV-2026abc", "SINV-2026", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseSequence(tt.formatted, tt.prefix); got != tt.want {
				t.Errorf("ParseSequence(%q, %q) = %d, want %d", tt.formatted, tt.prefix, got, tt.want)
			}
		})
	}
}
