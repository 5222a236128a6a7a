package numerator

// Config holds numbering configuration for one document type.
type Config struct {
	// Prefix added to all numbers (e.g., "PAS", "SINV", "EXP")
	Prefix string

	// Table and Column locate the existing numbers to scan.
	Table  string
	Column string

	// PadWidth is the minimum sequence width (default 5)
	PadWidth int
}

// DefaultConfig returns sensible defaults for a document table.
func DefaultConfig(prefix, table, column string) Config {
	return Config{
		Prefix:   prefix,
		Table:    table,
		Column:   column,
		PadWidth: 5,
	}
}
