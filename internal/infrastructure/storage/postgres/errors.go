package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"payables/internal/core/apperror"
)

// PostgreSQL error codes the repos care about.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// TranslateConstraintError maps constraint violations onto application errors.
// A duplicate document number or allocation pair surfaces as a conflict, not
// an opaque database failure. Returns the original error unchanged when it is
// not a recognized constraint violation.
func TranslateConstraintError(err error, entity string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return apperror.NewConflict("duplicate value violates a unique constraint").
			WithDetail("entity", entity).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewConflict("record is referenced by other documents").
			WithDetail("entity", entity).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	default:
		return err
	}
}
