package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE raised when a unique constraint is broken.
const uniqueViolation = pq.ErrorCode("23505")

// mapError translates driver errors into repository sentinels so callers never
// depend on lib/pq. op is used as the wrapping message.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, repositories.ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectOneRow turns a zero RowsAffected into notFound.
func expectOneRow(op string, result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get rows affected: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
