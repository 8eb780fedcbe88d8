package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict reports a unique-constraint violation on the rework composite
// key: another writer inserted the same (card, content item, rework index)
// between the caller's load and save. Callers decide recovery; the
// classification is by SQLSTATE, never by matching error text.
var ErrConflict = errors.New("rework record already exists")

// unique_violation
const codeUniqueViolation = "23505"

func classifyConflict(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
