package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Unique violation SQLSTATE.
const uniqueViolation = "23505"

// UniqueViolation reports whether err is a unique-constraint violation and
// names the violated constraint or index.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

