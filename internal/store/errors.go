// Package store holds persistence error types shared by the pgx-backed
// repositories.
package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the repositories care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// PersistenceError reports an unrecoverable storage failure. Callers decide
// on retries; the repositories never retry on their own.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err with the failing operation name.
func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// rejection. The resolvers treat this as a lost lookup-then-insert race.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsIntegrityViolation reports whether err is a foreign-key or check
// rejection, returning the violated constraint name when it is.
func IsIntegrityViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) &&
		(pgErr.Code == codeForeignKeyViolation || pgErr.Code == codeCheckViolation) {
		return pgErr.ConstraintName, true
	}
	return "", false
}
