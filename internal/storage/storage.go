// Package storage is the SQL persistence layer for the catalog.
//
// Every operation takes an explicit connection parameter: records are pure
// data and the target database is chosen per call, never bound to a model.
// Serialization of multi-valued columns (comma-joined text) and the tag
// blob happens here, at the persistence boundary, and nowhere else.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx, so the same queries run
// standalone or inside a transaction manager transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IsDuplicateKey reports whether err is a primary-key collision.
// MySQL reports error 1062; SQLite reports a UNIQUE constraint violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint")
}
