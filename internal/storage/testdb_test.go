package storage

import (
	"database/sql"
	"testing"

	"github.com/gamevault/gamevault/internal/testutil"
	"github.com/gamevault/gamevault/internal/types"
)

// newTestDB opens an in-memory SQLite database with the catalog schema.
// The SQL in this package is portable between MySQL and SQLite, so unit
// tests run without a live server.
func newTestDB(t *testing.T) *sql.DB {
	return testutil.OpenDB(t)
}

// testGame builds a normalized Windows-only record with the given id.
func testGame(appID int64) *types.Game {
	return testutil.Game(appID, true, false, false)
}
