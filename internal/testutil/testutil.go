// Package testutil provides in-memory SQLite fixtures for unit tests.
//
// The SQL in this repo is portable between MySQL and SQLite, so the full
// stack (storage, coordinator, sync, transactions, HTTP) tests without a
// live server.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gamevault/gamevault/internal/registry"
	"github.com/gamevault/gamevault/internal/types"
)

// OpenDB opens an in-memory SQLite database with the full catalog schema.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?_timefmt=sqlite")
	if err != nil {
		t.Fatalf("failed to open SQLite test DB: %v", err)
	}
	// In-memory SQLite is per-connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range Schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create test schema: %v", err)
		}
	}
	return db
}

// Cluster is a three-node stand-in for the connection broker: one SQLite
// database per node, gated by the shared availability registry exactly
// like the real broker.
type Cluster struct {
	Registry *registry.Registry
	DBs      map[string]*sql.DB
}

// NewCluster opens a database per node with every node up.
func NewCluster(t testing.TB) *Cluster {
	t.Helper()
	c := &Cluster{Registry: registry.New(), DBs: make(map[string]*sql.DB)}
	for _, node := range types.Nodes {
		c.DBs[node] = OpenDB(t)
	}
	return c
}

// Get implements broker.Conns.
func (c *Cluster) Get(ctx context.Context, node string) (*sql.DB, error) {
	db, ok := c.DBs[node]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", node)
	}
	if !c.Registry.IsUp(node) {
		return nil, fmt.Errorf("node %s is marked down", node)
	}
	return db, nil
}

// Crash gates a node off without closing its database, so its data
// survives for a later Restore.
func (c *Cluster) Crash(node string) {
	_ = c.Registry.MarkDown(node, fmt.Errorf("administratively crashed"))
}

// Restore lifts the gate again.
func (c *Cluster) Restore(node string) {
	_ = c.Registry.MarkUp(node)
}

// GameColumnDefs is the catalog column list shared by the games table and
// both pending queues.
const GameColumnDefs = `
	app_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	release_date DATETIME,
	required_age INTEGER NOT NULL DEFAULT 0,
	price REAL NOT NULL DEFAULT 0,
	detailed_description TEXT NOT NULL DEFAULT '',
	about_game TEXT NOT NULL DEFAULT '',
	short_description TEXT NOT NULL DEFAULT '',
	reviews TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	support_url TEXT NOT NULL DEFAULT '',
	support_email TEXT NOT NULL DEFAULT '',
	header_image TEXT NOT NULL DEFAULT '',
	windows BOOLEAN NOT NULL DEFAULT 0,
	mac BOOLEAN NOT NULL DEFAULT 0,
	linux BOOLEAN NOT NULL DEFAULT 0,
	metacritic_score INTEGER NOT NULL DEFAULT 0,
	metacritic_url TEXT NOT NULL DEFAULT '',
	achievements INTEGER NOT NULL DEFAULT 0,
	recommendations INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	supported_languages TEXT NOT NULL DEFAULT '',
	full_audio_languages TEXT NOT NULL DEFAULT '',
	developers TEXT NOT NULL DEFAULT '',
	publishers TEXT NOT NULL DEFAULT '',
	categories TEXT NOT NULL DEFAULT '',
	genres TEXT NOT NULL DEFAULT '',
	screenshots TEXT NOT NULL DEFAULT '',
	movies TEXT NOT NULL DEFAULT '',
	user_score REAL NOT NULL DEFAULT 0,
	score_rank TEXT NOT NULL DEFAULT '',
	positive_reviews INTEGER NOT NULL DEFAULT 0,
	negative_reviews INTEGER NOT NULL DEFAULT 0,
	estimated_owners_min INTEGER NOT NULL DEFAULT 0,
	estimated_owners_max INTEGER NOT NULL DEFAULT 0,
	avg_playtime_forever INTEGER NOT NULL DEFAULT 0,
	avg_playtime_2weeks INTEGER NOT NULL DEFAULT 0,
	median_playtime_forever INTEGER NOT NULL DEFAULT 0,
	median_playtime_2weeks INTEGER NOT NULL DEFAULT 0,
	peak_ccu INTEGER NOT NULL DEFAULT 0,
	tags TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL`

// PendingColumnDefs extends GameColumnDefs with sync bookkeeping.
const PendingColumnDefs = GameColumnDefs + `,
	sync_status TEXT NOT NULL DEFAULT 'PENDING',
	enqueued_at DATETIME NOT NULL,
	last_sync_attempt DATETIME,
	sync_retries INTEGER NOT NULL DEFAULT 0,
	error_message TEXT`

// Schema creates every table the coordinator touches.
var Schema = []string{
	"CREATE TABLE games (" + GameColumnDefs + ")",
	"CREATE TABLE pending_windows_games (" + PendingColumnDefs + ")",
	"CREATE TABLE pending_multi_os_games (" + PendingColumnDefs + ")",
	`CREATE TABLE node_status (
		node_name TEXT PRIMARY KEY,
		is_available BOOLEAN NOT NULL DEFAULT 1,
		last_checked DATETIME NOT NULL,
		last_sync DATETIME,
		failure_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE transaction_log (
		log_id INTEGER PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		node_id INTEGER NOT NULL,
		operation TEXT NOT NULL,
		record_id INTEGER,
		old_data TEXT,
		new_data TEXT,
		timestamp DATETIME NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		processed BOOLEAN NOT NULL DEFAULT 0
	)`,
}

// Game builds a normalized record with the given id and platform flags.
func Game(appID int64, windows, mac, linux bool) *types.Game {
	g := &types.Game{
		AppID:       appID,
		Name:        "Alpha",
		RequiredAge: 0,
		Price:       9.99,
		AboutGame:   "x",
		Windows:     windows,
		Mac:         mac,
		Linux:       linux,
		Developers:  []string{"Sample Developer"},
		Publishers:  []string{"Sample Publisher"},
		Categories:  []string{"Single-player"},
		Genres:      []string{"Action"},
		Tags:        map[string]int{"Action": 10, "Adventure": 5},
	}
	release, _ := types.ParseReleaseDate("2024-01-15T00:00:00")
	g.ReleaseDate = release
	g.Normalize()
	return g
}
