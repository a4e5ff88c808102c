// Package broker owns the per-node database handles.
//
// One *sql.DB per node, opened lazily and reused. A handle is only handed
// out when the registry reports the node up AND a ping succeeds; callers
// therefore never see a half-dead connection on the hot path. Crash and
// restore are administrative operations that close or reopen the handle
// and drive the registry.
package broker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/gamevault/gamevault/internal/debug"
	"github.com/gamevault/gamevault/internal/registry"
	"github.com/gamevault/gamevault/internal/types"
)

// ErrNodeDown is returned when a node is gated off or unreachable.
var ErrNodeDown = errors.New("node is down")

// NodeConfig holds the connection endpoint for one node.
type NodeConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// DSN builds the MySQL connection string for the node.
// parseTime makes DATETIME columns scan into time.Time.
func (c NodeConfig) DSN() string {
	userPart := c.User
	if c.Password != "" {
		userPart = fmt.Sprintf("%s:%s", c.User, c.Password)
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC", userPart, c.Host, c.Port, c.Database)
}

// Conns is the connection surface consumed by the coordinator, the sync
// service, the transaction manager and the monitor. *Broker satisfies it;
// tests substitute an in-memory implementation.
type Conns interface {
	// Get returns a usable handle iff the node is marked up and pingable.
	Get(ctx context.Context, node string) (*sql.DB, error)
}

// Broker implements Conns over real MySQL-protocol nodes.
type Broker struct {
	mu   sync.Mutex
	reg  *registry.Registry
	cfgs map[string]NodeConfig
	dbs  map[string]*sql.DB

	// openFn is swapped in unit tests to hand out SQLite handles.
	openFn func(cfg NodeConfig) (*sql.DB, error)
}

// New creates a broker for the configured nodes. Handles open lazily on
// first Get.
func New(reg *registry.Registry, cfgs map[string]NodeConfig) *Broker {
	return &Broker{
		reg:    reg,
		cfgs:   cfgs,
		dbs:    make(map[string]*sql.DB, len(cfgs)),
		openFn: openMySQL,
	}
}

// NewWithOpen creates a broker that opens handles with a custom open
// function instead of the MySQL driver. Used by tests to run the full
// stack over in-memory SQLite.
func NewWithOpen(reg *registry.Registry, cfgs map[string]NodeConfig, open func(cfg NodeConfig) (*sql.DB, error)) *Broker {
	b := New(reg, cfgs)
	b.openFn = open
	return b
}

func openMySQL(cfg NodeConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Get returns the node's handle iff the registry reports it up and a ping
// succeeds. The handle is reused across calls.
func (b *Broker) Get(ctx context.Context, node string) (*sql.DB, error) {
	if !types.IsValidNode(node) {
		return nil, fmt.Errorf("%w: %s", registry.ErrInvalidNode, node)
	}
	if !b.reg.IsUp(node) {
		return nil, fmt.Errorf("%w: %s", ErrNodeDown, node)
	}
	db, err := b.ensureOpen(node)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		debug.Logf("broker: ping %s failed: %v\n", node, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrNodeDown, node, err)
	}
	return db, nil
}

// ensureOpen opens the node's handle if needed and returns it.
func (b *Broker) ensureOpen(node string) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if db, ok := b.dbs[node]; ok {
		return db, nil
	}
	cfg, ok := b.cfgs[node]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no endpoint configured", registry.ErrInvalidNode, node)
	}
	db, err := b.openFn(cfg)
	if err != nil {
		return nil, err
	}
	b.dbs[node] = db
	return db, nil
}

// Crash simulates a node failure: the handle is closed and the registry
// gate shut. Invalid names fail with ErrInvalidNode.
func (b *Broker) Crash(node string) error {
	if !types.IsValidNode(node) {
		return fmt.Errorf("%w: %s", registry.ErrInvalidNode, node)
	}
	if err := b.reg.MarkDown(node, errors.New("node crashed")); err != nil {
		return err
	}
	b.close(node)
	debug.Logf("broker: node %s crashed\n", node)
	return nil
}

// Restore reopens a crashed node: the handle is recreated (reuse-if-open),
// pinged, and on success the registry gate opens again. A restore that
// cannot reach the node leaves it down and returns the ping error.
func (b *Broker) Restore(ctx context.Context, node string) error {
	if !types.IsValidNode(node) {
		return fmt.Errorf("%w: %s", registry.ErrInvalidNode, node)
	}
	db, err := b.ensureOpen(node)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = b.reg.MarkDown(node, err)
		return fmt.Errorf("failed to restore %s: %w", node, err)
	}
	if err := b.reg.MarkUp(node); err != nil {
		return err
	}
	debug.Logf("broker: node %s restored\n", node)
	return nil
}

// close tears down one handle. Safe when the handle was never opened.
func (b *Broker) close(node string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if db, ok := b.dbs[node]; ok {
		_ = db.Close()
		delete(b.dbs, node)
	}
}

// CloseAll tears down every handle. Called once on shutdown after the
// background loops have drained.
func (b *Broker) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for node, db := range b.dbs {
		_ = db.Close()
		delete(b.dbs, node)
	}
}
