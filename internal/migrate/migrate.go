// Package migrate provisions the cluster schema.
//
// The master carries the full catalog (games, both pending queues,
// node_status, transaction_log); each slave carries only its games
// partition. Migration is destructive: existing tables are dropped first
// so every run starts from a clean slate.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gamevault/gamevault/internal/broker"
	"github.com/gamevault/gamevault/internal/debug"
	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/types"
)

// Registry is the availability view the migrator needs.
type Registry interface {
	IsUp(name string) bool
}

// Dialect supplies role-specific DDL. Production uses MySQL; tests swap
// in SQLite.
type Dialect interface {
	CreateMaster() []string
	CreateSlave() []string
	DropMaster() []string
	DropSlave() []string
}

// Migrator provisions schema across the reachable nodes.
type Migrator struct {
	conns   broker.Conns
	reg     Registry
	dialect Dialect
}

func New(conns broker.Conns, reg Registry, dialect Dialect) *Migrator {
	return &Migrator{conns: conns, reg: reg, dialect: dialect}
}

// Run migrates the whole cluster. The master must be reachable; a down
// slave is skipped with a log line and picks up its schema on the next
// run. Drop errors are swallowed so a first run against empty databases
// succeeds.
func (m *Migrator) Run(ctx context.Context) error {
	master, err := m.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return fmt.Errorf("master node must be available for migrations: %w", err)
	}

	m.dropAll(ctx, master)

	if err := m.apply(ctx, master, m.dialect.CreateMaster()); err != nil {
		return fmt.Errorf("master migration: %w", err)
	}
	for _, node := range types.Nodes {
		if err := storage.SeedNodeStatus(ctx, master, node); err != nil {
			return fmt.Errorf("seeding node_status for %s: %w", node, err)
		}
	}
	debug.Logf("migrate: master schema created\n")

	for _, node := range []string{types.NodeSlaveA, types.NodeSlaveB} {
		if !m.reg.IsUp(node) {
			debug.Daemonf("migrate", "%s is down, skipping migrations", node)
			continue
		}
		slave, err := m.conns.Get(ctx, node)
		if err != nil {
			debug.Daemonf("migrate", "%s is down, skipping migrations: %v", node, err)
			continue
		}
		if err := m.apply(ctx, slave, m.dialect.CreateSlave()); err != nil {
			return fmt.Errorf("%s migration: %w", node, err)
		}
		debug.Logf("migrate: %s schema created\n", node)
	}
	return nil
}

// Rollback drops a single node's tables.
func (m *Migrator) Rollback(ctx context.Context, node string) error {
	db, err := m.conns.Get(ctx, node)
	if err != nil {
		return fmt.Errorf("rollback %s: %w", node, err)
	}
	stmts := m.dialect.DropSlave()
	if node == types.NodeMaster {
		stmts = m.dialect.DropMaster()
	}
	if err := m.apply(ctx, db, stmts); err != nil {
		return fmt.Errorf("rollback %s: %w", node, err)
	}
	return nil
}

// dropAll clears existing tables everywhere reachable, ignoring errors.
func (m *Migrator) dropAll(ctx context.Context, master *sql.DB) {
	for _, stmt := range m.dialect.DropMaster() {
		if _, err := master.ExecContext(ctx, stmt); err != nil {
			debug.Logf("migrate: drop on master: %v\n", err)
		}
	}
	for _, node := range []string{types.NodeSlaveA, types.NodeSlaveB} {
		if !m.reg.IsUp(node) {
			continue
		}
		slave, err := m.conns.Get(ctx, node)
		if err != nil {
			continue
		}
		for _, stmt := range m.dialect.DropSlave() {
			if _, err := slave.ExecContext(ctx, stmt); err != nil {
				debug.Logf("migrate: drop on %s: %v\n", node, err)
			}
		}
	}
}

func (m *Migrator) apply(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
