// Package txn is the transaction-logged variant of the write path.
//
// Unlike the coordinator's pending queues, which park whole records for a
// single slave, the transaction manager runs each operation inside an
// explicit database transaction on every target node and journals the
// outcome per node in the master's transaction_log. Offline nodes get a
// PENDING journal row carrying full before/after snapshots; the retry
// loop replays those rows once the node returns.
package txn

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gamevault/gamevault/internal/broker"
	"github.com/gamevault/gamevault/internal/debug"
	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/telemetry"
	"github.com/gamevault/gamevault/internal/types"
)

// ErrGameNotFound is returned when an update or delete names a record the
// master does not have.
var ErrGameNotFound = errors.New("game not found on master")

// Registry is the availability view the manager needs.
type Registry interface {
	IsUp(name string) bool
}

// Manager executes journaled multi-node operations.
type Manager struct {
	conns     broker.Conns
	reg       Registry
	isolation sql.IsolationLevel
	counters  *telemetry.Counters
}

func New(conns broker.Conns, reg Registry) *Manager {
	return &Manager{
		conns:     conns,
		reg:       reg,
		isolation: sql.LevelRepeatableRead,
		counters:  telemetry.NewCounters(),
	}
}

// isolationLevels maps the configurable names onto database/sql levels.
var isolationLevels = map[types.IsolationLevel]sql.IsolationLevel{
	types.ReadUncommitted: sql.LevelReadUncommitted,
	types.ReadCommitted:   sql.LevelReadCommitted,
	types.RepeatableRead:  sql.LevelRepeatableRead,
	types.Serializable:    sql.LevelSerializable,
}

// SetIsolationLevel switches the level used for subsequent operations.
func (m *Manager) SetIsolationLevel(level types.IsolationLevel) error {
	mapped, ok := isolationLevels[level]
	if !ok {
		return fmt.Errorf("invalid isolation level %q", level)
	}
	m.isolation = mapped
	return nil
}

// targetNodes returns the nodes an insert or update touches: the master
// always, plus the partition the platform flags route to.
func targetNodes(g *types.Game) []string {
	nodes := []string{types.NodeMaster}
	if node := g.RouteTarget().Node(); node != "" {
		nodes = append(nodes, node)
	}
	return nodes
}

// snapshot serializes a record for the journal.
func snapshot(g *types.Game) string {
	if g == nil {
		return ""
	}
	data, err := json.Marshal(g)
	if err != nil {
		debug.Logf("txn: snapshot of game %d: %v\n", g.AppID, err)
		return ""
	}
	return string(data)
}

// journal appends one per-node outcome row on the master. Journal
// failures are fatal for the operation; without the row a PENDING write
// would be lost.
func (m *Manager) journal(ctx context.Context, txID string, op types.TxOperation, node string,
	recordID *int64, oldData, newData string, status types.TxStatus, cause error) error {

	master, err := m.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return fmt.Errorf("journal unreachable: %w", err)
	}
	nodeID, err := types.NodeID(node)
	if err != nil {
		return err
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	entry := &types.TxLogEntry{
		TransactionID: txID,
		NodeID:        nodeID,
		Operation:     op,
		RecordID:      recordID,
		OldData:       oldData,
		NewData:       newData,
		Status:        status,
		ErrorMessage:  msg,
	}
	return storage.AppendTxLog(ctx, master, entry)
}

// execute runs fn inside an explicit transaction at the configured
// isolation level.
func (m *Manager) execute(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: m.isolation})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateGame inserts the record on the master and its partition, one
// journaled transaction per node. It reports the transaction id and
// whether every node committed; offline and failed nodes are journaled
// for replay and do not abort the remaining nodes.
func (m *Manager) CreateGame(ctx context.Context, g *types.Game) (string, bool, error) {
	txID := uuid.NewString()
	newData := snapshot(g)
	ok := true

	for _, node := range targetNodes(g) {
		db, err := m.conns.Get(ctx, node)
		if err != nil {
			ok = false
			if jerr := m.journal(ctx, txID, types.TxInsert, node, nil, "", newData, types.TxPending, fmt.Errorf("node offline: %v", err)); jerr != nil {
				return txID, false, jerr
			}
			continue
		}
		err = m.execute(ctx, db, func(tx *sql.Tx) error {
			return storage.InsertGame(ctx, tx, g)
		})
		if err != nil {
			ok = false
			debug.Logf("txn %s: insert on %s: %v\n", txID, node, err)
			if jerr := m.journal(ctx, txID, types.TxInsert, node, nil, "", newData, types.TxFailed, err); jerr != nil {
				return txID, false, jerr
			}
			continue
		}
		recordID := g.AppID
		if jerr := m.journal(ctx, txID, types.TxInsert, node, &recordID, "", newData, types.TxCommitted, nil); jerr != nil {
			return txID, false, jerr
		}
	}
	return txID, ok, nil
}

// UpdateGame applies the new record on every target node. The previous
// master copy is journaled as old_data so failed nodes can be audited and
// replayed.
func (m *Manager) UpdateGame(ctx context.Context, appID int64, g *types.Game) (string, bool, error) {
	txID := uuid.NewString()

	master, err := m.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return txID, false, fmt.Errorf("master connection: %w", err)
	}
	old, err := storage.GetGame(ctx, master, appID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return txID, false, ErrGameNotFound
		}
		return txID, false, err
	}

	g.AppID = appID
	oldData, newData := snapshot(old), snapshot(g)
	ok := true

	for _, node := range targetNodes(g) {
		db, err := m.conns.Get(ctx, node)
		if err != nil {
			ok = false
			if jerr := m.journal(ctx, txID, types.TxUpdate, node, &appID, oldData, newData, types.TxPending, fmt.Errorf("node offline: %v", err)); jerr != nil {
				return txID, false, jerr
			}
			continue
		}
		err = m.execute(ctx, db, func(tx *sql.Tx) error {
			return storage.UpdateGame(ctx, tx, g)
		})
		if err != nil {
			ok = false
			debug.Logf("txn %s: update on %s: %v\n", txID, node, err)
			if jerr := m.journal(ctx, txID, types.TxUpdate, node, &appID, oldData, newData, types.TxFailed, err); jerr != nil {
				return txID, false, jerr
			}
			continue
		}
		if jerr := m.journal(ctx, txID, types.TxUpdate, node, &appID, oldData, newData, types.TxCommitted, nil); jerr != nil {
			return txID, false, jerr
		}
	}
	return txID, ok, nil
}

// DeleteGame removes the record from all three nodes. Nodes that never
// held the id fail their journal row; replay treats the missing row as
// converged.
func (m *Manager) DeleteGame(ctx context.Context, appID int64) (string, bool, error) {
	txID := uuid.NewString()

	master, err := m.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return txID, false, fmt.Errorf("master connection: %w", err)
	}
	old, err := storage.GetGame(ctx, master, appID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return txID, false, ErrGameNotFound
		}
		return txID, false, err
	}
	oldData := snapshot(old)
	ok := true

	for _, node := range types.Nodes {
		db, err := m.conns.Get(ctx, node)
		if err != nil {
			ok = false
			if jerr := m.journal(ctx, txID, types.TxDelete, node, &appID, oldData, "", types.TxPending, fmt.Errorf("node offline: %v", err)); jerr != nil {
				return txID, false, jerr
			}
			continue
		}
		err = m.execute(ctx, db, func(tx *sql.Tx) error {
			return storage.DeleteGame(ctx, tx, appID)
		})
		if err != nil {
			ok = false
			debug.Logf("txn %s: delete on %s: %v\n", txID, node, err)
			if jerr := m.journal(ctx, txID, types.TxDelete, node, &appID, oldData, "", types.TxFailed, err); jerr != nil {
				return txID, false, jerr
			}
			continue
		}
		if jerr := m.journal(ctx, txID, types.TxDelete, node, &appID, oldData, "", types.TxCommitted, nil); jerr != nil {
			return txID, false, jerr
		}
	}
	return txID, ok, nil
}

// ReadGame fetches a record from the master.
func (m *Manager) ReadGame(ctx context.Context, appID int64) (*types.Game, error) {
	master, err := m.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return nil, fmt.Errorf("master connection: %w", err)
	}
	g, err := storage.GetGame(ctx, master, appID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	return g, err
}
