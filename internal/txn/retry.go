package txn

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gamevault/gamevault/internal/debug"
	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/types"
)

// RetryManager replays PENDING and FAILED journal rows once their node is
// reachable again.
type RetryManager struct {
	manager  *Manager
	interval time.Duration
}

func NewRetryManager(manager *Manager, interval time.Duration) *RetryManager {
	return &RetryManager{manager: manager, interval: interval}
}

// Run replays the journal every interval until the context is canceled.
func (r *RetryManager) Run(ctx context.Context) error {
	debug.Daemonf("txn-retry", "starting, interval %s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			debug.Daemonf("txn-retry", "stopping")
			return nil
		case <-ticker.C:
			if err := r.ReplayAll(ctx); err != nil {
				debug.Daemonf("txn-retry", "cycle skipped: %v", err)
			}
		}
	}
}

// ReplayAll walks the unprocessed journal rows oldest first and re-runs
// each on its node. Rows whose node is still down are left untouched;
// rows that fail again keep their status and get a fresh error message.
func (r *RetryManager) ReplayAll(ctx context.Context) error {
	m := r.manager
	master, err := m.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return fmt.Errorf("master connection: %w", err)
	}
	entries, err := storage.ListUnprocessedTxLogs(ctx, master)
	if err != nil {
		return err
	}
	for _, e := range entries {
		node, err := types.NodeName(e.NodeID)
		if err != nil {
			debug.Daemonf("txn-retry", "row %d: %v", e.LogID, err)
			continue
		}
		if !m.reg.IsUp(node) {
			continue
		}
		db, err := m.conns.Get(ctx, node)
		if err != nil {
			continue
		}
		if err := r.replay(ctx, db, e); err != nil {
			debug.Daemonf("txn-retry", "tx %s on %s: %v", e.TransactionID, node, err)
			if serr := storage.SetTxLogError(ctx, master, e.LogID, err); serr != nil {
				debug.Daemonf("txn-retry", "recording error for row %d: %v", e.LogID, serr)
			}
			m.counters.RecordTxReplay(ctx, false)
			continue
		}
		if err := storage.MarkTxLogCommitted(ctx, master, e.LogID); err != nil {
			debug.Daemonf("txn-retry", "marking row %d committed: %v", e.LogID, err)
			continue
		}
		m.counters.RecordTxReplay(ctx, true)
		debug.Daemonf("txn-retry", "replayed tx %s (%s) on %s", e.TransactionID, e.Operation, node)
	}
	return nil
}

// replay re-runs one journal row inside a transaction. Replays are
// idempotent: an insert that collides with an existing id, or an update
// or delete whose row is already gone, counts as converged.
func (r *RetryManager) replay(ctx context.Context, db *sql.DB, e *types.TxLogEntry) error {
	return r.manager.execute(ctx, db, func(tx *sql.Tx) error {
		switch e.Operation {
		case types.TxInsert:
			g, err := decodeSnapshot(e.NewData)
			if err != nil {
				return err
			}
			if err := storage.InsertGame(ctx, tx, g); err != nil && !storage.IsDuplicateKey(err) {
				return err
			}
			return nil
		case types.TxUpdate:
			g, err := decodeSnapshot(e.NewData)
			if err != nil {
				return err
			}
			if e.RecordID != nil {
				g.AppID = *e.RecordID
			}
			if err := storage.UpdateGame(ctx, tx, g); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			return nil
		case types.TxDelete:
			if e.RecordID == nil {
				return fmt.Errorf("delete row %d has no record id", e.LogID)
			}
			if err := storage.DeleteGame(ctx, tx, *e.RecordID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			return nil
		}
		return fmt.Errorf("unknown operation %q", e.Operation)
	})
}

func decodeSnapshot(data string) (*types.Game, error) {
	if data == "" {
		return nil, fmt.Errorf("journal row has no snapshot")
	}
	var g types.Game
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &g, nil
}
