package txn

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/testutil"
	"github.com/gamevault/gamevault/internal/types"
)

// newManager builds a manager over the SQLite cluster. SQLite only
// supports its default isolation, so tests run at LevelDefault; the
// level mapping itself is covered separately.
func newManager(cluster *testutil.Cluster) *Manager {
	m := New(cluster, cluster.Registry)
	m.isolation = sql.LevelDefault
	return m
}

func TestSetIsolationLevel(t *testing.T) {
	m := New(testutil.NewCluster(t), nil)
	for _, level := range []types.IsolationLevel{
		types.ReadUncommitted, types.ReadCommitted, types.RepeatableRead, types.Serializable,
	} {
		if err := m.SetIsolationLevel(level); err != nil {
			t.Errorf("SetIsolationLevel(%s): %v", level, err)
		}
	}
	if err := m.SetIsolationLevel("SNAPSHOT"); err == nil {
		t.Error("invalid level should be rejected")
	}
}

func TestCreateGameJournalsCommits(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)
	ctx := context.Background()

	txID, ok, err := m.CreateGame(ctx, testutil.Game(1, true, false, false))
	if err != nil || !ok {
		t.Fatalf("CreateGame = %v, ok=%v", err, ok)
	}
	if txID == "" {
		t.Error("transaction id should be assigned")
	}

	for _, node := range []string{types.NodeMaster, types.NodeSlaveA} {
		exists, err := storage.GameExists(ctx, cluster.DBs[node], 1)
		if err != nil || !exists {
			t.Errorf("game on %s = %v, %v", node, exists, err)
		}
	}

	master := cluster.DBs[types.NodeMaster]
	n, err := storage.CountTxLogsByStatus(ctx, master, types.TxCommitted)
	if err != nil || n != 2 {
		t.Errorf("committed journal rows = %d, %v; want 2", n, err)
	}
	rows, err := storage.ListUnprocessedTxLogs(ctx, master)
	if err != nil || len(rows) != 0 {
		t.Errorf("unprocessed rows = %d, %v; want 0", len(rows), err)
	}
}

func TestCreateGameOfflineNodeJournalsPending(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)
	ctx := context.Background()
	cluster.Crash(types.NodeSlaveA)

	_, ok, err := m.CreateGame(ctx, testutil.Game(1, true, false, false))
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if ok {
		t.Error("offline partition should report partial success")
	}

	master := cluster.DBs[types.NodeMaster]
	rows, err := storage.ListUnprocessedTxLogs(ctx, master)
	if err != nil || len(rows) != 1 {
		t.Fatalf("unprocessed rows = %d, %v; want 1", len(rows), err)
	}
	e := rows[0]
	if e.Status != types.TxPending || e.Operation != types.TxInsert {
		t.Errorf("journal row = %+v", e)
	}
	if node, _ := types.NodeName(e.NodeID); node != types.NodeSlaveA {
		t.Errorf("journal node = %d", e.NodeID)
	}
	if e.NewData == "" {
		t.Error("PENDING insert must carry the record snapshot")
	}
	if e.ErrorMessage == "" {
		t.Error("offline reason should be recorded")
	}
}

func TestReplayDeliversAfterRestore(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)
	r := NewRetryManager(m, 0)
	ctx := context.Background()

	cluster.Crash(types.NodeSlaveA)
	if _, _, err := m.CreateGame(ctx, testutil.Game(1, true, false, false)); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	// Still down: the row must be left for a later cycle.
	if err := r.ReplayAll(ctx); err != nil {
		t.Fatalf("ReplayAll: %v", err)
	}
	master := cluster.DBs[types.NodeMaster]
	rows, _ := storage.ListUnprocessedTxLogs(ctx, master)
	if len(rows) != 1 || rows[0].Status != types.TxPending {
		t.Fatalf("down node should leave the row untouched: %+v", rows)
	}

	cluster.Restore(types.NodeSlaveA)
	if err := r.ReplayAll(ctx); err != nil {
		t.Fatalf("ReplayAll after restore: %v", err)
	}
	exists, err := storage.GameExists(ctx, cluster.DBs[types.NodeSlaveA], 1)
	if err != nil || !exists {
		t.Errorf("replayed game on slave_a = %v, %v", exists, err)
	}
	rows, err = storage.ListUnprocessedTxLogs(ctx, master)
	if err != nil || len(rows) != 0 {
		t.Errorf("unprocessed rows after replay = %d, %v", len(rows), err)
	}
}

func TestReplayIdempotentOnExistingRecord(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)
	r := NewRetryManager(m, 0)
	ctx := context.Background()

	cluster.Crash(types.NodeSlaveA)
	if _, _, err := m.CreateGame(ctx, testutil.Game(1, true, false, false)); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	cluster.Restore(types.NodeSlaveA)

	// The record arrived by another path in the meantime.
	if err := storage.InsertGame(ctx, cluster.DBs[types.NodeSlaveA], testutil.Game(1, true, false, false)); err != nil {
		t.Fatalf("seed slave: %v", err)
	}

	if err := r.ReplayAll(ctx); err != nil {
		t.Fatalf("ReplayAll: %v", err)
	}
	rows, err := storage.ListUnprocessedTxLogs(ctx, cluster.DBs[types.NodeMaster])
	if err != nil || len(rows) != 0 {
		t.Errorf("colliding replay should still commit, %d rows, %v", len(rows), err)
	}
	n, _ := storage.CountGames(ctx, cluster.DBs[types.NodeSlaveA])
	if n != 1 {
		t.Errorf("slave_a rows = %d, want exactly 1", n)
	}
}

func TestUpdateGamePropagates(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)
	ctx := context.Background()

	if _, ok, err := m.CreateGame(ctx, testutil.Game(1, true, false, false)); err != nil || !ok {
		t.Fatalf("CreateGame = %v, ok=%v", err, ok)
	}

	updated := testutil.Game(1, true, false, false)
	updated.Name = "Alpha: Remastered"
	_, ok, err := m.UpdateGame(ctx, 1, updated)
	if err != nil || !ok {
		t.Fatalf("UpdateGame = %v, ok=%v", err, ok)
	}

	for _, node := range []string{types.NodeMaster, types.NodeSlaveA} {
		g, err := storage.GetGame(ctx, cluster.DBs[node], 1)
		if err != nil {
			t.Fatalf("GetGame on %s: %v", node, err)
		}
		if g.Name != "Alpha: Remastered" {
			t.Errorf("%s name = %q", node, g.Name)
		}
	}

	// The journal carries the pre-image for auditability.
	master := cluster.DBs[types.NodeMaster]
	var oldData string
	err = master.QueryRow(
		"SELECT old_data FROM transaction_log WHERE operation = 'UPDATE' AND node_id = 1").Scan(&oldData)
	if err != nil {
		t.Fatalf("reading journal: %v", err)
	}
	if oldData == "" {
		t.Error("update journal row should carry old_data")
	}
}

func TestUpdateGameNotFound(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)

	_, _, err := m.UpdateGame(context.Background(), 99, testutil.Game(99, true, false, false))
	if !errors.Is(err, ErrGameNotFound) {
		t.Errorf("err = %v, want ErrGameNotFound", err)
	}
}

func TestDeleteGameRemovesEverywhere(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)
	ctx := context.Background()

	if _, ok, err := m.CreateGame(ctx, testutil.Game(1, true, true, false)); err != nil || !ok {
		t.Fatalf("CreateGame = %v, ok=%v", err, ok)
	}

	// Delete fans out to all three nodes. slave_a never held the record,
	// so its journal row fails; master and slave_b must be clean.
	_, ok, err := m.DeleteGame(ctx, 1)
	if err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if ok {
		t.Error("missing row on slave_a should report partial success")
	}
	for _, node := range []string{types.NodeMaster, types.NodeSlaveB} {
		exists, err := storage.GameExists(ctx, cluster.DBs[node], 1)
		if err != nil || exists {
			t.Errorf("game still on %s = %v, %v", node, exists, err)
		}
	}

	// Replay converges the failed row: the record is already gone.
	r := NewRetryManager(m, 0)
	if err := r.ReplayAll(ctx); err != nil {
		t.Fatalf("ReplayAll: %v", err)
	}
	rows, err := storage.ListUnprocessedTxLogs(ctx, cluster.DBs[types.NodeMaster])
	if err != nil || len(rows) != 0 {
		t.Errorf("unprocessed rows after replay = %d, %v", len(rows), err)
	}
}

func TestDeleteGameNotFound(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)

	_, _, err := m.DeleteGame(context.Background(), 42)
	if !errors.Is(err, ErrGameNotFound) {
		t.Errorf("err = %v, want ErrGameNotFound", err)
	}
}

func TestReadGame(t *testing.T) {
	cluster := testutil.NewCluster(t)
	m := newManager(cluster)
	ctx := context.Background()

	if _, _, err := m.CreateGame(ctx, testutil.Game(1, false, true, false)); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	g, err := m.ReadGame(ctx, 1)
	if err != nil {
		t.Fatalf("ReadGame: %v", err)
	}
	if g.AppID != 1 || g.Name != "Alpha" {
		t.Errorf("record = %+v", g)
	}
	if _, err := m.ReadGame(ctx, 2); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("missing id err = %v", err)
	}
}
