package syncsvc

import (
	"context"
	"testing"
	"time"

	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/testutil"
	"github.com/gamevault/gamevault/internal/types"
)

func enqueue(t *testing.T, cluster *testutil.Cluster, queue storage.Queue, appID int64, windows, mac, linux bool) {
	t.Helper()
	g := testutil.Game(appID, windows, mac, linux)
	master := cluster.DBs[types.NodeMaster]
	if err := storage.InsertGame(context.Background(), master, g); err != nil {
		t.Fatalf("seed master: %v", err)
	}
	if err := queue.Enqueue(context.Background(), master, g); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func TestSyncAllDeliversBacklog(t *testing.T) {
	cluster := testutil.NewCluster(t)
	s := New(cluster, cluster.Registry, time.Second)
	ctx := context.Background()

	enqueue(t, cluster, storage.QueueWindows, 1, true, false, false)
	enqueue(t, cluster, storage.QueueWindows, 2, true, false, false)
	enqueue(t, cluster, storage.QueueMultiOS, 3, true, true, false)
	if err := storage.SeedNodeStatus(ctx, cluster.DBs[types.NodeMaster], types.NodeSlaveA); err != nil {
		t.Fatalf("seed node_status: %v", err)
	}

	if err := s.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}

	for _, appID := range []int64{1, 2} {
		ok, err := storage.GameExists(ctx, cluster.DBs[types.NodeSlaveA], appID)
		if err != nil || !ok {
			t.Errorf("game %d on slave_a = %v, %v", appID, ok, err)
		}
	}
	ok, err := storage.GameExists(ctx, cluster.DBs[types.NodeSlaveB], 3)
	if err != nil || !ok {
		t.Errorf("game 3 on slave_b = %v, %v", ok, err)
	}

	master := cluster.DBs[types.NodeMaster]
	for _, queue := range storage.Queues {
		n, err := queue.CountUnsynced(ctx, master)
		if err != nil || n != 0 {
			t.Errorf("%s backlog = %d, %v; want 0", queue.Table, n, err)
		}
	}

	// A successful drain stamps last_sync for the slave.
	st, err := storage.GetNodeStatus(ctx, master, types.NodeSlaveA)
	if err != nil {
		t.Fatalf("GetNodeStatus: %v", err)
	}
	if st.LastSync == nil {
		t.Error("last_sync not stamped for slave_a")
	}
}

func TestSyncSkipsDownSlave(t *testing.T) {
	cluster := testutil.NewCluster(t)
	s := New(cluster, cluster.Registry, time.Second)
	ctx := context.Background()

	enqueue(t, cluster, storage.QueueWindows, 1, true, false, false)
	cluster.Crash(types.NodeSlaveA)

	if err := s.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	master := cluster.DBs[types.NodeMaster]
	rows, err := storage.QueueWindows.ListUnsynced(ctx, master)
	if err != nil || len(rows) != 1 {
		t.Fatalf("backlog = %d rows, %v; want 1", len(rows), err)
	}
	if rows[0].SyncStatus != types.SyncPending {
		t.Errorf("gated slave must not burn a retry, status = %s", rows[0].SyncStatus)
	}

	cluster.Restore(types.NodeSlaveA)
	if err := s.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll after restore: %v", err)
	}
	ok, err := storage.GameExists(ctx, cluster.DBs[types.NodeSlaveA], 1)
	if err != nil || !ok {
		t.Errorf("game 1 on restored slave_a = %v, %v", ok, err)
	}
}

func TestSyncIdempotentWhenSlaveHasRow(t *testing.T) {
	cluster := testutil.NewCluster(t)
	s := New(cluster, cluster.Registry, time.Second)
	ctx := context.Background()

	enqueue(t, cluster, storage.QueueWindows, 1, true, false, false)
	if err := storage.InsertGame(ctx, cluster.DBs[types.NodeSlaveA], testutil.Game(1, true, false, false)); err != nil {
		t.Fatalf("seed slave: %v", err)
	}

	if err := s.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	n, err := storage.QueueWindows.CountUnsynced(ctx, cluster.DBs[types.NodeMaster])
	if err != nil || n != 0 {
		t.Errorf("backlog = %d, %v; want 0", n, err)
	}
	total, err := storage.CountGames(ctx, cluster.DBs[types.NodeSlaveA])
	if err != nil || total != 1 {
		t.Errorf("slave_a rows = %d, %v; want exactly 1", total, err)
	}
}

func TestSyncAllMasterDown(t *testing.T) {
	cluster := testutil.NewCluster(t)
	s := New(cluster, cluster.Registry, time.Second)
	cluster.Crash(types.NodeMaster)

	if err := s.SyncAll(context.Background()); err == nil {
		t.Fatal("SyncAll should fail with the master down")
	}
}

func TestSyncRowFailureRecorded(t *testing.T) {
	cluster := testutil.NewCluster(t)
	s := New(cluster, cluster.Registry, time.Second)
	ctx := context.Background()

	enqueue(t, cluster, storage.QueueWindows, 1, true, false, false)
	// Break the slave's table so delivery fails with a real error.
	if _, err := cluster.DBs[types.NodeSlaveA].Exec("DROP TABLE games"); err != nil {
		t.Fatalf("drop: %v", err)
	}

	if err := s.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	rows, err := storage.QueueWindows.ListUnsynced(ctx, cluster.DBs[types.NodeMaster])
	if err != nil || len(rows) != 1 {
		t.Fatalf("backlog = %d rows, %v; want 1", len(rows), err)
	}
	row := rows[0]
	if row.SyncStatus != types.SyncFailed {
		t.Errorf("status = %s, want FAILED", row.SyncStatus)
	}
	if row.SyncRetries != 1 {
		t.Errorf("retries = %d, want exactly 1 after one failed cycle", row.SyncRetries)
	}
	if row.ErrorMessage == "" || row.LastSyncAttempt == nil {
		t.Errorf("failure bookkeeping missing: %+v", row)
	}

	// Each failed cycle bumps the counter exactly once.
	if err := s.SyncAll(ctx); err != nil {
		t.Fatalf("second SyncAll: %v", err)
	}
	rows, err = storage.QueueWindows.ListUnsynced(ctx, cluster.DBs[types.NodeMaster])
	if err != nil || len(rows) != 1 {
		t.Fatalf("backlog = %d rows, %v; want 1", len(rows), err)
	}
	if rows[0].SyncRetries != 2 {
		t.Errorf("retries = %d, want 2 after two failed cycles", rows[0].SyncRetries)
	}
}

func TestStatusCountsBacklog(t *testing.T) {
	cluster := testutil.NewCluster(t)
	s := New(cluster, cluster.Registry, time.Second)
	ctx := context.Background()

	enqueue(t, cluster, storage.QueueWindows, 1, true, false, false)
	enqueue(t, cluster, storage.QueueWindows, 2, true, false, false)
	enqueue(t, cluster, storage.QueueMultiOS, 3, true, true, false)

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.PendingWindows != 2 || st.PendingMultiOS != 1 {
		t.Errorf("status = %+v", st)
	}
	if st.CheckedAt == "" {
		t.Error("CheckedAt should be stamped")
	}
}
