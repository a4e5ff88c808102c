package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/testutil"
	"github.com/gamevault/gamevault/internal/types"
)

func seedStatus(t *testing.T, cluster *testutil.Cluster) {
	t.Helper()
	master := cluster.DBs[types.NodeMaster]
	for _, node := range types.Nodes {
		if err := storage.SeedNodeStatus(context.Background(), master, node); err != nil {
			t.Fatalf("SeedNodeStatus(%s): %v", node, err)
		}
	}
}

func TestCheckRecordsHealthyCluster(t *testing.T) {
	cluster := testutil.NewCluster(t)
	seedStatus(t, cluster)
	m := New(cluster, time.Second)
	ctx := context.Background()

	m.Check(ctx)

	master := cluster.DBs[types.NodeMaster]
	for _, node := range types.Nodes {
		st, err := storage.GetNodeStatus(ctx, master, node)
		if err != nil {
			t.Fatalf("GetNodeStatus(%s): %v", node, err)
		}
		if !st.IsAvailable || st.FailureCount != 0 {
			t.Errorf("%s = %+v", node, st)
		}
	}
}

func TestCheckRecordsCrashedSlave(t *testing.T) {
	cluster := testutil.NewCluster(t)
	seedStatus(t, cluster)
	m := New(cluster, time.Second)
	ctx := context.Background()
	cluster.Crash(types.NodeSlaveA)

	m.Check(ctx)
	m.Check(ctx)

	master := cluster.DBs[types.NodeMaster]
	st, err := storage.GetNodeStatus(ctx, master, types.NodeSlaveA)
	if err != nil {
		t.Fatalf("GetNodeStatus: %v", err)
	}
	if st.IsAvailable {
		t.Error("crashed slave recorded as available")
	}
	if st.FailureCount != 2 {
		t.Errorf("failure_count = %d, want 2", st.FailureCount)
	}
	if st.LastError == "" {
		t.Error("probe failure should carry a cause")
	}

	// A crashed node must stay down until restored, even though its
	// database would answer.
	cluster.Restore(types.NodeSlaveA)
	m.Check(ctx)
	st, _ = storage.GetNodeStatus(ctx, master, types.NodeSlaveA)
	if !st.IsAvailable || st.FailureCount != 0 {
		t.Errorf("restored slave = %+v", st)
	}
}

func TestCheckSurvivesMasterOutage(t *testing.T) {
	cluster := testutil.NewCluster(t)
	seedStatus(t, cluster)
	m := New(cluster, time.Second)
	ctx := context.Background()
	cluster.Crash(types.NodeMaster)

	// Nowhere to record; the cycle must not panic or write anything.
	m.Check(ctx)

	cluster.Restore(types.NodeMaster)
	st, err := storage.GetNodeStatus(ctx, cluster.DBs[types.NodeMaster], types.NodeSlaveA)
	if err != nil {
		t.Fatalf("GetNodeStatus: %v", err)
	}
	if !st.IsAvailable || st.FailureCount != 0 {
		t.Errorf("slave_a row should be untouched: %+v", st)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cluster := testutil.NewCluster(t)
	seedStatus(t, cluster)
	m := New(cluster, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
