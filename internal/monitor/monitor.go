// Package monitor periodically probes all three nodes and records their
// health in the master's node_status table.
//
// The monitor observes; it never changes routing. Administrative crash
// and restore go through the broker, and because probes run through the
// broker too, a crashed node stays down until it is explicitly restored.
package monitor

import (
	"context"
	"time"

	"github.com/gamevault/gamevault/internal/broker"
	"github.com/gamevault/gamevault/internal/debug"
	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/types"
)

// Monitor owns the periodic health probe.
type Monitor struct {
	conns    broker.Conns
	interval time.Duration
}

func New(conns broker.Conns, interval time.Duration) *Monitor {
	return &Monitor{conns: conns, interval: interval}
}

// Run probes every interval until the context is canceled. A down master
// is logged and the loop keeps going; there is nowhere to record status
// without it.
func (m *Monitor) Run(ctx context.Context) error {
	debug.Daemonf("monitor", "starting, interval %s", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			debug.Daemonf("monitor", "stopping")
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// probe reports whether one node answers through the broker.
func (m *Monitor) probe(ctx context.Context, node string) (bool, error) {
	if _, err := m.conns.Get(ctx, node); err != nil {
		return false, err
	}
	return true, nil
}

// Check runs one probe cycle and records the observations on the master.
func (m *Monitor) Check(ctx context.Context) {
	type observation struct {
		up    bool
		cause error
	}
	seen := make(map[string]observation, len(types.Nodes))
	for _, node := range types.Nodes {
		up, err := m.probe(ctx, node)
		seen[node] = observation{up: up, cause: err}
	}

	master, err := m.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		for _, node := range types.Nodes {
			debug.Daemonf("monitor", "master is offline; %s up=%v", node, seen[node].up)
		}
		return
	}
	for _, node := range types.Nodes {
		obs := seen[node]
		if err := storage.RecordNodeStatus(ctx, master, node, obs.up, obs.cause); err != nil {
			debug.Daemonf("monitor", "recording status for %s: %v", node, err)
		}
	}
}
