// Package syncsvc drains the pending queues to their slave partitions.
//
// The service runs as a background loop on the daemon. Each cycle it
// reads PENDING and FAILED rows from the master's queues, oldest first,
// and delivers them to the matching slave. Delivery is idempotent: a
// record already present on the slave is treated as delivered, so replays
// after partial failures never duplicate data.
package syncsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/gamevault/gamevault/internal/broker"
	"github.com/gamevault/gamevault/internal/debug"
	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/telemetry"
	"github.com/gamevault/gamevault/internal/types"
)

// Registry is the availability view the service needs.
type Registry interface {
	IsUp(name string) bool
}

// Status is the queue backlog snapshot served by GET /api/pending.
type Status struct {
	PendingWindows int    `json:"pending_windows_games"`
	PendingMultiOS int    `json:"pending_multi_os_games"`
	CheckedAt      string `json:"checked_at"`
}

// Service owns the periodic queue drain.
type Service struct {
	conns    broker.Conns
	reg      Registry
	interval time.Duration
	counters *telemetry.Counters
}

func New(conns broker.Conns, reg Registry, interval time.Duration) *Service {
	return &Service{conns: conns, reg: reg, interval: interval, counters: telemetry.NewCounters()}
}

// Run drains the queues every interval until the context is canceled.
// An unhealthy master skips the cycle; the loop itself never exits early.
func (s *Service) Run(ctx context.Context) error {
	debug.Daemonf("sync", "starting, interval %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			debug.Daemonf("sync", "stopping")
			return nil
		case <-ticker.C:
			if err := s.SyncAll(ctx); err != nil {
				debug.Daemonf("sync", "cycle skipped: %v", err)
			}
		}
	}
}

// SyncAll runs one drain cycle over both queues. It returns an error only
// when the master is unreachable; per-queue and per-row failures are
// recorded on the rows themselves and do not abort the cycle.
func (s *Service) SyncAll(ctx context.Context) error {
	if !s.reg.IsUp(types.NodeMaster) {
		return fmt.Errorf("master node is down")
	}
	master, err := s.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return fmt.Errorf("master connection: %w", err)
	}
	for _, queue := range storage.Queues {
		s.drainQueue(ctx, master, queue)
	}
	return nil
}

// drainQueue delivers one queue's backlog to its slave. Rows fail
// independently; one bad row never blocks the ones behind it.
func (s *Service) drainQueue(ctx context.Context, master storage.DBTX, queue storage.Queue) {
	if !s.reg.IsUp(queue.Slave) {
		debug.Logf("sync: %s is down, cannot drain %s\n", queue.Slave, queue.Table)
		return
	}
	rows, err := queue.ListUnsynced(ctx, master)
	if err != nil {
		debug.Daemonf("sync", "listing %s: %v", queue.Table, err)
		return
	}
	if len(rows) == 0 {
		return
	}
	debug.Daemonf("sync", "draining %d rows from %s to %s", len(rows), queue.Table, queue.Slave)

	slave, err := s.conns.Get(ctx, queue.Slave)
	if err != nil {
		// Mark every row so the backlog carries the outage reason.
		for _, row := range rows {
			s.recordFailure(ctx, master, queue, row.AppID, err)
		}
		return
	}

	delivered := 0
	for _, row := range rows {
		if err := s.deliver(ctx, slave, &row.Game); err != nil {
			debug.Daemonf("sync", "game %d to %s: %v", row.AppID, queue.Slave, err)
			s.recordFailure(ctx, master, queue, row.AppID, err)
			s.counters.RecordSyncOutcome(ctx, queue.Table, false)
			continue
		}
		if err := queue.MarkSynced(ctx, master, row.AppID); err != nil {
			debug.Daemonf("sync", "marking game %d synced: %v", row.AppID, err)
			continue
		}
		s.counters.RecordSyncOutcome(ctx, queue.Table, true)
		delivered++
	}
	if delivered > 0 {
		if err := storage.RecordNodeSync(ctx, master, queue.Slave); err != nil {
			debug.Logf("sync: stamping last_sync for %s: %v\n", queue.Slave, err)
		}
		debug.Daemonf("sync", "delivered %d/%d rows to %s", delivered, len(rows), queue.Slave)
	}
}

// deliver writes one record to the slave. Already-present ids count as
// delivered.
func (s *Service) deliver(ctx context.Context, slave storage.DBTX, g *types.Game) error {
	exists, err := storage.GameExists(ctx, slave, g.AppID)
	if err != nil {
		return fmt.Errorf("existence check: %w", err)
	}
	if exists {
		debug.Logf("sync: game %d already on slave\n", g.AppID)
		return nil
	}
	if err := storage.InsertGame(ctx, slave, g); err != nil {
		if storage.IsDuplicateKey(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, master storage.DBTX, queue storage.Queue, appID int64, cause error) {
	if err := queue.MarkFailed(ctx, master, appID, cause); err != nil {
		debug.Daemonf("sync", "marking game %d failed: %v", appID, err)
	}
}

// Status counts the unsynced backlog per queue.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	master, err := s.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return nil, fmt.Errorf("master connection: %w", err)
	}
	windows, err := storage.QueueWindows.CountUnsynced(ctx, master)
	if err != nil {
		return nil, err
	}
	multi, err := storage.QueueMultiOS.CountUnsynced(ctx, master)
	if err != nil {
		return nil, err
	}
	return &Status{
		PendingWindows: windows,
		PendingMultiOS: multi,
		CheckedAt:      time.Now().UTC().Format(time.RFC3339),
	}, nil
}
