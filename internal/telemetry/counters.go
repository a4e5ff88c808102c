package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/gamevault/gamevault"

// Counters bundles the write-path and replication metrics. All methods
// are safe on the zero-cost noop instruments when telemetry is off.
type Counters struct {
	writes          metric.Int64Counter
	pendingEnqueued metric.Int64Counter
	syncOutcomes    metric.Int64Counter
	txReplays       metric.Int64Counter
}

// NewCounters creates the instrument set.
func NewCounters() *Counters {
	m := Meter(scopeName)
	writes, _ := m.Int64Counter("gv.writes",
		metric.WithDescription("Accepted catalog writes by routing target"))
	enq, _ := m.Int64Counter("gv.pending.enqueued",
		metric.WithDescription("Records parked in a pending queue"))
	sync, _ := m.Int64Counter("gv.sync.outcomes",
		metric.WithDescription("Pending sync attempts by outcome"))
	replays, _ := m.Int64Counter("gv.txlog.replays",
		metric.WithDescription("Transaction log replays by outcome"))
	return &Counters{writes: writes, pendingEnqueued: enq, syncOutcomes: sync, txReplays: replays}
}

func (c *Counters) RecordWrite(ctx context.Context, target string) {
	c.writes.Add(ctx, 1, metric.WithAttributes(attribute.String("gv.target", target)))
}

func (c *Counters) RecordPendingEnqueued(ctx context.Context, queue string) {
	c.pendingEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("gv.queue", queue)))
}

func (c *Counters) RecordSyncOutcome(ctx context.Context, queue string, ok bool) {
	c.syncOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gv.queue", queue),
		attribute.Bool("gv.ok", ok)))
}

func (c *Counters) RecordTxReplay(ctx context.Context, ok bool) {
	c.txReplays.Add(ctx, 1, metric.WithAttributes(attribute.Bool("gv.ok", ok)))
}
