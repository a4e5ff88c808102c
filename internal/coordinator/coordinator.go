// Package coordinator implements the master-first write path.
//
// Every accepted create lands on the master before anything else happens;
// the slave write (or its pending fallback) is strictly ordered after the
// master insert is verified. Slave-side failures are absorbed into the
// matching pending queue and never surface to the caller.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gamevault/gamevault/internal/broker"
	"github.com/gamevault/gamevault/internal/debug"
	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/telemetry"
	"github.com/gamevault/gamevault/internal/types"
)

// ErrMasterDown is returned when the master is gated off; writes are
// refused outright.
var ErrMasterDown = errors.New("master node is down")

// ErrMasterWriteFailed is returned when the master insert could not be
// verified. The request fails with no slave side-effects.
var ErrMasterWriteFailed = errors.New("master write failed")

// idAssignRetries bounds the duplicate-key retry loop during id
// assignment under concurrent creates.
const idAssignRetries = 5

// Registry is the availability view the coordinator needs.
type Registry interface {
	IsUp(name string) bool
}

// Result describes what a create actually did, replacing catch-all
// exception handling with explicit outcome flags. The HTTP layer formats
// the response from it.
type Result struct {
	Target          types.Target
	MasterOK        bool
	SlaveOK         bool
	PendingEnqueued bool
}

// Coordinator routes catalog writes. Construct with New.
type Coordinator struct {
	conns    broker.Conns
	reg      Registry
	counters *telemetry.Counters
}

func New(conns broker.Conns, reg Registry) *Coordinator {
	return &Coordinator{conns: conns, reg: reg, counters: telemetry.NewCounters()}
}

// CreateGame validates, assigns an id, writes master-first and routes the
// record to its partition. Master write + verification failures abort the
// request; slave failures fall back to the pending queue and the caller
// still sees success.
func (c *Coordinator) CreateGame(ctx context.Context, in *types.CreateGameInput) (*types.Game, Result, error) {
	var res Result

	// Availability is checked before admission: with the master down the
	// caller gets the outage, not a validation verdict.
	if !c.reg.IsUp(types.NodeMaster) {
		return nil, res, ErrMasterDown
	}
	if err := in.Validate(); err != nil {
		return nil, res, err
	}
	master, err := c.conns.Get(ctx, types.NodeMaster)
	if err != nil {
		return nil, res, fmt.Errorf("%w: %v", ErrMasterDown, err)
	}

	g, err := in.Game()
	if err != nil {
		return nil, res, err
	}

	// Assign id and insert. max(app_id)+1 races with concurrent creates;
	// a duplicate-key collision retries with a fresh id, bounded.
	if err := c.insertMaster(ctx, master, g); err != nil {
		return nil, res, err
	}

	// Verify the master write with a point lookup. Failure here is fatal
	// for the request; no pending row is created.
	ok, err := storage.GameExists(ctx, master, g.AppID)
	if err != nil || !ok {
		if err != nil {
			return nil, res, fmt.Errorf("%w: verification: %v", ErrMasterWriteFailed, err)
		}
		return nil, res, fmt.Errorf("%w: game %d not readable after insert", ErrMasterWriteFailed, g.AppID)
	}
	res.MasterOK = true
	res.Target = g.RouteTarget()
	c.counters.RecordWrite(ctx, res.Target.String())

	if queue, routed := storage.QueueForTarget(res.Target); routed {
		if c.writeSlave(ctx, res.Target.Node(), g) {
			res.SlaveOK = true
		} else if err := queue.Enqueue(ctx, master, g); err != nil {
			// Master accepted the record; losing the pending row costs
			// convergence, not correctness. Log and keep the success.
			debug.Daemonf("coordinator", "failed to enqueue game %d in %s: %v", g.AppID, queue.Table, err)
		} else {
			res.PendingEnqueued = true
			c.counters.RecordPendingEnqueued(ctx, queue.Table)
			debug.Logf("coordinator: game %d parked in %s\n", g.AppID, queue.Table)
		}
	}

	// Return the persisted master record, not the in-memory copy.
	persisted, err := storage.GetGame(ctx, master, g.AppID)
	if err != nil {
		return nil, res, fmt.Errorf("%w: readback: %v", ErrMasterWriteFailed, err)
	}
	return persisted, res, nil
}

// insertMaster assigns max(app_id)+1 and inserts, retrying on
// duplicate-key races with a fresh id.
func (c *Coordinator) insertMaster(ctx context.Context, master storage.DBTX, g *types.Game) error {
	attempt := func() error {
		max, err := storage.MaxAppID(ctx, master)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrMasterWriteFailed, err))
		}
		g.AppID = max + 1
		if err := storage.InsertGame(ctx, master, g); err != nil {
			if storage.IsDuplicateKey(err) {
				debug.Logf("coordinator: id %d collided, retrying\n", g.AppID)
				return err
			}
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrMasterWriteFailed, err))
		}
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), idAssignRetries)
	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, ErrMasterWriteFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMasterWriteFailed, err)
	}
	return nil
}

// writeSlave attempts the partition write. An id already present on the
// slave counts as written. Any failure reports false; the caller parks
// the record instead.
func (c *Coordinator) writeSlave(ctx context.Context, node string, g *types.Game) bool {
	db, err := c.conns.Get(ctx, node)
	if err != nil {
		debug.Logf("coordinator: %s unavailable: %v\n", node, err)
		return false
	}
	exists, err := storage.GameExists(ctx, db, g.AppID)
	if err != nil {
		debug.Logf("coordinator: existence check on %s failed: %v\n", node, err)
		return false
	}
	if exists {
		debug.Logf("coordinator: game %d already on %s\n", g.AppID, node)
		return true
	}
	if err := storage.InsertGame(ctx, db, g); err != nil {
		if storage.IsDuplicateKey(err) {
			return true
		}
		debug.Logf("coordinator: insert on %s failed: %v\n", node, err)
		return false
	}
	ok, err := storage.GameExists(ctx, db, g.AppID)
	if err != nil || !ok {
		debug.Logf("coordinator: verification on %s failed: %v\n", node, err)
		return false
	}
	return true
}
