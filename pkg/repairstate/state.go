// Copyright (C) 2017 ScyllaDB

package repairstate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
	"go.uber.org/atomic"
)

// DefaultHistoryLookback is how far back repair history is read.
const DefaultHistoryLookback = 30 * 24 * time.Hour

// Ownership returns token ranges replicated by a node.
type Ownership interface {
	OwnedRanges(ctx context.Context, node cluster.Node, keyspace string) ([]OwnedRange, error)
}

// Snapshot is the repair state of a table on a node at a point in time.
// Snapshots are never modified after creation.
type Snapshot struct {
	States     VnodeRepairStates
	CanRepair  bool
	RepairedAt time.Time
	Progress   float64
	CreatedAt  time.Time
	Err        error
}

// Overdue returns ranges that need repair.
func (s *Snapshot) Overdue(interval time.Duration) []VnodeRepairState {
	return s.States.Overdue(interval, s.CreatedAt)
}

// Factory creates RepairState instances sharing ownership and history.
type Factory struct {
	ownership Ownership
	history   HistoryStore
	lookback  time.Duration
	logger    log.Logger
	now       func() time.Time
}

// NewFactory returns a factory, zero lookback means DefaultHistoryLookback.
func NewFactory(ownership Ownership, history HistoryStore, lookback time.Duration, logger log.Logger) (*Factory, error) {
	if ownership == nil {
		return nil, errors.New("missing ownership")
	}
	if history == nil {
		return nil, errors.New("missing history store")
	}
	if lookback < 0 {
		return nil, errors.New("negative history lookback")
	}
	if lookback == 0 {
		lookback = DefaultHistoryLookback
	}
	return &Factory{
		ownership: ownership,
		history:   history,
		lookback:  lookback,
		logger:    logger,
		now:       timeutc.Now,
	}, nil
}

// Create returns repair state of a table on a node, ranges not repaired
// within interval make the state repairable. The state is empty until the
// first Update.
func (f *Factory) Create(node cluster.Node, keyspace, table string, interval time.Duration) *RepairState {
	return &RepairState{
		factory:  f,
		node:     node,
		keyspace: keyspace,
		table:    table,
		interval: interval,
		logger:   f.logger.With("host", node.Address, "keyspace", keyspace, "table", table),
	}
}

// RepairState tracks repair state of a table on a node.
type RepairState struct {
	factory  *Factory
	node     cluster.Node
	keyspace string
	table    string
	interval time.Duration
	logger   log.Logger

	snapshot atomic.Pointer[Snapshot]
}

// Snapshot returns the latest snapshot, it never blocks.
// Before the first Update it returns an empty snapshot.
func (s *RepairState) Snapshot() *Snapshot {
	if v := s.snapshot.Load(); v != nil {
		return v
	}
	return &Snapshot{}
}

// Update reads ownership and history and replaces the snapshot.
// On error the previous snapshot is kept and the error is returned.
func (s *RepairState) Update(ctx context.Context) error {
	f := s.factory

	owned, err := f.ownership.OwnedRanges(ctx, s.node, s.keyspace)
	if err != nil {
		return s.fail(ctx, errors.Wrap(err, "get owned ranges"))
	}
	since := f.now().Add(-f.lookback)
	history, err := f.history.Entries(ctx, s.node.ID, s.keyspace, s.table, since)
	if err != nil {
		return s.fail(ctx, errors.Wrap(err, "get repair history"))
	}

	now := f.now()
	states := Compute(owned, history, now)
	if prev := s.snapshot.Load(); prev != nil {
		states = states.CombineWith(prev.States)
	}

	next := &Snapshot{
		States:     states,
		CanRepair:  len(states.Overdue(s.interval, now)) > 0,
		RepairedAt: states.LastRepairedAt(),
		Progress:   states.Progress(s.interval, now),
		CreatedAt:  now,
	}
	s.snapshot.Store(next)

	s.logger.Debug(ctx, "Repair state updated",
		"ranges", states.Len(),
		"can_repair", next.CanRepair,
		"repaired_at", next.RepairedAt,
	)
	return nil
}

func (s *RepairState) fail(ctx context.Context, err error) error {
	s.logger.Info(ctx, "Failed to update repair state", "error", err)
	s.snapshot.CompareAndSwap(nil, &Snapshot{
		CreatedAt: s.factory.now(),
		Err:       err,
	})
	return err
}
