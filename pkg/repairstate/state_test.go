// Copyright (C) 2017 ScyllaDB

package repairstate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
	"github.com/scylladb/scylla-autorepair/pkg/repairstate"
	"github.com/scylladb/scylla-autorepair/pkg/repairstate/repairstatetest"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

var node = cluster.Node{
	ID:      uuid.MustParse("8b3ab5c1-9f36-4d3a-a0e4-8a83bb2bcba0"),
	Address: "192.168.100.11",
	DC:      "dc1",
}

func newState(t *testing.T, interval time.Duration) (*repairstate.RepairState, *repairstatetest.Ownership, *repairstatetest.History) {
	t.Helper()

	o := repairstatetest.NewOwnership()
	o.Set(node.Address,
		repairstate.OwnedRange{TokenRange: dht.TokenRange{StartToken: 0, EndToken: 100}, Replicas: []string{node.Address}},
		repairstate.OwnedRange{TokenRange: dht.TokenRange{StartToken: 100, EndToken: 200}, Replicas: []string{node.Address}},
	)
	h := &repairstatetest.History{}

	f, err := repairstate.NewFactory(o, h, 0, log.NopLogger)
	if err != nil {
		t.Fatal(err)
	}
	return f.Create(node, "ks", "tbl", interval), o, h
}

func putSuccess(t *testing.T, h *repairstatetest.History, r dht.TokenRange, finishedAt time.Time) {
	t.Helper()

	err := h.Put(context.Background(), repairstate.HistoryEntry{
		HostID:     node.ID,
		Keyspace:   "ks",
		Table:      "tbl",
		TokenRange: r,
		Status:     repairstate.StatusSuccess,
		StartedAt:  finishedAt.Add(-time.Second),
		FinishedAt: finishedAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestNewFactoryValidation(t *testing.T) {
	h := &repairstatetest.History{}
	o := repairstatetest.NewOwnership()

	if _, err := repairstate.NewFactory(nil, h, 0, log.NopLogger); err == nil {
		t.Fatal("expected error for missing ownership")
	}
	if _, err := repairstate.NewFactory(o, nil, 0, log.NopLogger); err == nil {
		t.Fatal("expected error for missing history")
	}
	if _, err := repairstate.NewFactory(o, h, -time.Hour, log.NopLogger); err == nil {
		t.Fatal("expected error for negative lookback")
	}
}

func TestRepairStateUpdate(t *testing.T) {
	ctx := context.Background()
	s, _, h := newState(t, time.Hour)

	if snap := s.Snapshot(); !snap.States.NoData() || snap.CanRepair {
		t.Fatalf("Snapshot() before update = %+v", snap)
	}

	if err := s.Update(ctx); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if !snap.CanRepair {
		t.Fatal("CanRepair = false for never repaired table")
	}
	if snap.Progress != 0 {
		t.Fatalf("Progress = %v", snap.Progress)
	}
	if len(snap.Overdue(time.Hour)) != 2 {
		t.Fatalf("Overdue() = %v", snap.Overdue(time.Hour))
	}

	finished := timeutc.Now().Add(-time.Minute)
	putSuccess(t, h, dht.TokenRange{StartToken: 0, EndToken: 200}, finished)

	if err := s.Update(ctx); err != nil {
		t.Fatal(err)
	}
	next := s.Snapshot()
	if next.CanRepair {
		t.Fatal("CanRepair = true for repaired table")
	}
	if next.Progress != 1 {
		t.Fatalf("Progress = %v", next.Progress)
	}
	if !next.RepairedAt.Equal(finished) {
		t.Fatalf("RepairedAt = %v, expected %v", next.RepairedAt, finished)
	}

	if !snap.CanRepair || snap.Progress != 0 {
		t.Fatal("previous snapshot modified")
	}
}

func TestRepairStateUpdateFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	s, o, h := newState(t, time.Hour)

	testErr := errors.New("unavailable")

	h.SetError(testErr)
	if err := s.Update(ctx); !errors.Is(err, testErr) {
		t.Fatalf("Update() error %v, expected %v", err, testErr)
	}
	if snap := s.Snapshot(); !errors.Is(snap.Err, testErr) || snap.CanRepair {
		t.Fatalf("Snapshot() after first failure = %+v", snap)
	}

	h.SetError(nil)
	putSuccess(t, h, dht.TokenRange{StartToken: 0, EndToken: 200}, timeutc.Now().Add(-time.Minute))
	if err := s.Update(ctx); err != nil {
		t.Fatal(err)
	}
	good := s.Snapshot()

	o.SetError(testErr)
	if err := s.Update(ctx); !errors.Is(err, testErr) {
		t.Fatalf("Update() error %v, expected %v", err, testErr)
	}
	if s.Snapshot() != good {
		t.Fatal("snapshot replaced on failure")
	}
}

func TestRepairStateMonotonic(t *testing.T) {
	ctx := context.Background()
	s, _, h := newState(t, time.Hour)

	finished := timeutc.Now().Add(-time.Minute)
	putSuccess(t, h, dht.TokenRange{StartToken: 0, EndToken: 200}, finished)
	if err := s.Update(ctx); err != nil {
		t.Fatal(err)
	}

	// History entries expire with TTL, repair time must not move back.
	h.Clear()
	if err := s.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if v := s.Snapshot().RepairedAt; !v.Equal(finished) {
		t.Fatalf("RepairedAt = %v, expected %v", v, finished)
	}
}

func TestRepairStateConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	s, _, h := newState(t, time.Hour)
	putSuccess(t, h, dht.TokenRange{StartToken: 0, EndToken: 200}, timeutc.Now().Add(-time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Update(ctx); err != nil {
				t.Error(err)
			}
			if snap := s.Snapshot(); snap.States.Len() != 0 && snap.States.Len() != 2 {
				t.Errorf("torn snapshot %+v", snap)
			}
		}()
	}
	wg.Wait()

	if snap := s.Snapshot(); snap.States.Len() != 2 || snap.CanRepair {
		t.Fatalf("Snapshot() = %+v", snap)
	}
}
