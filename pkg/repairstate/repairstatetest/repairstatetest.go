// Copyright (C) 2017 ScyllaDB

// Package repairstatetest provides in-memory repair history and ownership.
package repairstatetest

import (
	"context"
	"sync"
	"time"

	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/repairstate"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// History is an in-memory repairstate.HistoryStore.
type History struct {
	mu      sync.Mutex
	entries []repairstate.HistoryEntry
	err     error
}

var _ repairstate.HistoryStore = &History{}

// SetError makes all calls fail with err, nil clears the failure.
func (h *History) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// All returns all stored entries in insertion order.
func (h *History) All() []repairstate.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]repairstate.HistoryEntry(nil), h.entries...)
}

// Clear removes all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Entries implements repairstate.HistoryStore.
func (h *History) Entries(ctx context.Context, hostID uuid.UUID, keyspace, table string, since time.Time) ([]repairstate.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}

	var out []repairstate.HistoryEntry
	for _, e := range h.entries {
		if e.HostID == hostID && e.Keyspace == keyspace && e.Table == table && !e.FinishedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Put implements repairstate.HistoryStore.
func (h *History) Put(ctx context.Context, e repairstate.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, e)
	return nil
}

// Ownership is a static repairstate.Ownership, ranges are keyed by node
// address.
type Ownership struct {
	mu     sync.Mutex
	ranges map[string][]repairstate.OwnedRange
	err    error
}

var _ repairstate.Ownership = &Ownership{}

// NewOwnership returns ownership with no ranges.
func NewOwnership() *Ownership {
	return &Ownership{ranges: make(map[string][]repairstate.OwnedRange)}
}

// Set sets ranges owned by the node with address.
func (o *Ownership) Set(address string, ranges ...repairstate.OwnedRange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ranges[address] = ranges
}

// SetError makes all calls fail with err, nil clears the failure.
func (o *Ownership) SetError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// OwnedRanges implements repairstate.Ownership.
func (o *Ownership) OwnedRanges(ctx context.Context, node cluster.Node, keyspace string) ([]repairstate.OwnedRange, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	return append([]repairstate.OwnedRange(nil), o.ranges[node.Address]...), nil
}
