// Copyright (C) 2017 ScyllaDB

package repairstate

import (
	"sort"
	"time"

	"github.com/scylladb/go-set/strset"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
)

// OwnedRange is a token range replicated by a node.
type OwnedRange struct {
	dht.TokenRange
	Replicas []string
}

// VnodeRepairState is the repair state of a single token range.
// Zero RepairedAt means the range was never repaired.
type VnodeRepairState struct {
	dht.TokenRange
	Replicas   []string
	RepairedAt time.Time
}

// Repaired returns true if the range was repaired at least once.
func (v VnodeRepairState) Repaired() bool {
	return !v.RepairedAt.IsZero()
}

// Overdue returns true if the range was not repaired within interval.
func (v VnodeRepairState) Overdue(interval time.Duration, now time.Time) bool {
	return v.RepairedAt.Before(now.Add(-interval))
}

// VnodeRepairStates is an immutable list of range states ordered by range.
type VnodeRepairStates struct {
	states []VnodeRepairState
}

// NewVnodeRepairStates returns states sorted by range, the input is copied.
func NewVnodeRepairStates(states []VnodeRepairState) VnodeRepairStates {
	out := make([]VnodeRepairState, len(states))
	copy(out, states)
	sort.Slice(out, func(i, j int) bool {
		return out[i].TokenRange.Less(out[j].TokenRange)
	})
	return VnodeRepairStates{states: out}
}

// States returns a copy of the range states.
func (s VnodeRepairStates) States() []VnodeRepairState {
	out := make([]VnodeRepairState, len(s.states))
	copy(out, s.states)
	return out
}

// Len returns number of ranges.
func (s VnodeRepairStates) Len() int {
	return len(s.states)
}

// NoData returns true if there is no ownership information.
func (s VnodeRepairStates) NoData() bool {
	return len(s.states) == 0
}

// LastRepairedAt returns the repair time of the least recently repaired
// range. It's zero if any range was never repaired or there is no data.
func (s VnodeRepairStates) LastRepairedAt() time.Time {
	var oldest time.Time
	for i, v := range s.states {
		if !v.Repaired() {
			return time.Time{}
		}
		if i == 0 || v.RepairedAt.Before(oldest) {
			oldest = v.RepairedAt
		}
	}
	return oldest
}

// Overdue returns ranges not repaired within interval.
func (s VnodeRepairStates) Overdue(interval time.Duration, now time.Time) []VnodeRepairState {
	var out []VnodeRepairState
	for _, v := range s.states {
		if v.Overdue(interval, now) {
			out = append(out, v)
		}
	}
	return out
}

// Progress returns the fraction of ranges repaired within interval.
func (s VnodeRepairStates) Progress(interval time.Duration, now time.Time) float64 {
	if len(s.states) == 0 {
		return 0
	}
	done := 0
	for _, v := range s.states {
		if !v.Overdue(interval, now) {
			done++
		}
	}
	return float64(done) / float64(len(s.states))
}

// CombineWith returns states with repair times never older than the times
// of the same ranges in prev.
func (s VnodeRepairStates) CombineWith(prev VnodeRepairStates) VnodeRepairStates {
	last := make(map[dht.TokenRange]time.Time, len(prev.states))
	for _, v := range prev.states {
		last[v.TokenRange] = v.RepairedAt
	}

	out := make([]VnodeRepairState, len(s.states))
	for i, v := range s.states {
		if t, ok := last[v.TokenRange]; ok && t.After(v.RepairedAt) {
			v.RepairedAt = t
		}
		out[i] = v
	}
	return VnodeRepairStates{states: out}
}

// Compute returns repair states of owned ranges given repair history.
// A range is repaired at the latest finish time of successful entries that
// cover the whole range and include all its replicas. Entries finished
// after now are ignored.
func Compute(owned []OwnedRange, history []HistoryEntry, now time.Time) VnodeRepairStates {
	states := make([]VnodeRepairState, 0, len(owned))
	for _, o := range owned {
		v := VnodeRepairState{
			TokenRange: o.TokenRange,
			Replicas:   append([]string(nil), o.Replicas...),
		}
		for i := range history {
			e := &history[i]
			if e.Status != StatusSuccess || e.FinishedAt.After(now) || !e.FinishedAt.After(v.RepairedAt) {
				continue
			}
			if !e.TokenRange.Covers(o.TokenRange) || !e.includes(o.Replicas) {
				continue
			}
			v.RepairedAt = e.FinishedAt
		}
		states = append(states, v)
	}
	return NewVnodeRepairStates(states)
}

func (e *HistoryEntry) includes(replicas []string) bool {
	if len(e.Participants) == 0 || len(replicas) == 0 {
		return true
	}
	return strset.New(e.Participants...).Has(replicas...)
}
