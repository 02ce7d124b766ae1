// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/go-set/strset"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
	"github.com/scylladb/scylla-autorepair/pkg/metrics"
	"github.com/scylladb/scylla-autorepair/pkg/repairstate"
	"github.com/scylladb/scylla-autorepair/pkg/schedule"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"go.uber.org/multierr"
)

// ResourcePrefix prefixes names of locked hosts.
const ResourcePrefix = "RepairResource-"

// unit is a single repair session, ranges of a unit are repaired together.
type unit struct {
	states []repairstate.VnodeRepairState
}

func (u unit) ranges() []dht.TokenRange {
	out := make([]dht.TokenRange, len(u.states))
	for i, s := range u.states {
		out[i] = s.TokenRange
	}
	return out
}

func (u unit) replicas() []string {
	s := strset.New()
	for _, v := range u.states {
		s.Add(v.Replicas...)
	}
	out := s.List()
	sort.Strings(out)
	return out
}

// Job repairs a table on a node according to a configuration.
type Job struct {
	id       uuid.UUID
	node     cluster.Node
	table    TableReference
	config   Configuration
	state    *repairstate.RepairState
	history  repairstate.HistoryStore
	repairer Repairer
	faults   FaultReporter
	metrics  metrics.RepairMetrics
	topology Topology
	logger   log.Logger
	now      func() time.Time

	mu        sync.Mutex
	running   bool
	planned   []unit
	outcome   JobState
	lastRunAt time.Time
	failedAt  time.Time
	lastErr   error
}

var _ schedule.Job = &Job{}

// JobID returns ID of a job repairing table on node with config, IDs are
// stable across restarts.
func JobID(node cluster.Node, table TableReference, config Configuration) uuid.UUID {
	return uuid.NewFromStrings(node.ID.String(), table.Keyspace, table.Table, config.key())
}

// ID implements schedule.Job.
func (j *Job) ID() uuid.UUID {
	return j.id
}

// Node returns the repaired node.
func (j *Job) Node() cluster.Node {
	return j.node
}

// Table returns the repaired table.
func (j *Job) Table() TableReference {
	return j.table
}

// Config returns the job configuration.
func (j *Job) Config() Configuration {
	return j.config
}

// Priority implements schedule.Job.
func (j *Job) Priority() int {
	return j.config.Priority
}

// Runnable implements schedule.Job, a job is runnable if it has a range not
// repaired within the interval unless it runs or recently failed.
func (j *Job) Runnable(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runnable(now)
}

func (j *Job) runnable(now time.Time) bool {
	if j.running {
		return false
	}
	if !j.failedAt.IsZero() && now.Before(j.failedAt.Add(j.config.BackoffTime)) {
		return false
	}
	snap := j.state.Snapshot()
	if snap.States.NoData() {
		return false
	}
	return len(snap.States.Overdue(j.config.Interval, now)) > 0
}

// Overdue implements schedule.Job.
func (j *Job) Overdue(now time.Time) time.Duration {
	snap := j.state.Snapshot()
	if snap.States.NoData() {
		return 0
	}
	return now.Sub(snap.RepairedAt) - j.config.Interval
}

// LockResources implements schedule.Job. Units of the next run are planned
// here so that Run repairs exactly the locked replicas.
func (j *Job) LockResources() []string {
	units := j.plan(j.now())

	j.mu.Lock()
	j.planned = units
	j.mu.Unlock()

	s := strset.New(j.node.Address)
	for _, u := range units {
		s.Add(u.replicas()...)
	}
	hosts := s.List()
	sort.Strings(hosts)

	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = ResourcePrefix + h
	}
	return out
}

func (j *Job) plan(now time.Time) []unit {
	snap := j.state.Snapshot()

	switch j.config.Type {
	case RepairTypeIncremental:
		overdue := snap.States.Overdue(j.config.Interval, now)
		out := make([]unit, len(overdue))
		for i := range overdue {
			out[i] = unit{states: overdue[i : i+1]}
		}
		return out
	default:
		if snap.States.NoData() {
			return nil
		}
		return []unit{{states: snap.States.States()}}
	}
}

// Run implements schedule.Job.
func (j *Job) Run(ctx context.Context, stop <-chan struct{}) error {
	units, err := j.startRun()
	if err != nil {
		return err
	}

	logger := j.logger.With("job", j.id)
	logger.Info(ctx, "Repair started", "units", len(units))

	var done int
	stopped := false
	for _, u := range units {
		select {
		case <-stop:
			stopped = true
		default:
		}
		if stopped {
			break
		}
		if err = ctx.Err(); err != nil {
			break
		}
		if err = j.runUnit(ctx, u); err != nil {
			break
		}
		done++
	}

	switch {
	case err != nil:
		logger.Info(ctx, "Repair failed", "done", done, "units", len(units), "error", err)
	case stopped:
		logger.Info(ctx, "Repair stopped", "done", done, "units", len(units))
	default:
		logger.Info(ctx, "Repair done", "units", len(units))
	}
	j.finishRun(ctx, err, stopped)
	return err
}

func (j *Job) startRun() ([]unit, error) {
	now := j.now()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil, errors.New("job already running")
	}
	units := j.planned
	j.planned = nil
	if units == nil {
		units = j.plan(now)
	}
	j.running = true
	j.lastRunAt = now
	return units, nil
}

func (j *Job) runUnit(ctx context.Context, u unit) error {
	req := RepairRequest{
		Host:     j.node.Address,
		Keyspace: j.table.Keyspace,
		Table:    j.table.Table,
		Type:     j.config.Type,
		Ranges:   u.ranges(),
		Replicas: u.replicas(),
	}

	uctx := ctx
	if t := j.config.UnitTimeout; t > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	start := j.now()
	err := j.repairer.Repair(uctx, req)
	finished := j.now()

	status := repairstate.StatusSuccess
	if err != nil {
		status = repairstate.StatusFailed
	}
	// History of a failed or aborted session is kept.
	hctx := context.WithoutCancel(ctx)
	hostIDs := j.hostIDs(hctx)
	for _, s := range u.states {
		for _, id := range j.historyHosts(s.Replicas, hostIDs) {
			e := repairstate.HistoryEntry{
				HostID:       id,
				Keyspace:     j.table.Keyspace,
				Table:        j.table.Table,
				TokenRange:   s.TokenRange,
				Participants: s.Replicas,
				Status:       status,
				RepairType:   j.config.Type.String(),
				StartedAt:    start,
				FinishedAt:   finished,
				JobID:        j.id,
			}
			if herr := j.history.Put(hctx, e); herr != nil {
				err = multierr.Append(err, errors.Wrapf(herr, "put history of range %s on host %s", s.TokenRange, id))
			}
		}
	}

	j.metrics.ObserveSession(j.node.Address, j.table.Keyspace, j.table.Table, j.config.Type.String(),
		len(u.states), finished.Sub(start), status == repairstate.StatusSuccess)
	return err
}

// hostIDs maps addresses of cluster members to host IDs.
func (j *Job) hostIDs(ctx context.Context) map[string]uuid.UUID {
	out := map[string]uuid.UUID{j.node.Address: j.node.ID}
	if j.topology == nil {
		return out
	}
	nodes, err := j.topology.Nodes(ctx)
	if err != nil {
		j.logger.Info(ctx, "Failed to read host IDs, history is written for the repaired node only", "error", err)
		return out
	}
	for _, n := range nodes {
		if _, ok := out[n.Address]; !ok {
			out[n.Address] = n.ID
		}
	}
	return out
}

// historyHosts returns IDs of the repaired node and replicas of a range,
// replicas with unknown host ID are skipped.
func (j *Job) historyHosts(replicas []string, hostIDs map[string]uuid.UUID) []uuid.UUID {
	out := []uuid.UUID{j.node.ID}
	for _, r := range replicas {
		id, ok := hostIDs[r]
		if !ok || id == j.node.ID {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (j *Job) finishRun(ctx context.Context, err error, stopped bool) {
	ctx = context.WithoutCancel(ctx)
	if uerr := j.state.Update(ctx); uerr != nil {
		j.logger.Info(ctx, "Failed to update repair state after run", "job", j.id, "error", uerr)
	}

	now := j.now()
	j.mu.Lock()
	j.running = false
	switch {
	case err != nil:
		j.outcome = JobFailed
		j.failedAt = now
		j.lastErr = err
	case !stopped:
		j.outcome = JobCompleted
		j.failedAt = time.Time{}
		j.lastErr = nil
	}
	j.mu.Unlock()

	if err != nil {
		j.faults.Raise(FaultJobFailed, j.faultData())
	} else if !stopped {
		j.faults.Cease(FaultJobFailed, j.faultData())
	}
	j.report(now)
}

// refresh updates the repair state and reports it.
func (j *Job) refresh(ctx context.Context) error {
	err := j.state.Update(ctx)
	j.report(j.now())
	return err
}

// report updates metrics and raises or ceases fault levels.
func (j *Job) report(now time.Time) {
	snap := j.state.Snapshot()
	if snap.States.NoData() {
		return
	}
	j.metrics.SetState(j.node.Address, j.table.Keyspace, j.table.Table, j.config.Type.String(),
		snap.RepairedAt, snap.Progress)

	data := j.faultData()
	age := now.Sub(snap.RepairedAt)
	switch {
	case age > j.config.ErrorTime:
		j.faults.Cease(FaultRepairWarning, data)
		j.faults.Raise(FaultRepairError, data)
	case age > j.config.WarningTime:
		j.faults.Cease(FaultRepairError, data)
		j.faults.Raise(FaultRepairWarning, data)
	default:
		j.faults.Cease(FaultRepairError, data)
		j.faults.Cease(FaultRepairWarning, data)
	}
}

// cease clears all faults of the job.
func (j *Job) cease() {
	data := j.faultData()
	j.faults.Cease(FaultJobFailed, data)
	j.faults.Cease(FaultRepairWarning, data)
	j.faults.Cease(FaultRepairError, data)
}

func (j *Job) faultData() map[string]string {
	return map[string]string{
		"host":     j.node.Address,
		"keyspace": j.table.Keyspace,
		"table":    j.table.Table,
		"job":      j.id.String(),
	}
}

// State returns the life cycle state of the job.
func (j *Job) State(now time.Time) JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.running:
		return JobRunning
	case j.runnable(now):
		return JobRunnable
	case j.outcome != JobNotRunnable:
		return j.outcome
	default:
		return JobNotRunnable
	}
}

// Status returns how up to date repairs of the job are.
func (j *Job) Status(now time.Time) JobStatus {
	j.mu.Lock()
	running, lastErr := j.running, j.lastErr
	j.mu.Unlock()

	if running {
		return StatusRunning
	}
	snap := j.state.Snapshot()
	if snap.Err != nil || snap.States.NoData() {
		return StatusOnTime
	}
	age := now.Sub(snap.RepairedAt)
	switch {
	case age <= j.config.Interval:
		return StatusCompleted
	case lastErr != nil:
		return StatusFailed
	case age <= j.config.WarningTime:
		return StatusOnTime
	case age <= j.config.ErrorTime:
		return StatusLate
	default:
		return StatusOverdue
	}
}

// View returns description of the job.
func (j *Job) View(now time.Time) JobView {
	snap := j.state.Snapshot()
	v := JobView{
		ID:         j.id,
		HostID:     j.node.ID,
		Host:       j.node.Address,
		Keyspace:   j.table.Keyspace,
		Table:      j.table.Table,
		Type:       j.config.Type,
		Interval:   j.config.Interval,
		Priority:   j.config.Priority,
		State:      j.State(now).String(),
		Status:     j.Status(now),
		Progress:   snap.States.Progress(j.config.Interval, now),
		RepairedAt: timePtr(snap.RepairedAt),
	}

	j.mu.Lock()
	v.LastRunAt = timePtr(j.lastRunAt)
	if j.lastErr != nil {
		v.LastError = j.lastErr.Error()
	} else if snap.Err != nil {
		v.LastError = snap.Err.Error()
	}
	j.mu.Unlock()

	return v
}
