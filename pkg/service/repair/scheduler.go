// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/metrics"
	"github.com/scylladb/scylla-autorepair/pkg/repairstate"
	"github.com/scylladb/scylla-autorepair/pkg/schedule"
	"github.com/scylladb/scylla-autorepair/pkg/util/parallel"
	"github.com/scylladb/scylla-autorepair/pkg/util/tickrun"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"go.uber.org/multierr"
)

// ErrClosed is returned when configuring a closed scheduler.
var ErrClosed = errors.New("repair scheduler closed")

// JobManager runs scheduled jobs.
type JobManager interface {
	Schedule(host string, job schedule.Job) error
	Deschedule(host string, job schedule.Job)
}

// Topology lists cluster members.
type Topology interface {
	Nodes(ctx context.Context) ([]cluster.Node, error)
}

// Deps groups collaborators of the Scheduler.
type Deps struct {
	Manager  JobManager
	States   *repairstate.Factory
	History  repairstate.HistoryStore
	Repairer Repairer
	Faults   FaultReporter
	Metrics  metrics.RepairMetrics
	// Topology resolves host IDs of repair participants, if not set
	// history is written for the repaired node only.
	Topology Topology
}

func (d Deps) validate() error {
	var err error
	if d.Manager == nil {
		err = multierr.Append(err, errors.New("missing job manager"))
	}
	if d.States == nil {
		err = multierr.Append(err, errors.New("missing repair state factory"))
	}
	if d.History == nil {
		err = multierr.Append(err, errors.New("missing history store"))
	}
	if d.Repairer == nil {
		err = multierr.Append(err, errors.New("missing repairer"))
	}
	return err
}

type tableKey struct {
	hostID uuid.UUID
	table  TableReference
}

// Scheduler maps table repair configurations to scheduled jobs.
type Scheduler struct {
	config Config
	deps   Deps
	logger log.Logger
	now    func() time.Time

	// keyMu serializes configuration of a table on a node, entries are
	// removed when no one holds or waits for them.
	keyMu map[tableKey]*keyLock

	mu       sync.Mutex
	jobs     map[tableKey]map[Configuration]*Job
	closed   bool
	stopTick func()
}

// NewScheduler returns a scheduler, call Start to refresh repair states in
// the background.
func NewScheduler(config Config, deps Deps, logger log.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Faults == nil {
		deps.Faults = NewLogFaultReporter(logger.Named("fault"))
	}
	if deps.Metrics.IsZero() {
		deps.Metrics = metrics.NewRepairMetrics()
	}

	return &Scheduler{
		config: config,
		deps:   deps,
		logger: logger,
		now:    timeutc.Now,
		keyMu:  make(map[tableKey]*keyLock),
		jobs:   make(map[tableKey]map[Configuration]*Job),
	}, nil
}

// Start refreshes repair states every StateRefreshInterval until Close.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stopTick != nil {
		return
	}
	s.stopTick = tickrun.NewTicker(ctx, s.config.StateRefreshInterval, func(ctx context.Context) {
		if err := s.RefreshStates(ctx); err != nil {
			s.logger.Info(ctx, "Failed to refresh repair states", "error", err)
		}
	})
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (s *Scheduler) lockKey(k tableKey) func() {
	s.mu.Lock()
	l, ok := s.keyMu[k]
	if !ok {
		l = &keyLock{}
		s.keyMu[k] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.keyMu, k)
		}
		s.mu.Unlock()
	}
}

// PutConfigurations sets repair configurations of a table on a node.
// Jobs of unchanged configurations are kept, jobs of removed configurations
// are descheduled before jobs of new configurations are scheduled.
// Disabled configurations are ignored.
func (s *Scheduler) PutConfigurations(ctx context.Context, node cluster.Node, table TableReference, configs []Configuration) error {
	want := make(map[Configuration]struct{}, len(configs))
	for _, c := range configs {
		if c.Disabled {
			continue
		}
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "%s on %s", table, node)
		}
		want[c] = struct{}{}
	}

	k := tableKey{hostID: node.ID, table: table}
	unlock := s.lockKey(k)
	defer unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cur := make(map[Configuration]*Job, len(s.jobs[k]))
	for c, j := range s.jobs[k] {
		cur[c] = j
	}
	s.mu.Unlock()

	for c, j := range cur {
		if _, ok := want[c]; !ok {
			s.removeJob(ctx, k, j)
		}
	}

	var errs error
	for _, c := range sortedConfigurations(want) {
		if _, ok := cur[c]; ok {
			continue
		}
		j := s.newJob(node, table, c)
		if err := j.refresh(ctx); err != nil {
			s.logger.Info(ctx, "Failed initial repair state update", "job", j.id, "error", err)
		}
		if err := s.deps.Manager.Schedule(node.Address, j); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "schedule %s", j.id))
			continue
		}
		if !s.addJob(k, j) {
			s.deps.Manager.Deschedule(node.Address, j)
			return ErrClosed
		}
		s.logger.Info(ctx, "Repair job scheduled",
			"job", j.id,
			"host", node.Address,
			"table", table,
			"type", c.Type,
			"interval", c.Interval,
		)
	}
	return errs
}

// RemoveConfiguration removes all repair configurations of a table on a node.
func (s *Scheduler) RemoveConfiguration(ctx context.Context, node cluster.Node, table TableReference) error {
	return s.PutConfigurations(ctx, node, table, nil)
}

func (s *Scheduler) newJob(node cluster.Node, table TableReference, c Configuration) *Job {
	id := JobID(node, table, c)
	return &Job{
		id:       id,
		node:     node,
		table:    table,
		config:   c,
		state:    s.deps.States.Create(node, table.Keyspace, table.Table, c.Interval),
		history:  s.deps.History,
		repairer: s.deps.Repairer,
		faults:   s.deps.Faults,
		metrics:  s.deps.Metrics,
		topology: s.deps.Topology,
		logger:   s.logger.With("host", node.Address, "table", table.String()),
		now:      s.now,
	}
}

func (s *Scheduler) addJob(k tableKey, j *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	m, ok := s.jobs[k]
	if !ok {
		m = make(map[Configuration]*Job)
		s.jobs[k] = m
	}
	m[j.config] = j
	return true
}

func (s *Scheduler) removeJob(ctx context.Context, k tableKey, j *Job) {
	s.deps.Manager.Deschedule(j.node.Address, j)

	s.mu.Lock()
	delete(s.jobs[k], j.config)
	if len(s.jobs[k]) == 0 {
		delete(s.jobs, k)
	}
	sameType := false
	for _, o := range s.jobs[k] {
		if o.config.Type == j.config.Type {
			sameType = true
		}
	}
	s.mu.Unlock()

	if !sameType {
		s.deps.Metrics.DeleteTable(j.node.Address, j.table.Keyspace, j.table.Table, j.config.Type.String())
	}
	j.cease()
	s.logger.Info(ctx, "Repair job descheduled", "job", j.id, "host", j.node.Address, "table", j.table)
}

// allJobs returns registered jobs ordered by host, table and ID.
func (s *Scheduler) allJobs() []*Job {
	s.mu.Lock()
	var out []*Job
	for _, m := range s.jobs {
		for _, j := range m {
			out = append(out, j)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		ja, jb := out[a], out[b]
		if ja.node.Address != jb.node.Address {
			return ja.node.Address < jb.node.Address
		}
		if ja.table.Keyspace != jb.table.Keyspace {
			return ja.table.Keyspace < jb.table.Keyspace
		}
		if ja.table.Table != jb.table.Table {
			return ja.table.Table < jb.table.Table
		}
		return uuid.Compare(ja.id, jb.id) < 0
	})
	return out
}

// CurrentRepairJobs returns views of all scheduled jobs.
func (s *Scheduler) CurrentRepairJobs() []JobView {
	now := s.now()
	jobs := s.allJobs()
	out := make([]JobView, len(jobs))
	for i, j := range jobs {
		out[i] = j.View(now)
	}
	return out
}

// Job returns view of a scheduled job.
func (s *Scheduler) Job(id uuid.UUID) (JobView, bool) {
	for _, j := range s.allJobs() {
		if j.id == id {
			return j.View(s.now()), true
		}
	}
	return JobView{}, false
}

// RefreshStates updates repair states of all jobs, metrics and fault
// levels.
func (s *Scheduler) RefreshStates(ctx context.Context) error {
	jobs := s.allJobs()
	return parallel.Run(ctx, len(jobs), s.config.RefreshParallelism, func(i int) error {
		return errors.Wrapf(jobs[i].refresh(ctx), "job %s", jobs[i].id)
	})
}

// Close stops refreshing states and deschedules all jobs.
func (s *Scheduler) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stopTick := s.stopTick
	s.mu.Unlock()

	if stopTick != nil {
		stopTick()
	}

	for _, j := range s.allJobs() {
		s.removeJob(ctx, tableKey{hostID: j.node.ID, table: j.table}, j)
	}
	s.logger.Info(ctx, "Repair scheduler stopped")
}

// sortedConfigurations returns configurations in a stable order.
func sortedConfigurations(m map[Configuration]struct{}) []Configuration {
	out := make([]Configuration, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key() < out[j].key()
	})
	return out
}
