// Copyright (C) 2017 ScyllaDB

package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/lock"
	"github.com/scylladb/scylla-autorepair/pkg/util/tickrun"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"github.com/scylladb/scylla-autorepair/pkg/util/workerpool"
)

// ErrClosed is returned when scheduling on a closed manager.
var ErrClosed = errors.New("schedule manager closed")

const releaseTimeout = 30 * time.Second

// Locker acquires job resources.
type Locker interface {
	TryLockAll(ctx context.Context, resources []string, priority int, metadata map[string]string) (*lock.MultiLock, error)
}

type run struct {
	host string
	job  Job
	lock *lock.MultiLock
}

// Manager periodically picks the most important runnable job of every host
// that does not run a job, locks its resources and runs it on a worker pool.
type Manager struct {
	config   Config
	locker   Locker
	listener Listener
	logger   log.Logger
	now      func() time.Time

	mu       sync.Mutex
	jobs     map[string]map[uuid.UUID]Job
	running  map[string]*run
	closed   bool
	stopTick func()

	stop chan struct{}
	pool *workerpool.Pool[*run]
}

// NewManager returns a manager, call Start to start scheduling.
func NewManager(config Config, locker Locker, logger log.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if locker == nil {
		return nil, errors.New("missing locker")
	}

	m := &Manager{
		config:   config,
		locker:   locker,
		listener: NopListener,
		logger:   logger,
		now:      timeutc.Now,
		jobs:     make(map[string]map[uuid.UUID]Job),
		running:  make(map[string]*run),
		stop:     make(chan struct{}),
	}
	m.pool = workerpool.New(context.Background(), config.Workers, config.QueueSize, m.handle)
	return m, nil
}

// SetListener sets the listener, it must be called before Start.
func (m *Manager) SetListener(l Listener) {
	m.listener = l
}

// Start runs the scheduling loop in the background until Close.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.stopTick != nil {
		return
	}
	m.stopTick = tickrun.NewTicker(ctx, m.config.RunInterval, m.tick)
	m.logger.Info(ctx, "Schedule manager started", "run_interval", m.config.RunInterval)
}

// Schedule adds job of host, a job with the same ID is replaced.
func (m *Manager) Schedule(host string, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	hj, ok := m.jobs[host]
	if !ok {
		hj = make(map[uuid.UUID]Job)
		m.jobs[host] = hj
	}
	hj[job.ID()] = job
	return nil
}

// Deschedule removes job of host. A running job is allowed to finish but
// it is never started again.
func (m *Manager) Deschedule(host string, job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hj := m.jobs[host]
	delete(hj, job.ID())
	if len(hj) == 0 {
		delete(m.jobs, host)
	}
}

// Running returns ID of a job running for host.
func (m *Manager) Running(host string) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.running[host]; ok {
		return r.job.ID(), true
	}
	return uuid.Nil, false
}

func (m *Manager) tick(ctx context.Context) {
	now := m.now()
	for _, host := range m.hosts() {
		if ctx.Err() != nil {
			return
		}
		m.tickHost(ctx, host, now)
	}
}

func (m *Manager) hosts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for h := range m.jobs {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) tickHost(ctx context.Context, host string, now time.Time) {
	for _, j := range m.candidates(host, now) {
		ml, err := m.locker.TryLockAll(ctx, j.LockResources(), j.Priority(), map[string]string{
			"host": host,
			"job":  j.ID().String(),
		})
		if err != nil {
			m.logger.Debug(ctx, "Failed to lock job resources", "host", host, "job", j.ID(), "error", err)
			m.listener.OnLockFailed(host, j.ID(), err)
			continue
		}

		r := &run{host: host, job: j, lock: ml}
		if !m.markRunning(r) {
			m.release(ctx, r)
			return
		}
		if err := m.pool.TrySubmit(r); err != nil {
			m.logger.Info(ctx, "Job skipped", "host", host, "job", j.ID(), "error", err)
			m.unmarkRunning(r)
			m.release(ctx, r)
		}
		return
	}
}

// candidates returns runnable jobs of host ordered by priority and overdue
// time, it returns nothing if host runs a job.
func (m *Manager) candidates(host string, now time.Time) []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if _, ok := m.running[host]; ok {
		return nil
	}

	type candidate struct {
		job     Job
		overdue time.Duration
	}
	var c []candidate
	for _, j := range m.jobs[host] {
		if j.Runnable(now) {
			c = append(c, candidate{job: j, overdue: j.Overdue(now)})
		}
	}
	sort.Slice(c, func(i, j int) bool {
		if pi, pj := c[i].job.Priority(), c[j].job.Priority(); pi != pj {
			return pi > pj
		}
		if c[i].overdue != c[j].overdue {
			return c[i].overdue > c[j].overdue
		}
		return uuid.Compare(c[i].job.ID(), c[j].job.ID()) < 0
	})

	out := make([]Job, len(c))
	for i := range c {
		out[i] = c[i].job
	}
	return out
}

// markRunning registers the run unless the job was descheduled while its
// resources were being locked.
func (m *Manager) markRunning(r *run) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	if _, ok := m.jobs[r.host][r.job.ID()]; !ok {
		return false
	}
	m.running[r.host] = r
	return true
}

func (m *Manager) unmarkRunning(r *run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[r.host] == r {
		delete(m.running, r.host)
	}
}

func (m *Manager) release(ctx context.Context, r *run) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := r.lock.Release(ctx); err != nil {
		m.logger.Info(ctx, "Failed to release job resources", "host", r.host, "job", r.job.ID(), "error", err)
	}
}

func (m *Manager) handle(ctx context.Context, r *run) {
	ctx = log.WithNewTraceID(ctx)
	defer func() {
		m.release(ctx, r)
		m.unmarkRunning(r)
	}()

	select {
	case <-m.stop:
		return
	default:
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.lock.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	id := r.job.ID()
	m.logger.Info(ctx, "Run", "host", r.host, "job", id)
	m.listener.OnRunStart(r.host, id)

	start := m.now()
	err := r.job.Run(runCtx, m.stop)
	if lerr := r.lock.Err(); lerr != nil {
		err = lerr
	}
	d := m.now().Sub(start)

	if err != nil {
		m.logger.Info(ctx, "Run failed", "host", r.host, "job", id, "duration", d, "error", err)
		m.listener.OnRunError(r.host, id, d, err)
	} else {
		m.logger.Info(ctx, "Run done", "host", r.host, "job", id, "duration", d)
		m.listener.OnRunSuccess(r.host, id, d)
	}
}

// Close stops scheduling and removes all jobs. It waits for running jobs,
// jobs stop before their next unit of work.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.stop)
	m.jobs = make(map[string]map[uuid.UUID]Job)
	stopTick := m.stopTick
	m.mu.Unlock()

	if stopTick != nil {
		stopTick()
	}
	m.pool.Close()
	m.logger.Info(context.Background(), "Schedule manager stopped")
}
