// Copyright (C) 2017 ScyllaDB

package schedule_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/lock"
	"github.com/scylladb/scylla-autorepair/pkg/lock/locktest"
	"github.com/scylladb/scylla-autorepair/pkg/schedule"
	"github.com/scylladb/scylla-autorepair/pkg/testutils"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeJob struct {
	id        uuid.UUID
	priority  int
	overdue   time.Duration
	resources []string
	runnable  *atomic.Bool
	runs      *atomic.Int32
	run       func(ctx context.Context, stop <-chan struct{}) error
}

func newFakeJob(priority int, overdue time.Duration, resources ...string) *fakeJob {
	return &fakeJob{
		id:        uuid.MustRandom(),
		priority:  priority,
		overdue:   overdue,
		resources: resources,
		runnable:  atomic.NewBool(true),
		runs:      atomic.NewInt32(0),
	}
}

func (j *fakeJob) ID() uuid.UUID                   { return j.id }
func (j *fakeJob) Priority() int                   { return j.priority }
func (j *fakeJob) Runnable(time.Time) bool         { return j.runnable.Load() }
func (j *fakeJob) Overdue(time.Time) time.Duration { return j.overdue }
func (j *fakeJob) LockResources() []string         { return j.resources }

func (j *fakeJob) Run(ctx context.Context, stop <-chan struct{}) error {
	j.runs.Inc()
	if j.run != nil {
		return j.run(ctx, stop)
	}
	return nil
}

// blockingRun reports the job start on started and blocks until release is
// closed.
func blockingRun(j *fakeJob, started chan<- uuid.UUID, release <-chan struct{}) {
	j.run = func(ctx context.Context, stop <-chan struct{}) error {
		started <- j.id
		<-release
		return nil
	}
}

type recordingListener struct {
	mu     sync.Mutex
	starts []uuid.UUID
	errs   map[uuid.UUID]error
	ok     []uuid.UUID
	locks  []uuid.UUID
}

func newRecordingListener() *recordingListener {
	return &recordingListener{errs: make(map[uuid.UUID]error)}
}

func (l *recordingListener) OnRunStart(_ string, id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, id)
}

func (l *recordingListener) OnRunSuccess(_ string, id uuid.UUID, _ time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ok = append(l.ok, id)
}

func (l *recordingListener) OnRunError(_ string, id uuid.UUID, _ time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs[id] = err
}

func (l *recordingListener) OnLockFailed(_ string, id uuid.UUID, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks = append(l.locks, id)
}

func (l *recordingListener) error(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errs[id]
}

func (l *recordingListener) succeeded(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range l.ok {
		if v == id {
			return true
		}
	}
	return false
}

func newFactory(t *testing.T, store lock.Store) *lock.Factory {
	t.Helper()

	f, err := lock.NewFactory(lock.Config{
		LockTime:       400 * time.Millisecond,
		LockUpdateTime: 50 * time.Millisecond,
	}, store, uuid.MustRandom(), log.NopLogger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func newManager(t *testing.T, locker schedule.Locker, c schedule.Config) (*schedule.Manager, *recordingListener) {
	t.Helper()

	m, err := schedule.NewManager(c, locker, log.NopLogger)
	if err != nil {
		t.Fatal(err)
	}
	l := newRecordingListener()
	m.SetListener(l)
	t.Cleanup(m.Close)
	return m, l
}

func testConfig(workers, queue int) schedule.Config {
	return schedule.Config{
		RunInterval: time.Hour,
		Workers:     workers,
		QueueSize:   queue,
	}
}

func expectStarted(t *testing.T, started <-chan uuid.UUID, id uuid.UUID) {
	t.Helper()

	select {
	case v := <-started:
		if v != id {
			t.Fatalf("started %s, expected %s", v, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s not started", id)
	}
}

func TestNewManagerValidation(t *testing.T) {
	f := newFactory(t, locktest.New())

	if _, err := schedule.NewManager(schedule.Config{}, f, log.NopLogger); err == nil {
		t.Fatal("expected config error")
	}
	if _, err := schedule.NewManager(schedule.DefaultConfig(), nil, log.NopLogger); err == nil {
		t.Fatal("expected locker error")
	}
}

func TestManagerRunsMostImportantJob(t *testing.T) {
	f := newFactory(t, locktest.New())
	m, _ := newManager(t, f, testConfig(1, 1))

	started := make(chan uuid.UUID, 3)
	release := make(chan struct{})
	defer close(release)

	jobs := []*fakeJob{
		newFakeJob(1, 10*time.Hour, "r1"),
		newFakeJob(5, time.Hour, "r2"),
		newFakeJob(5, 2*time.Hour, "r3"),
	}
	notRunnable := newFakeJob(10, 100*time.Hour, "r4")
	notRunnable.runnable.Store(false)
	jobs = append(jobs, notRunnable)

	for _, j := range jobs {
		blockingRun(j, started, release)
		if err := m.Schedule("h1", j); err != nil {
			t.Fatal(err)
		}
	}

	m.Tick(context.Background())
	expectStarted(t, started, jobs[2].id)

	if id, ok := m.Running("h1"); !ok || id != jobs[2].id {
		t.Fatalf("Running() = %s, %v", id, ok)
	}

	m.Tick(context.Background())
	if jobs[0].runs.Load()+jobs[1].runs.Load() != 0 {
		t.Fatal("second job started for the same host")
	}
}

func TestManagerSkipsLockedCandidate(t *testing.T) {
	store := locktest.New()
	other := newFactory(t, store)
	f := newFactory(t, store)
	m, l := newManager(t, f, testConfig(1, 1))

	ctx := context.Background()
	held, err := other.TryLock(ctx, "shared", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release(ctx)

	top := newFakeJob(5, time.Hour, "shared", "r1")
	next := newFakeJob(1, time.Hour, "r2")
	for _, j := range []*fakeJob{top, next} {
		if err := m.Schedule("h1", j); err != nil {
			t.Fatal(err)
		}
	}

	m.Tick(ctx)
	testutils.WaitCond(t, func() bool { return l.succeeded(next.id) }, 10*time.Millisecond, 5*time.Second)

	if top.runs.Load() != 0 {
		t.Fatal("locked job ran")
	}
	l.mu.Lock()
	lockFailures := len(l.locks)
	l.mu.Unlock()
	if lockFailures != 1 {
		t.Fatalf("lock failures = %d, expected 1", lockFailures)
	}
	if _, ok := store.Record("r1"); ok {
		t.Fatal("partial lock of failed candidate not released")
	}
}

func TestManagerRunsHostsInParallel(t *testing.T) {
	f := newFactory(t, locktest.New())
	m, _ := newManager(t, f, testConfig(2, 2))

	started := make(chan uuid.UUID, 2)
	release := make(chan struct{})
	defer close(release)

	j1 := newFakeJob(1, time.Hour, "r1")
	j2 := newFakeJob(1, time.Hour, "r2")
	blockingRun(j1, started, release)
	blockingRun(j2, started, release)
	if err := m.Schedule("h1", j1); err != nil {
		t.Fatal(err)
	}
	if err := m.Schedule("h2", j2); err != nil {
		t.Fatal(err)
	}

	m.Tick(context.Background())

	got := map[uuid.UUID]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-started:
			got[id] = true
		case <-time.After(5 * time.Second):
			t.Fatal("jobs not started")
		}
	}
	if !got[j1.id] || !got[j2.id] {
		t.Fatalf("started %v", got)
	}
}

func TestManagerDescheduleRunningJob(t *testing.T) {
	f := newFactory(t, locktest.New())
	m, l := newManager(t, f, testConfig(1, 1))

	started := make(chan uuid.UUID, 1)
	release := make(chan struct{})

	j := newFakeJob(1, time.Hour, "r1")
	blockingRun(j, started, release)
	if err := m.Schedule("h1", j); err != nil {
		t.Fatal(err)
	}

	m.Tick(context.Background())
	expectStarted(t, started, j.id)

	m.Deschedule("h1", j)
	close(release)
	testutils.WaitCond(t, func() bool { return l.succeeded(j.id) }, 10*time.Millisecond, 5*time.Second)
	testutils.WaitCond(t, func() bool {
		_, ok := m.Running("h1")
		return !ok
	}, 10*time.Millisecond, 5*time.Second)

	m.Tick(context.Background())
	time.Sleep(50 * time.Millisecond)
	if v := j.runs.Load(); v != 1 {
		t.Fatalf("runs = %d, expected 1", v)
	}
}

func TestManagerQueueFullReleasesLock(t *testing.T) {
	store := locktest.New()
	f := newFactory(t, store)
	m, _ := newManager(t, f, testConfig(1, 1))

	started := make(chan uuid.UUID, 3)
	release := make(chan struct{})
	defer close(release)

	a := newFakeJob(1, time.Hour, "ra")
	blockingRun(a, started, release)
	if err := m.Schedule("h1", a); err != nil {
		t.Fatal(err)
	}
	m.Tick(context.Background())
	expectStarted(t, started, a.id)

	b := newFakeJob(1, time.Hour, "rb")
	c := newFakeJob(1, time.Hour, "rc")
	blockingRun(b, started, release)
	blockingRun(c, started, release)
	if err := m.Schedule("h2", b); err != nil {
		t.Fatal(err)
	}
	if err := m.Schedule("h3", c); err != nil {
		t.Fatal(err)
	}
	m.Tick(context.Background())

	if _, ok := store.Record("rb"); !ok {
		t.Fatal("queued job lock released")
	}
	if _, ok := store.Record("rc"); ok {
		t.Fatal("skipped job lock not released")
	}
	if _, ok := m.Running("h3"); ok {
		t.Fatal("skipped job marked as running")
	}
}

func TestManagerLockLostCancelsRun(t *testing.T) {
	store := locktest.New()
	f := newFactory(t, store)
	m, l := newManager(t, f, testConfig(1, 1))

	started := make(chan uuid.UUID, 1)
	j := newFakeJob(1, time.Hour, "r1")
	j.run = func(ctx context.Context, stop <-chan struct{}) error {
		started <- j.id
		<-ctx.Done()
		return ctx.Err()
	}
	if err := m.Schedule("h1", j); err != nil {
		t.Fatal(err)
	}

	m.Tick(context.Background())
	expectStarted(t, started, j.id)

	now := timeutc.CQL(timeutc.Now())
	store.Put(lock.Record{
		Resource:   "r1",
		Holder:     uuid.MustRandom(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(time.Hour),
	})

	testutils.WaitCond(t, func() bool { return l.error(j.id) != nil }, 10*time.Millisecond, 5*time.Second)
	if err := l.error(j.id); !errors.Is(err, lock.ErrLockLost) {
		t.Fatalf("run error %v, expected %v", err, lock.ErrLockLost)
	}
}

func TestManagerCloseLetsUnitFinish(t *testing.T) {
	f := newFactory(t, locktest.New())
	m, err := schedule.NewManager(testConfig(1, 1), f, log.NopLogger)
	if err != nil {
		t.Fatal(err)
	}

	var (
		units    = atomic.NewInt32(0)
		inUnit   = make(chan struct{})
		unitDone = make(chan struct{})
	)
	j := newFakeJob(1, time.Hour, "r1")
	j.run = func(ctx context.Context, stop <-chan struct{}) error {
		for i := 0; i < 3; i++ {
			select {
			case <-stop:
				return nil
			default:
			}
			units.Inc()
			if i == 0 {
				close(inUnit)
				<-unitDone
			}
		}
		return nil
	}
	if err := m.Schedule("h1", j); err != nil {
		t.Fatal(err)
	}
	m.Tick(context.Background())
	<-inUnit

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close() returned before unit finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(unitDone)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return")
	}
	if v := units.Load(); v != 1 {
		t.Fatalf("units = %d, expected 1", v)
	}
	if err := m.Schedule("h1", j); !errors.Is(err, schedule.ErrClosed) {
		t.Fatalf("Schedule() error %v, expected %v", err, schedule.ErrClosed)
	}
}

func TestManagerStart(t *testing.T) {
	f := newFactory(t, locktest.New())
	c := testConfig(1, 1)
	c.RunInterval = 10 * time.Millisecond
	m, l := newManager(t, f, c)

	j := newFakeJob(1, time.Hour, "r1")
	if err := m.Schedule("h1", j); err != nil {
		t.Fatal(err)
	}
	m.Start(context.Background())

	testutils.WaitCond(t, func() bool { return l.succeeded(j.id) }, 10*time.Millisecond, 5*time.Second)
}
