// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
	"github.com/scylladb/scylla-autorepair/pkg/metrics"
	"github.com/scylladb/scylla-autorepair/pkg/repairstate"
	"github.com/scylladb/scylla-autorepair/pkg/repairstate/repairstatetest"
	"github.com/scylladb/scylla-autorepair/pkg/schedule"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	node1 = cluster.Node{ID: uuid.MustParse("5d3a1c74-4f5a-4d2b-9a8e-1c2d3e4f5a61"), Address: "192.168.100.11", DC: "dc1"}
	node2 = cluster.Node{ID: uuid.MustParse("5d3a1c74-4f5a-4d2b-9a8e-1c2d3e4f5a62"), Address: "192.168.100.12", DC: "dc1"}

	range1 = dht.TokenRange{StartToken: -100, EndToken: 0}
	range2 = dht.TokenRange{StartToken: 0, EndToken: 100}
)

func ownedRanges() []repairstate.OwnedRange {
	return []repairstate.OwnedRange{
		{TokenRange: range1, Replicas: []string{node1.Address, node2.Address}},
		{TokenRange: range2, Replicas: []string{node1.Address, "192.168.100.13"}},
	}
}

func testConfiguration(t RepairType) Configuration {
	return Configuration{
		Interval:    time.Hour,
		Type:        t,
		Priority:    1,
		WarningTime: 2 * time.Hour,
		ErrorTime:   3 * time.Hour,
		BackoffTime: time.Hour,
	}
}

type managerOp struct {
	op  string
	job uuid.UUID
}

// fakeManager records Schedule and Deschedule calls.
type fakeManager struct {
	mu   sync.Mutex
	ops  []managerOp
	jobs map[uuid.UUID]schedule.Job
}

func newFakeManager() *fakeManager {
	return &fakeManager{jobs: make(map[uuid.UUID]schedule.Job)}
}

func (m *fakeManager) Schedule(host string, job schedule.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, managerOp{op: "schedule", job: job.ID()})
	m.jobs[job.ID()] = job
	return nil
}

func (m *fakeManager) Deschedule(host string, job schedule.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, managerOp{op: "deschedule", job: job.ID()})
	delete(m.jobs, job.ID())
}

func (m *fakeManager) Ops() []managerOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]managerOp(nil), m.ops...)
}

func (m *fakeManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// fakeRepairer records requests, f decides the outcome of a request.
type fakeRepairer struct {
	mu   sync.Mutex
	reqs []RepairRequest
	f    func(ctx context.Context, req RepairRequest) error
}

func (r *fakeRepairer) Repair(ctx context.Context, req RepairRequest) error {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	f := r.f
	r.mu.Unlock()
	if f != nil {
		return f(ctx, req)
	}
	return nil
}

func (r *fakeRepairer) Requests() []RepairRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RepairRequest(nil), r.reqs...)
}

// fakeTopology returns nodes set with Set.
type fakeTopology struct {
	mu    sync.Mutex
	nodes []cluster.Node
}

func (t *fakeTopology) Set(nodes ...cluster.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = nodes
}

func (t *fakeTopology) Nodes(ctx context.Context) ([]cluster.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]cluster.Node(nil), t.nodes...), nil
}

type testEnv struct {
	topology  *fakeTopology
	ownership *repairstatetest.Ownership
	history   *repairstatetest.History
	repairer  *fakeRepairer
	manager   *fakeManager
	faults    *LogFaultReporter
	scheduler *Scheduler
	tables    *TableReferenceFactory
}

func newTestEnv(t *testing.T, manager JobManager) *testEnv {
	t.Helper()

	e := &testEnv{
		topology:  &fakeTopology{},
		ownership: repairstatetest.NewOwnership(),
		history:   &repairstatetest.History{},
		repairer:  &fakeRepairer{},
		faults:    NewLogFaultReporter(log.NopLogger),
		tables:    NewTableReferenceFactory(),
	}
	e.ownership.Set(node1.Address, ownedRanges()...)

	if manager == nil {
		e.manager = newFakeManager()
		manager = e.manager
	}

	states, err := repairstate.NewFactory(e.ownership, e.history, 0, log.NopLogger)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewScheduler(DefaultConfig(), Deps{
		Manager:  manager,
		States:   states,
		History:  e.history,
		Repairer: e.repairer,
		Faults:   e.faults,
		Metrics:  metrics.NewRepairMetrics(),
		Topology: e.topology,
	}, log.NopLogger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	e.scheduler = s
	return e
}

// putHistory stores a successful repair of r finished at ts.
func (e *testEnv) putHistory(t *testing.T, r repairstate.OwnedRange, ts time.Time) {
	t.Helper()
	err := e.history.Put(context.Background(), repairstate.HistoryEntry{
		HostID:       node1.ID,
		Keyspace:     "ks",
		Table:        "tbl",
		TokenRange:   r.TokenRange,
		Participants: r.Replicas,
		Status:       repairstate.StatusSuccess,
		StartedAt:    ts.Add(-time.Minute),
		FinishedAt:   ts,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// job schedules a single configuration and returns its job.
func (e *testEnv) job(t *testing.T, c Configuration) *Job {
	t.Helper()
	table := e.tables.ForTable("ks", "tbl")
	if err := e.scheduler.PutConfigurations(context.Background(), node1, table, []Configuration{c}); err != nil {
		t.Fatal(err)
	}
	jobs := e.scheduler.allJobs()
	if len(jobs) != 1 {
		t.Fatalf("allJobs() = %d jobs, expected 1", len(jobs))
	}
	return jobs[0]
}
