// Copyright (C) 2017 ScyllaDB

package tableconfig

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/metrics"
	"github.com/scylladb/scylla-autorepair/pkg/service/repair"
	"github.com/scylladb/scylla-autorepair/pkg/util/query"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	node1 = cluster.Node{ID: uuid.MustParse("0f3b7d2a-1c4e-4b7a-9d2f-6a1b2c3d4e51"), Address: "192.168.100.11", DC: "dc1"}
	node2 = cluster.Node{ID: uuid.MustParse("0f3b7d2a-1c4e-4b7a-9d2f-6a1b2c3d4e52"), Address: "192.168.100.12", DC: "dc1"}
	node3 = cluster.Node{ID: uuid.MustParse("0f3b7d2a-1c4e-4b7a-9d2f-6a1b2c3d4e53"), Address: "192.168.100.21", DC: "dc2"}
)

func nts(rf map[string]string) map[string]string {
	out := map[string]string{"class": "org.apache.cassandra.locator.NetworkTopologyStrategy"}
	for k, v := range rf {
		out[k] = v
	}
	return out
}

func table(ks, name string) query.Table {
	return query.Table{
		Keyspace:   ks,
		Name:       name,
		Compaction: map[string]string{"class": "SizeTieredCompactionStrategy"},
	}
}

// fakeReader is an in-memory schema.
type fakeReader struct {
	mu        sync.Mutex
	keyspaces []query.Keyspace
	tables    map[string][]query.Table
	views     map[string][]query.View
	err       error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		tables: make(map[string][]query.Table),
		views:  make(map[string][]query.View),
	}
}

func (r *fakeReader) Keyspaces(ctx context.Context) ([]query.Keyspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]query.Keyspace(nil), r.keyspaces...), nil
}

func (r *fakeReader) Tables(ctx context.Context, keyspace string) ([]query.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]query.Table(nil), r.tables[keyspace]...), nil
}

func (r *fakeReader) Views(ctx context.Context, keyspace string) ([]query.View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]query.View(nil), r.views[keyspace]...), nil
}

// PutKeyspace adds or replaces a keyspace and its tables.
func (r *fakeReader) PutKeyspace(ks query.Keyspace, tables ...query.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropKeyspaceLocked(ks.Name)
	r.keyspaces = append(r.keyspaces, ks)
	r.tables[ks.Name] = tables
}

func (r *fakeReader) DropKeyspace(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropKeyspaceLocked(name)
}

func (r *fakeReader) dropKeyspaceLocked(name string) {
	for i := range r.keyspaces {
		if r.keyspaces[i].Name == name {
			r.keyspaces = append(r.keyspaces[:i], r.keyspaces[i+1:]...)
			break
		}
	}
	delete(r.tables, name)
	delete(r.views, name)
}

func (r *fakeReader) PutTable(t query.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.Keyspace] = append(r.tables[t.Keyspace], t)
}

func (r *fakeReader) DropTable(keyspace, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tables := r.tables[keyspace]
	for i := range tables {
		if tables[i].Name == name {
			r.tables[keyspace] = append(tables[:i], tables[i+1:]...)
			return
		}
	}
}

func (r *fakeReader) PutView(v query.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.Keyspace] = append(r.views[v.Keyspace], v)
}

// fakeConfigurer keeps configurations the way repair.Scheduler does.
type fakeConfigurer struct {
	mu      sync.Mutex
	configs map[string]int
	calls   int
}

func newFakeConfigurer() *fakeConfigurer {
	return &fakeConfigurer{configs: make(map[string]int)}
}

func configKey(node cluster.Node, table repair.TableReference) string {
	return node.Address + " " + table.String()
}

func (c *fakeConfigurer) PutConfigurations(ctx context.Context, node cluster.Node, table repair.TableReference, configs []repair.Configuration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	k := configKey(node, table)
	if len(configs) == 0 {
		delete(c.configs, k)
	} else {
		c.configs[k] = len(configs)
	}
	return nil
}

func (c *fakeConfigurer) RemoveConfiguration(ctx context.Context, node cluster.Node, table repair.TableReference) error {
	return c.PutConfigurations(ctx, node, table, nil)
}

// Configured returns sorted "host keyspace.table" keys.
func (c *fakeConfigurer) Configured() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.configs))
	for k := range c.configs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *fakeConfigurer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testConfig() Config {
	c := DefaultConfig()
	rc := repair.DefaultConfiguration()
	rc.IgnoreTWCS = true
	c.Default = []repair.Configuration{rc}
	return c
}

type testEnv struct {
	reader     *fakeReader
	configurer *fakeConfigurer
	tables     *repair.TableReferenceFactory
	provider   *Provider
}

func newTestEnv(t *testing.T, config Config, nodes ...cluster.Node) *testEnv {
	t.Helper()

	e := &testEnv{
		reader:     newFakeReader(),
		configurer: newFakeConfigurer(),
		tables:     repair.NewTableReferenceFactory(),
	}
	p, err := NewProvider(config, e.configurer, e.tables, nodes, metrics.NewTableConfigMetrics(), log.NopLogger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close(context.Background()) })
	e.provider = p
	return e
}

func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	if err := e.provider.Connect(context.Background(), e.reader); err != nil {
		t.Fatal("Connect() error", err)
	}
}

// handle runs event handler synchronously.
func (e *testEnv) handle(ev Event) {
	e.provider.handle(context.Background(), ev)
}
