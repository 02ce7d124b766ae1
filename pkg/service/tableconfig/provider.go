// Copyright (C) 2017 ScyllaDB

package tableconfig

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/metrics"
	"github.com/scylladb/scylla-autorepair/pkg/service/repair"
	"github.com/scylladb/scylla-autorepair/pkg/util/query"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"github.com/scylladb/scylla-autorepair/pkg/util/workerpool"
	"go.uber.org/multierr"
)

// ErrNotConnected is returned when events are emitted before Connect.
var ErrNotConnected = errors.New("configuration provider not connected")

// Configurer sets repair configurations of tables, it is implemented by
// repair.Scheduler.
type Configurer interface {
	PutConfigurations(ctx context.Context, node cluster.Node, table repair.TableReference, configs []repair.Configuration) error
	RemoveConfiguration(ctx context.Context, node cluster.Node, table repair.TableReference) error
}

type handlerFunc func(ctx context.Context, e Event) error

// Provider translates schema and topology events to repair configurations
// of tables on the managed nodes.
//
// Until Connect is called the provider has no schema reader, events are
// rejected with ErrNotConnected and Close does nothing.
type Provider struct {
	config     Config
	configurer Configurer
	tables     *repair.TableReferenceFactory
	filter     *ReplicatedTables
	metrics    metrics.TableConfigMetrics
	logger     log.Logger
	dispatch   map[EventKind]handlerFunc

	mu         sync.Mutex
	reader     SchemaReader
	pool       *workerpool.Pool[Event]
	nodes      map[uuid.UUID]cluster.Node
	configured map[uuid.UUID]map[repair.TableReference]struct{}
}

// NewProvider returns a disconnected provider managing repair of nodes.
func NewProvider(config Config, configurer Configurer, tables *repair.TableReferenceFactory, nodes []cluster.Node,
	m metrics.TableConfigMetrics, logger log.Logger,
) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if configurer == nil || tables == nil {
		return nil, errors.New("missing configurer or table reference factory")
	}
	filter, err := NewReplicatedTables(config.Tables)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:     config,
		configurer: configurer,
		tables:     tables,
		filter:     filter,
		metrics:    m,
		logger:     logger,
		nodes:      make(map[uuid.UUID]cluster.Node, len(nodes)),
		configured: make(map[uuid.UUID]map[repair.TableReference]struct{}),
	}
	for _, n := range nodes {
		p.nodes[n.ID] = n
	}
	p.dispatch = map[EventKind]handlerFunc{
		KeyspaceCreated: p.onKeyspaceCreated,
		KeyspaceDropped: p.onKeyspaceDropped,
		TableCreated:    p.onTableCreated,
		TableDropped:    p.onTableDropped,
		NodeUp:          p.onNodeStateChanged,
		NodeDown:        p.onNodeStateChanged,
		NodeAdded:       p.onNodeAdded,
		NodeRemoved:     p.onNodeRemoved,
	}
	return p, nil
}

// Connect sets the schema reader, starts event workers and configures all
// tables of the managed nodes.
func (p *Provider) Connect(ctx context.Context, reader SchemaReader) error {
	p.mu.Lock()
	if p.reader != nil {
		p.mu.Unlock()
		return errors.New("already connected")
	}
	p.reader = reader
	p.pool = workerpool.New(context.WithoutCancel(ctx), p.config.Workers, p.config.QueueSize, p.handle)
	p.mu.Unlock()

	p.logger.Info(ctx, "Connected, configuring tables")
	return p.setupConfiguration(ctx)
}

func (p *Provider) connected() (SchemaReader, *workerpool.Pool[Event]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reader, p.pool
}

// Emit queues the event, it blocks if the queue is full.
func (p *Provider) Emit(ctx context.Context, e Event) error {
	_, pool := p.connected()
	if pool == nil {
		return p.reject(ctx, e)
	}
	return pool.Submit(ctx, e)
}

// TryEmit queues the event or fails with workerpool.ErrQueueFull if the
// queue is full.
func (p *Provider) TryEmit(ctx context.Context, e Event) error {
	_, pool := p.connected()
	if pool == nil {
		return p.reject(ctx, e)
	}
	err := pool.TrySubmit(e)
	if err != nil {
		p.metrics.OnEvent(e.Kind.String(), "rejected")
		p.logger.Info(ctx, "Event rejected", "event", e, "error", err)
	}
	return err
}

func (p *Provider) reject(ctx context.Context, e Event) error {
	p.metrics.OnEvent(e.Kind.String(), "rejected")
	p.logger.Debug(ctx, "Event before connect", "event", e)
	return ErrNotConnected
}

func (p *Provider) handle(ctx context.Context, e Event) {
	h, ok := p.dispatch[e.Kind]
	if !ok {
		p.metrics.OnEvent(e.Kind.String(), "ignored")
		return
	}
	p.metrics.OnEvent(e.Kind.String(), "handled")
	if err := h(ctx, e); err != nil {
		p.metrics.OnError(e.Kind.String())
		p.logger.Error(ctx, "Failed to handle event", "event", e, "error", err)
	}
}

// Nodes returns the managed nodes ordered by address.
func (p *Provider) Nodes() []cluster.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nodesLocked()
}

func (p *Provider) nodesLocked() []cluster.Node {
	out := make([]cluster.Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n)
	}
	cluster.SortNodes(out)
	return out
}

// Configured returns tables with repair configured on a node.
func (p *Provider) Configured(hostID uuid.UUID) []repair.TableReference {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]repair.TableReference, 0, len(p.configured[hostID]))
	for t := range p.configured[hostID] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func (p *Provider) isManaged(node cluster.Node) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.nodes[node.ID]
	return ok
}

func (p *Provider) track(node cluster.Node, t repair.TableReference, configured bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.configured[node.ID]
	if configured {
		if m == nil {
			m = make(map[repair.TableReference]struct{})
			p.configured[node.ID] = m
		}
		m[t] = struct{}{}
	} else {
		delete(m, t)
	}
	p.metrics.SetConfiguredTables(node.Address, len(m))
}

func (p *Provider) trackedIn(node cluster.Node, keyspace string) []repair.TableReference {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []repair.TableReference
	for t := range p.configured[node.ID] {
		if t.Keyspace == keyspace {
			out = append(out, t)
		}
	}
	return out
}

func (p *Provider) keyspace(ctx context.Context, name string) (query.Keyspace, bool, error) {
	reader, _ := p.connected()
	keyspaces, err := reader.Keyspaces(ctx)
	if err != nil {
		return query.Keyspace{}, false, err
	}
	for _, ks := range keyspaces {
		if ks.Name == name {
			return ks, true, nil
		}
	}
	return query.Keyspace{}, false, nil
}

func (p *Provider) updateConfiguration(ctx context.Context, node cluster.Node, t query.Table) error {
	ref := p.tables.ForTable(t.Keyspace, t.Name)
	if !p.filter.AcceptTable(t) {
		return p.removeConfiguration(ctx, node, ref)
	}
	configs := enabledConfigurations(t, p.config.Configurations(t.Keyspace, t.Name))
	if err := p.configurer.PutConfigurations(ctx, node, ref, configs); err != nil {
		return errors.Wrapf(err, "configure %s on %s", ref, node)
	}
	p.track(node, ref, len(configs) > 0)
	return nil
}

func (p *Provider) removeConfiguration(ctx context.Context, node cluster.Node, ref repair.TableReference) error {
	if err := p.configurer.RemoveConfiguration(ctx, node, ref); err != nil {
		return errors.Wrapf(err, "remove %s on %s", ref, node)
	}
	p.track(node, ref, false)
	return nil
}

// syncKeyspace configures tables of keyspace ks on node or removes their
// configurations if the keyspace is not replicated.
func (p *Provider) syncKeyspace(ctx context.Context, node cluster.Node, ks query.Keyspace, tables []query.Table) error {
	var err error
	if p.filter.AcceptKeyspace(node, ks) {
		for _, t := range tables {
			err = multierr.Append(err, p.updateConfiguration(ctx, node, t))
		}
		return err
	}
	for _, ref := range p.trackedIn(node, ks.Name) {
		err = multierr.Append(err, p.removeConfiguration(ctx, node, ref))
	}
	return err
}

func (p *Provider) syncNodes(ctx context.Context, nodes []cluster.Node) error {
	reader, _ := p.connected()
	keyspaces, err := reader.Keyspaces(ctx)
	if err != nil {
		return err
	}
	for _, ks := range keyspaces {
		tables, e := reader.Tables(ctx, ks.Name)
		if e != nil {
			err = multierr.Append(err, e)
			continue
		}
		for _, n := range nodes {
			err = multierr.Append(err, p.syncKeyspace(ctx, n, ks, tables))
		}
	}
	return err
}

func (p *Provider) setupConfiguration(ctx context.Context) error {
	return p.syncNodes(ctx, p.Nodes())
}

func (p *Provider) onKeyspaceCreated(ctx context.Context, e Event) error {
	ks, ok, err := p.keyspace(ctx, e.Keyspace)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Info(ctx, "Keyspace not found, removing", "keyspace", e.Keyspace)
		return p.onKeyspaceDropped(ctx, e)
	}
	reader, _ := p.connected()
	tables, err := reader.Tables(ctx, ks.Name)
	if err != nil {
		return err
	}
	for _, n := range p.Nodes() {
		err = multierr.Append(err, p.syncKeyspace(ctx, n, ks, tables))
	}
	return err
}

func (p *Provider) onKeyspaceDropped(ctx context.Context, e Event) error {
	var err error
	for _, n := range p.Nodes() {
		for _, ref := range p.trackedIn(n, e.Keyspace) {
			err = multierr.Append(err, p.removeConfiguration(ctx, n, ref))
		}
	}
	if err == nil {
		p.tables.Forget(e.Keyspace)
	}
	return err
}

func (p *Provider) onTableCreated(ctx context.Context, e Event) error {
	ks, ok, err := p.keyspace(ctx, e.Keyspace)
	if err != nil || !ok {
		return err
	}
	reader, _ := p.connected()
	tables, err := reader.Tables(ctx, ks.Name)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if t.Name != e.Table {
			continue
		}
		for _, n := range p.Nodes() {
			if p.filter.AcceptKeyspace(n, ks) {
				err = multierr.Append(err, p.updateConfiguration(ctx, n, t))
			}
		}
	}
	return err
}

func (p *Provider) onTableDropped(ctx context.Context, e Event) error {
	ref := p.tables.ForTable(e.Keyspace, e.Table)
	var err error
	for _, n := range p.Nodes() {
		err = multierr.Append(err, p.removeConfiguration(ctx, n, ref))
	}
	if err == nil {
		p.tables.ForgetTable(e.Keyspace, e.Table)
	}
	return err
}

func (p *Provider) onNodeStateChanged(ctx context.Context, e Event) error {
	p.logger.Debug(ctx, "Node state changed", "node", e.Node, "event", e.Kind)
	return p.setupConfiguration(ctx)
}

func (p *Provider) onNodeAdded(ctx context.Context, e Event) error {
	if p.isManaged(e.Node) {
		return nil
	}
	p.logger.Info(ctx, "Node added", "node", e.Node, "host_id", e.Node.ID)

	p.mu.Lock()
	p.nodes[e.Node.ID] = e.Node
	p.mu.Unlock()

	return p.syncNodes(ctx, []cluster.Node{e.Node})
}

func (p *Provider) onNodeRemoved(ctx context.Context, e Event) error {
	if !p.isManaged(e.Node) {
		return nil
	}
	p.logger.Info(ctx, "Node removed", "node", e.Node, "host_id", e.Node.ID)

	err := p.removeAll(ctx, e.Node)

	p.mu.Lock()
	delete(p.nodes, e.Node.ID)
	delete(p.configured, e.Node.ID)
	p.mu.Unlock()
	p.metrics.DeleteHost(e.Node.Address)

	return err
}

func (p *Provider) removeAll(ctx context.Context, node cluster.Node) error {
	var err error
	for _, ref := range p.Configured(node.ID) {
		err = multierr.Append(err, p.removeConfiguration(ctx, node, ref))
	}
	return err
}

// Close stops event workers, queued events are handled first, and removes
// all configurations set by the provider. It does nothing if the provider
// is not connected.
func (p *Provider) Close(ctx context.Context) error {
	_, pool := p.connected()
	if pool == nil {
		return nil
	}
	pool.Close()

	var err error
	for _, n := range p.Nodes() {
		err = multierr.Append(err, p.removeAll(ctx, n))
	}
	return err
}
