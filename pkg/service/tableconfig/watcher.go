// Copyright (C) 2017 ScyllaDB

package tableconfig

import (
	"context"
	"reflect"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/go-set/strset"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/util/query"
	"github.com/scylladb/scylla-autorepair/pkg/util/tickrun"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"go.uber.org/multierr"
)

// Emitter accepts events, it is implemented by Provider.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// NodeLister returns cluster members, it is implemented by
// cluster.Topology.
type NodeLister interface {
	Nodes(ctx context.Context) ([]cluster.Node, error)
}

// LiveNodes returns addresses of live nodes, it is implemented by
// scyllaclient.Client.
type LiveNodes interface {
	LiveNodes(ctx context.Context) ([]string, error)
}

type schemaState struct {
	keyspaces map[string]query.Keyspace
	tables    map[string]map[string]query.Table
	views     map[string]*strset.Set
}

// Watcher polls the schema and topology and emits events for the
// differences found between polls.
type Watcher struct {
	reader  SchemaReader
	nodes   NodeLister
	live    LiveNodes
	filter  *cluster.Filter
	emitter Emitter
	logger  log.Logger

	schema  schemaState
	members map[uuid.UUID]cluster.Node
	up      *strset.Set
	init    bool
}

// NewWatcher returns a watcher emitting events to emitter. Nodes not
// passing filter are ignored. If live is nil node up and down events are
// not emitted.
func NewWatcher(reader SchemaReader, nodes NodeLister, live LiveNodes, filter *cluster.Filter, emitter Emitter, logger log.Logger) *Watcher {
	return &Watcher{
		reader:  reader,
		nodes:   nodes,
		live:    live,
		filter:  filter,
		emitter: emitter,
		logger:  logger,
		up:      strset.New(),
	}
}

// Start polls every interval until the returned stop function is called.
func (w *Watcher) Start(ctx context.Context, interval time.Duration) (stop func()) {
	return tickrun.NewTicker(ctx, interval, func(ctx context.Context) {
		if err := w.Poll(ctx); err != nil {
			w.logger.Error(ctx, "Schema poll failed", "error", err)
		}
	})
}

// Poll reads the schema and topology and emits events. The first call
// records the state without emitting.
func (w *Watcher) Poll(ctx context.Context) error {
	schema, err := w.readSchema(ctx)
	if err != nil {
		return errors.Wrap(err, "read schema")
	}
	members, err := w.readMembers(ctx)
	if err != nil {
		return errors.Wrap(err, "read topology")
	}
	var up *strset.Set
	if w.live != nil {
		live, err := w.live.LiveNodes(ctx)
		if err != nil {
			return errors.Wrap(err, "read live nodes")
		}
		up = strset.New(live...)
	}

	if !w.init {
		w.schema, w.members, w.init = schema, members, true
		if up != nil {
			w.up = up
		}
		return nil
	}

	var events []Event
	events = append(events, diffSchema(w.schema, schema)...)
	events = append(events, diffMembers(w.members, members)...)
	if up != nil {
		events = append(events, diffLive(w.up, up, w.members, members)...)
	}

	for _, e := range events {
		w.logger.Debug(ctx, "Emitting event", "event", e)
		if err := w.emitter.Emit(ctx, e); err != nil {
			// State is not advanced, events are emitted again on next poll
			return errors.Wrapf(err, "emit %s", e)
		}
	}
	w.schema, w.members = schema, members
	if up != nil {
		w.up = up
	}
	return nil
}

func (w *Watcher) readSchema(ctx context.Context) (schemaState, error) {
	keyspaces, err := w.reader.Keyspaces(ctx)
	if err != nil {
		return schemaState{}, err
	}
	s := schemaState{
		keyspaces: make(map[string]query.Keyspace, len(keyspaces)),
		tables:    make(map[string]map[string]query.Table, len(keyspaces)),
		views:     make(map[string]*strset.Set, len(keyspaces)),
	}
	for _, ks := range keyspaces {
		tables, e := w.reader.Tables(ctx, ks.Name)
		if e != nil {
			err = multierr.Append(err, e)
			continue
		}
		views, e := w.reader.Views(ctx, ks.Name)
		if e != nil {
			err = multierr.Append(err, e)
			continue
		}
		s.keyspaces[ks.Name] = ks
		vs := strset.New()
		for _, v := range views {
			vs.Add(v.Name)
		}
		s.views[ks.Name] = vs
		m := make(map[string]query.Table, len(tables))
		for _, t := range tables {
			m[t.Name] = t
		}
		s.tables[ks.Name] = m
	}
	return s, err
}

func (w *Watcher) readMembers(ctx context.Context) (map[uuid.UUID]cluster.Node, error) {
	nodes, err := w.nodes.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	if w.filter != nil {
		nodes = w.filter.Apply(nodes)
	}
	out := make(map[uuid.UUID]cluster.Node, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out, nil
}

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// diffSchema returns events transforming prev into cur. Tables of created
// and dropped keyspaces are covered by the keyspace event.
func diffSchema(prev, cur schemaState) []Event {
	var out []Event
	for _, name := range sortedKeys(prev.keyspaces) {
		if _, ok := cur.keyspaces[name]; !ok {
			out = append(out, Event{Kind: KeyspaceDropped, Keyspace: name})
		}
	}
	for _, name := range sortedKeys(cur.keyspaces) {
		ks := cur.keyspaces[name]
		p, ok := prev.keyspaces[name]
		if !ok || !reflect.DeepEqual(p.Replication, ks.Replication) {
			out = append(out, Event{Kind: KeyspaceCreated, Keyspace: name})
			continue
		}
		out = append(out, diffTables(name, prev.tables[name], cur.tables[name])...)
		out = append(out, diffViews(name, prev.views[name], cur.views[name])...)
	}
	return out
}

func diffViews(keyspace string, prev, cur *strset.Set) []Event {
	var out []Event
	dropped := strset.Difference(prev, cur).List()
	sort.Strings(dropped)
	for _, name := range dropped {
		out = append(out, Event{Kind: ViewDropped, Keyspace: keyspace, Table: name})
	}
	created := strset.Difference(cur, prev).List()
	sort.Strings(created)
	for _, name := range created {
		out = append(out, Event{Kind: ViewCreated, Keyspace: keyspace, Table: name})
	}
	return out
}

func diffTables(keyspace string, prev, cur map[string]query.Table) []Event {
	var out []Event
	for _, name := range sortedKeys(prev) {
		if _, ok := cur[name]; !ok {
			out = append(out, Event{Kind: TableDropped, Keyspace: keyspace, Table: name})
		}
	}
	for _, name := range sortedKeys(cur) {
		p, ok := prev[name]
		if !ok || !reflect.DeepEqual(p.Compaction, cur[name].Compaction) {
			out = append(out, Event{Kind: TableCreated, Keyspace: keyspace, Table: name})
		}
	}
	return out
}

func sortedNodes(m map[uuid.UUID]cluster.Node) []cluster.Node {
	out := make([]cluster.Node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	cluster.SortNodes(out)
	return out
}

func diffMembers(prev, cur map[uuid.UUID]cluster.Node) []Event {
	var out []Event
	for _, n := range sortedNodes(prev) {
		if _, ok := cur[n.ID]; !ok {
			out = append(out, Event{Kind: NodeRemoved, Node: n})
		}
	}
	for _, n := range sortedNodes(cur) {
		if _, ok := prev[n.ID]; !ok {
			out = append(out, Event{Kind: NodeAdded, Node: n})
		}
	}
	return out
}

// diffLive returns state changes of nodes that are members in both polls.
func diffLive(prev, cur *strset.Set, prevMembers, members map[uuid.UUID]cluster.Node) []Event {
	var out []Event
	for _, n := range sortedNodes(members) {
		if _, ok := prevMembers[n.ID]; !ok {
			continue
		}
		switch was, is := prev.Has(n.Address), cur.Has(n.Address); {
		case was && !is:
			out = append(out, Event{Kind: NodeDown, Node: n})
		case !was && is:
			out = append(out, Event{Kind: NodeUp, Node: n})
		}
	}
	return out
}
