// Copyright (C) 2017 ScyllaDB

package tableconfig

import (
	"fmt"

	"github.com/scylladb/scylla-autorepair/pkg/cluster"
)

// EventKind is a type of schema or topology change.
type EventKind int

// EventKind enumeration.
const (
	KeyspaceCreated EventKind = iota
	KeyspaceDropped
	TableCreated
	TableDropped
	ViewCreated
	ViewDropped
	NodeUp
	NodeDown
	NodeAdded
	NodeRemoved
)

var eventKindNames = [...]string{
	KeyspaceCreated: "keyspace_created",
	KeyspaceDropped: "keyspace_dropped",
	TableCreated:    "table_created",
	TableDropped:    "table_dropped",
	ViewCreated:     "view_created",
	ViewDropped:     "view_dropped",
	NodeUp:          "node_up",
	NodeDown:        "node_down",
	NodeAdded:       "node_added",
	NodeRemoved:     "node_removed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// Event describes a schema or topology change. Schema events set Keyspace
// and, for tables and views, Table. Node events set Node.
// Updates of keyspaces and tables are reported as Created.
type Event struct {
	Kind     EventKind
	Keyspace string
	Table    string
	Node     cluster.Node
}

func (e Event) String() string {
	switch e.Kind {
	case NodeUp, NodeDown, NodeAdded, NodeRemoved:
		return e.Kind.String() + " " + e.Node.String()
	case KeyspaceCreated, KeyspaceDropped:
		return e.Kind.String() + " " + e.Keyspace
	default:
		return e.Kind.String() + " " + e.Keyspace + "." + e.Table
	}
}
