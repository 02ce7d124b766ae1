// Copyright (C) 2017 ScyllaDB

package tableconfig

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/service/repair"
	"github.com/scylladb/scylla-autorepair/pkg/util/inexlist"
	"github.com/scylladb/scylla-autorepair/pkg/util/query"
)

// Replicated system keyspaces that are repaired like user keyspaces.
var replicatedSystemKeyspaces = strset.New(
	"system_auth",
	"system_distributed",
	"system_traces",
)

const twcs = "TimeWindowCompactionStrategy"

// ReplicatedTables decides which tables need repair on a node.
type ReplicatedTables struct {
	tables inexlist.InExList
}

// NewReplicatedTables returns a filter selecting tables matching
// "keyspace.table" glob patterns.
func NewReplicatedTables(patterns []string) (*ReplicatedTables, error) {
	l, err := inexlist.ParseInExList(patterns)
	if err != nil {
		return nil, errors.Wrap(err, "parse tables filter")
	}
	return &ReplicatedTables{tables: l}, nil
}

// AcceptKeyspace returns true if keyspace has more than one replica in the
// datacenter of the node.
func (f *ReplicatedTables) AcceptKeyspace(node cluster.Node, ks query.Keyspace) bool {
	if strings.HasPrefix(ks.Name, "system") && !replicatedSystemKeyspaces.Has(ks.Name) {
		return false
	}
	switch ks.Strategy() {
	case "LocalStrategy":
		return false
	case "EverywhereStrategy":
		return true
	}
	return ks.ReplicationFactor(node.DC) > 1
}

// AcceptTable returns true if table matches the patterns.
func (f *ReplicatedTables) AcceptTable(t query.Table) bool {
	return f.tables.Match(t.Keyspace + "." + t.Name)
}

// enabledConfigurations returns configurations that shall be scheduled for
// table t.
func enabledConfigurations(t query.Table, configs []repair.Configuration) []repair.Configuration {
	var out []repair.Configuration
	for _, c := range configs {
		if c.Disabled {
			continue
		}
		if c.IgnoreTWCS && t.CompactionStrategy() == twcs {
			continue
		}
		out = append(out, c)
	}
	return out
}
