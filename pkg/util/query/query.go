// Copyright (C) 2023 ScyllaDB

package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/qb"
)

// Keyspace is a row of system_schema.keyspaces.
type Keyspace struct {
	Name        string            `db:"keyspace_name"`
	Replication map[string]string `db:"replication"`
}

// Strategy returns the replication strategy name without package prefix.
func (k Keyspace) Strategy() string {
	c := k.Replication["class"]
	if i := strings.LastIndex(c, "."); i >= 0 {
		c = c[i+1:]
	}
	return c
}

// ReplicationFactor returns number of replicas in dc. For strategies not
// aware of datacenters the global replication factor is returned.
func (k Keyspace) ReplicationFactor(dc string) int {
	v, ok := k.Replication[dc]
	if !ok || k.Strategy() != "NetworkTopologyStrategy" {
		v = k.Replication["replication_factor"]
	}
	rf, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return rf
}

// Table is a row of system_schema.tables.
type Table struct {
	Keyspace   string            `db:"keyspace_name"`
	Name       string            `db:"table_name"`
	Compaction map[string]string `db:"compaction"`
}

// CompactionStrategy returns the compaction strategy name without package
// prefix.
func (t Table) CompactionStrategy() string {
	c := t.Compaction["class"]
	if i := strings.LastIndex(c, "."); i >= 0 {
		c = c[i+1:]
	}
	return c
}

// GetKeyspaces returns all keyspaces.
func GetKeyspaces(ctx context.Context, s gocqlx.Session) ([]Keyspace, error) {
	q := qb.Select("system_schema.keyspaces").
		Columns("keyspace_name", "replication").
		Query(s).
		WithContext(ctx)

	var out []Keyspace
	if err := q.SelectRelease(&out); err != nil {
		return nil, errors.Wrap(err, "get keyspaces")
	}
	return out, nil
}

// GetTables returns tables of a keyspace.
func GetTables(ctx context.Context, s gocqlx.Session, keyspace string) ([]Table, error) {
	q := qb.Select("system_schema.tables").
		Columns("keyspace_name", "table_name", "compaction").
		Where(qb.Eq("keyspace_name")).
		Query(s).
		WithContext(ctx).
		Bind(keyspace)

	var out []Table
	if err := q.SelectRelease(&out); err != nil {
		return nil, errors.Wrapf(err, "get tables of %s", keyspace)
	}
	return out, nil
}

// View is a row of system_schema.views.
type View struct {
	Keyspace  string `db:"keyspace_name"`
	Name      string `db:"view_name"`
	BaseTable string `db:"base_table_name"`
}

// GetViews returns materialized views of a keyspace.
func GetViews(ctx context.Context, s gocqlx.Session, keyspace string) ([]View, error) {
	q := qb.Select("system_schema.views").
		Columns("keyspace_name", "view_name", "base_table_name").
		Where(qb.Eq("keyspace_name")).
		Query(s).
		WithContext(ctx).
		Bind(keyspace)

	var out []View
	if err := q.SelectRelease(&out); err != nil {
		return nil, errors.Wrapf(err, "get views of %s", keyspace)
	}
	return out, nil
}
