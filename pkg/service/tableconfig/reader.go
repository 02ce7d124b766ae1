// Copyright (C) 2017 ScyllaDB

package tableconfig

import (
	"context"

	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/scylla-autorepair/pkg/util/query"
)

// SchemaReader lists keyspaces, tables and views of the cluster.
type SchemaReader interface {
	Keyspaces(ctx context.Context) ([]query.Keyspace, error)
	Tables(ctx context.Context, keyspace string) ([]query.Table, error)
	Views(ctx context.Context, keyspace string) ([]query.View, error)
}

// CQLSchemaReader reads the schema from system_schema tables.
type CQLSchemaReader struct {
	session gocqlx.Session
}

var _ SchemaReader = CQLSchemaReader{}

// NewCQLSchemaReader returns schema reader using session.
func NewCQLSchemaReader(session gocqlx.Session) CQLSchemaReader {
	return CQLSchemaReader{session: session}
}

// Keyspaces implements SchemaReader.
func (r CQLSchemaReader) Keyspaces(ctx context.Context) ([]query.Keyspace, error) {
	return query.GetKeyspaces(ctx, r.session)
}

// Tables implements SchemaReader.
func (r CQLSchemaReader) Tables(ctx context.Context, keyspace string) ([]query.Table, error) {
	return query.GetTables(ctx, r.session, keyspace)
}

// Views implements SchemaReader.
func (r CQLSchemaReader) Views(ctx context.Context, keyspace string) ([]query.View, error) {
	return query.GetViews(ctx, r.session, keyspace)
}
