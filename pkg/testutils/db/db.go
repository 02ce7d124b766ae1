// Copyright (C) 2017 ScyllaDB

// Package db creates database sessions for integration tests.
package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/migrate"
	"github.com/scylladb/gocqlx/v2/qb"
	schemamigrate "github.com/scylladb/scylla-autorepair/pkg/schema/migrate"
	"github.com/scylladb/scylla-autorepair/pkg/testutils/testconfig"
	"github.com/scylladb/scylla-autorepair/schema"
)

// Keyspace is the keyspace created for tests.
const Keyspace = "test_scylla_autorepair"

var initOnce sync.Once

// CreateSession recreates the test keyspace once per process, applies the
// schema and returns a session bound to the keyspace.
func CreateSession(tb testing.TB) gocqlx.Session {
	tb.Helper()

	cluster := createCluster()
	initOnce.Do(func() {
		createTestKeyspace(tb, cluster, Keyspace)
	})

	c := *cluster
	c.Keyspace = Keyspace
	session, err := gocqlx.WrapSession(c.CreateSession())
	if err != nil {
		tb.Fatal("createSession:", err)
	}
	tb.Cleanup(session.Close)

	migrate.Callback = schemamigrate.Callback
	if err := migrate.FromFS(context.Background(), session, schema.Files); err != nil {
		tb.Fatal("migrate:", err)
	}
	return session
}

// CreateSystemSession returns a session not bound to any keyspace.
func CreateSystemSession(tb testing.TB) gocqlx.Session {
	tb.Helper()

	session, err := gocqlx.WrapSession(createCluster().CreateSession())
	if err != nil {
		tb.Fatal("createSession:", err)
	}
	tb.Cleanup(session.Close)
	return session
}

func createCluster() *gocql.ClusterConfig {
	cluster := gocql.NewCluster(testconfig.ClusterHosts()...)
	cluster.Timeout = testconfig.CQLTimeout()
	cluster.Consistency = gocql.Quorum
	cluster.MaxWaitSchemaAgreement = 2 * time.Minute
	if user, pass := testconfig.Credentials(); user != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: user,
			Password: pass,
		}
	}
	return cluster
}

func createTestKeyspace(tb testing.TB, cluster *gocql.ClusterConfig, keyspace string) {
	tb.Helper()

	c := *cluster
	c.Keyspace = "system"
	session, err := gocqlx.WrapSession(c.CreateSession())
	if err != nil {
		tb.Fatal(err)
	}
	defer session.Close()

	ExecStmt(tb, session, fmt.Sprintf("DROP KEYSPACE IF EXISTS %q", keyspace))
	ExecStmt(tb, session, fmt.Sprintf(`CREATE KEYSPACE %q
	WITH replication = {
		'class' : 'NetworkTopologyStrategy',
		'replication_factor' : 1
	}`, keyspace))
}

// ExecStmt executes given statement.
func ExecStmt(tb testing.TB, session gocqlx.Session, stmt string) {
	tb.Helper()

	if err := session.ExecStmt(stmt); err != nil {
		tb.Fatal("exec failed", stmt, err)
	}
}

// Truncate removes all rows from the given tables of the test keyspace.
func Truncate(tb testing.TB, session gocqlx.Session, tables ...string) {
	tb.Helper()

	for _, t := range tables {
		ExecStmt(tb, session, fmt.Sprintf("TRUNCATE %q.%q", Keyspace, t))
	}
}

// CountRows returns number of rows in table of the test keyspace.
func CountRows(tb testing.TB, session gocqlx.Session, table string) int {
	tb.Helper()

	var n int
	q := qb.Select(Keyspace + "." + table).CountAll().Query(session)
	if err := q.GetRelease(&n); err != nil {
		tb.Fatal("count", table, err)
	}
	return n
}
