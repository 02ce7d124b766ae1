// Copyright (C) 2017 ScyllaDB

package main

import (
	"bytes"
	"context"
	"text/template"
	"time"

	"github.com/gocql/gocql"
	"github.com/scylladb/go-log"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/migrate"
	config "github.com/scylladb/scylla-autorepair/pkg/config/server"
	schemamigrate "github.com/scylladb/scylla-autorepair/pkg/schema/migrate"
	"github.com/scylladb/scylla-autorepair/schema"
)

func keyspaceExists(c config.Config) (bool, error) {
	session, err := gocqlClusterConfigForDBInit(c).CreateSession()
	if err != nil {
		return false, err
	}
	defer session.Close()

	var cnt int
	q := session.Query("SELECT COUNT(keyspace_name) FROM system_schema.keyspaces WHERE keyspace_name = ?").Bind(c.Database.Keyspace)
	return cnt == 1, q.Scan(&cnt)
}

func createKeyspace(c config.Config) error {
	session, err := gocqlClusterConfigForDBInit(c).CreateSession()
	if err != nil {
		return err
	}
	defer session.Close()

	// Locks and repair history must survive a node going down, with RF=1
	// and more nodes raise RF up to 3.
	if c.Database.ReplicationFactor == 1 {
		var peers int
		if err := session.Query("SELECT COUNT(*) FROM system.peers").Scan(&peers); err != nil {
			return err
		}
		if peers > 0 {
			c.Database.ReplicationFactor = min(peers+1, 3)
		}
	}

	return session.Query(mustEvaluateCreateKeyspaceStmt(c)).Exec()
}

const createKeyspaceStmt = "CREATE KEYSPACE {{.Keyspace}} WITH replication = {'class': 'SimpleStrategy', 'replication_factor': {{.ReplicationFactor}}}"

func mustEvaluateCreateKeyspaceStmt(c config.Config) string {
	t := template.Must(template.New("").Parse(createKeyspaceStmt))
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, c.Database); err != nil {
		panic(err)
	}
	return buf.String()
}

func migrateSchema(c config.Config, logger log.Logger) error {
	cluster := gocqlClusterConfigForDBInit(c)
	cluster.Keyspace = c.Database.Keyspace

	session, err := gocqlx.WrapSession(cluster.CreateSession())
	if err != nil {
		return err
	}
	defer session.Close()

	schemamigrate.Logger = logger.Named("migrate")
	migrate.Callback = schemamigrate.Callback
	return migrate.FromFS(context.Background(), session, schema.Files)
}

func gocqlClusterConfigForDBInit(c config.Config) *gocql.ClusterConfig {
	cluster := gocqlClusterConfig(c)
	cluster.Keyspace = "system"
	cluster.Timeout = c.Database.MigrateTimeout
	cluster.MaxWaitSchemaAgreement = c.Database.MigrateMaxWaitSchemaAgreement

	// Schema changes from many hosts may conflict, use a single host.
	cluster.Hosts = []string{c.Database.InitAddr}
	cluster.DisableInitialHostLookup = true

	return cluster
}

func gocqlClusterConfig(c config.Config) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(c.Database.Hosts...)

	// Use ONE for a single node deployment, LOCAL_QUORUM when the local DC
	// is known and QUORUM otherwise.
	switch {
	case c.Database.LocalDC != "":
		cluster.Consistency = gocql.LocalQuorum
	case c.Database.ReplicationFactor == 1:
		cluster.Consistency = gocql.One
	default:
		cluster.Consistency = gocql.Quorum
	}
	cluster.SerialConsistency = serialConsistency(c)

	cluster.Keyspace = c.Database.Keyspace
	cluster.Timeout = c.Database.Timeout
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 5,
		Min:        time.Second,
		Max:        10 * time.Second,
	}

	// With a single node the control connection must not mark the only host
	// down, that would drop the connection pool and prevent retries.
	if c.Database.ReplicationFactor == 1 {
		cluster.ConvictionPolicy = neverConvictionPolicy{}
	}

	if c.Database.SSL {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 c.SSL.CertFile,
			CertPath:               c.SSL.UserCertFile,
			KeyPath:                c.SSL.UserKeyFile,
			EnableHostVerification: c.SSL.Validate,
		}
	}

	if c.Database.User != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: c.Database.User,
			Password: c.Database.Password,
		}
	}

	if c.Database.TokenAware {
		fallback := gocql.RoundRobinHostPolicy()
		if c.Database.LocalDC != "" {
			fallback = gocql.DCAwareRoundRobinPolicy(c.Database.LocalDC)
		}
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(fallback)
	}

	return cluster
}

// serialConsistency returns consistency of the lightweight transactions
// used by locks.
func serialConsistency(c config.Config) gocql.SerialConsistency {
	if c.Database.LocalDC != "" {
		return gocql.LocalSerial
	}
	return gocql.Serial
}

type neverConvictionPolicy struct{}

func (e neverConvictionPolicy) AddFailure(_ error, _ *gocql.HostInfo) bool {
	return false
}

func (e neverConvictionPolicy) Reset(_ *gocql.HostInfo) {}
