// Copyright (C) 2017 ScyllaDB

package server

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/config"
	"github.com/scylladb/scylla-autorepair/pkg/lock"
	"github.com/scylladb/scylla-autorepair/pkg/schedule"
	"github.com/scylladb/scylla-autorepair/pkg/scyllaclient"
	"github.com/scylladb/scylla-autorepair/pkg/service/repair"
	"github.com/scylladb/scylla-autorepair/pkg/service/tableconfig"
	"github.com/scylladb/scylla-autorepair/pkg/util/cfgutil"
	"go.uber.org/multierr"
)

// DBConfig specifies backend database configuration options.
type DBConfig struct {
	Hosts                         []string      `yaml:"hosts"`
	SSL                           bool          `yaml:"ssl"`
	User                          string        `yaml:"user"`
	Password                      string        `yaml:"password"`
	LocalDC                       string        `yaml:"local_dc"`
	Keyspace                      string        `yaml:"keyspace"`
	MigrateTimeout                time.Duration `yaml:"migrate_timeout"`
	MigrateMaxWaitSchemaAgreement time.Duration `yaml:"migrate_max_wait_schema_agreement"`
	ReplicationFactor             int           `yaml:"replication_factor"`
	Timeout                       time.Duration `yaml:"timeout"`
	TokenAware                    bool          `yaml:"token_aware"`

	// InitAddr specifies address used to create keyspace and tables.
	InitAddr string `yaml:"-"`
}

// SSLConfig specifies backend database SSL configuration options.
type SSLConfig struct {
	CertFile     string `yaml:"cert_file"`
	Validate     bool   `yaml:"validate"`
	UserCertFile string `yaml:"user_cert_file"`
	UserKeyFile  string `yaml:"user_key_file"`
}

// TopologyConfig specifies which nodes are repaired by this process and how
// often the cluster schema and topology are polled.
type TopologyConfig struct {
	cluster.FilterConfig `yaml:",inline"`
	PollInterval         time.Duration `yaml:"poll_interval"`
}

// Config contains configuration structure for scylla-autorepair.
type Config struct {
	HTTP        string              `yaml:"http"`
	Prometheus  string              `yaml:"prometheus"`
	Logger      config.LogConfig    `yaml:"logger"`
	Database    DBConfig            `yaml:"database"`
	SSL         SSLConfig           `yaml:"ssl"`
	Lock        lock.Config         `yaml:"lock"`
	Schedule    schedule.Config     `yaml:"schedule"`
	Repair      repair.Config       `yaml:"repair"`
	Topology    TopologyConfig      `yaml:"topology"`
	ScyllaAPI   scyllaclient.Config `yaml:"scylla_api"`
	TableConfig tableconfig.Config  `yaml:"tableconfig"`
}

// DefaultConfig returns a Config initialized with default values.
func DefaultConfig() Config {
	return Config{
		HTTP:       "127.0.0.1:5080",
		Prometheus: ":5090",
		Logger:     DefaultLogConfig(),
		Database: DBConfig{
			Hosts:                         []string{"127.0.0.1"},
			Keyspace:                      "scylla_autorepair",
			MigrateTimeout:                30 * time.Second,
			MigrateMaxWaitSchemaAgreement: 5 * time.Minute,
			ReplicationFactor:             1,
			Timeout:                       600 * time.Millisecond,
			TokenAware:                    true,
		},
		SSL: SSLConfig{
			Validate: true,
		},
		Lock:     lock.DefaultConfig(),
		Schedule: schedule.DefaultConfig(),
		Repair:   repair.DefaultConfig(),
		Topology: TopologyConfig{
			PollInterval: 30 * time.Second,
		},
		ScyllaAPI:   scyllaclient.DefaultConfig(),
		TableConfig: tableconfig.DefaultConfig(),
	}
}

// ParseConfigFiles takes list of configuration file paths and returns parsed
// config struct with merged configuration from all provided files.
func ParseConfigFiles(files []string) (Config, error) {
	c := DefaultConfig()
	return c, cfgutil.ParseYAML(&c, files...)
}

// Validate checks if config contains correct values.
func (c Config) Validate() error {
	var err error
	if c.HTTP == "" {
		err = multierr.Append(err, errors.New("missing http"))
	}
	if len(c.Database.Hosts) == 0 {
		err = multierr.Append(err, errors.New("missing database.hosts"))
	}
	if c.Database.Keyspace == "" {
		err = multierr.Append(err, errors.New("missing database.keyspace"))
	}
	if c.Database.ReplicationFactor <= 0 {
		err = multierr.Append(err, errors.New("invalid database.replication_factor <= 0"))
	}
	if c.Topology.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("invalid topology.poll_interval <= 0"))
	}
	if _, e := cluster.NewFilter(c.Topology.FilterConfig); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "topology"))
	}
	if e := c.Lock.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "lock"))
	}
	if e := c.Schedule.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "schedule"))
	}
	if e := c.Repair.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "repair"))
	}
	if e := c.ScyllaAPI.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "scylla_api"))
	}
	if e := c.TableConfig.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "tableconfig"))
	}
	return err
}

// Obfuscate returns Config with secrets replaced with ******.
func Obfuscate(c Config) Config {
	c.Database.Password = strings.Repeat("*", len(c.Database.Password))
	return c
}
