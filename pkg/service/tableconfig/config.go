// Copyright (C) 2017 ScyllaDB

package tableconfig

import (
	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/service/repair"
	"github.com/scylladb/scylla-autorepair/pkg/util/inexlist"
	"go.uber.org/multierr"
)

// Config specifies the configuration provider.
type Config struct {
	// Workers is the number of goroutines handling events. With more than
	// one worker events of the same table may be handled out of order.
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
	// Tables is a list of "keyspace.table" glob patterns, "!" excludes.
	// Empty list selects all tables.
	Tables []string `yaml:"tables"`
	// Default configurations of a table.
	Default []repair.Configuration `yaml:"default"`
	// Overrides maps "keyspace" or "keyspace.table" to configurations
	// replacing the default ones, table entries take precedence.
	Overrides map[string][]repair.Configuration `yaml:"overrides"`
}

// DefaultConfig returns a Config initialized with default values.
func DefaultConfig() Config {
	return Config{
		Workers:   1,
		QueueSize: 100,
		Default:   []repair.Configuration{repair.DefaultConfiguration()},
	}
}

// Validate checks if config contains correct values.
func (c Config) Validate() error {
	var err error
	if c.Workers <= 0 {
		err = multierr.Append(err, errors.New("workers must be positive"))
	}
	if c.QueueSize < 0 {
		err = multierr.Append(err, errors.New("queue_size must be non-negative"))
	}
	if _, e := inexlist.ParseInExList(c.Tables); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "tables"))
	}
	for i, rc := range c.Default {
		if e := rc.Validate(); e != nil {
			err = multierr.Append(err, errors.Wrapf(e, "default[%d]", i))
		}
	}
	for k, v := range c.Overrides {
		for i, rc := range v {
			if e := rc.Validate(); e != nil {
				err = multierr.Append(err, errors.Wrapf(e, "overrides[%s][%d]", k, i))
			}
		}
	}
	return err
}

// Configurations returns repair configurations of a table.
func (c Config) Configurations(keyspace, table string) []repair.Configuration {
	if v, ok := c.Overrides[keyspace+"."+table]; ok {
		return v
	}
	if v, ok := c.Overrides[keyspace]; ok {
		return v
	}
	return c.Default
}
