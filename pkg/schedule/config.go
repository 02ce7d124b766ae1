// Copyright (C) 2017 ScyllaDB

package schedule

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config specifies the Manager configuration.
type Config struct {
	// RunInterval specifies how often runnable jobs are looked for.
	RunInterval time.Duration `yaml:"run_interval"`
	// Workers specifies number of jobs that can run in parallel.
	Workers int `yaml:"workers"`
	// QueueSize specifies number of jobs waiting for a free worker, a job
	// that does not fit is skipped and its locks are released.
	QueueSize int `yaml:"queue_size"`
}

// DefaultConfig returns a Config initialized with default values.
func DefaultConfig() Config {
	return Config{
		RunInterval: 30 * time.Second,
		Workers:     1,
		QueueSize:   1,
	}
}

// Validate checks if all the fields are properly set.
func (c Config) Validate() error {
	var err error
	if c.RunInterval <= 0 {
		err = multierr.Append(err, errors.New("run_interval must be positive"))
	}
	if c.Workers <= 0 {
		err = multierr.Append(err, errors.New("workers must be positive"))
	}
	if c.QueueSize < 0 {
		err = multierr.Append(err, errors.New("queue_size must not be negative"))
	}
	return err
}
