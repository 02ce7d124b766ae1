// Copyright (C) 2017 ScyllaDB

package lock

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config specifies the lock factory configuration.
type Config struct {
	// LockTime is how long a lock is valid without renewal.
	LockTime time.Duration `yaml:"lock_time"`
	// LockUpdateTime is the renewal interval, it must be lower than a quarter
	// of LockTime.
	LockUpdateTime time.Duration `yaml:"lock_update_time"`
	// FailureCacheExpiry is how long a failed attempt is remembered, attempts
	// on a resource with a remembered failure fail without reaching the store.
	FailureCacheExpiry time.Duration `yaml:"failure_cache_expiry"`
}

// DefaultConfig returns a Config initialized with default values.
func DefaultConfig() Config {
	return Config{
		LockTime:           600 * time.Second,
		LockUpdateTime:     60 * time.Second,
		FailureCacheExpiry: 30 * time.Second,
	}
}

// Validate checks if all the fields are properly set.
func (c Config) Validate() error {
	var err error
	if c.LockTime <= 0 {
		err = multierr.Append(err, errors.New("invalid lock_time, must be > 0"))
	}
	if c.LockUpdateTime <= 0 {
		err = multierr.Append(err, errors.New("invalid lock_update_time, must be > 0"))
	}
	if c.LockTime > 0 && c.LockUpdateTime > 0 && 4*c.LockUpdateTime >= c.LockTime {
		err = multierr.Append(err, errors.Errorf("invalid lock_update_time %s, must be < lock_time/4", c.LockUpdateTime))
	}
	if c.FailureCacheExpiry < 0 {
		err = multierr.Append(err, errors.New("invalid failure_cache_expiry, must be >= 0"))
	}
	return err
}
