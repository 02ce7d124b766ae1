// Copyright (C) 2017 ScyllaDB

package repair

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrInvalidConfiguration is returned when a table repair configuration
// violates its constraints.
var ErrInvalidConfiguration = errors.New("invalid repair configuration")

// RepairType specifies how ranges of a table are split into units of work.
type RepairType string

// RepairType enumeration.
const (
	// RepairTypeFull repairs all ranges owned by a node in a single unit.
	RepairTypeFull RepairType = "full"
	// RepairTypeIncremental repairs overdue ranges one at a time.
	RepairTypeIncremental RepairType = "incremental"
)

func (t RepairType) String() string {
	return string(t)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *RepairType) UnmarshalText(text []byte) error {
	switch v := RepairType(text); v {
	case RepairTypeFull, RepairTypeIncremental:
		*t = v
		return nil
	default:
		return errors.Errorf("unknown repair type %q", text)
	}
}

// Configuration specifies how and how often a table is repaired.
// Configurations are comparable, equal configurations describe the same job.
type Configuration struct {
	// Interval is the target time between repairs of a range.
	Interval time.Duration `yaml:"interval" json:"interval"`
	Type     RepairType    `yaml:"type" json:"type"`
	// Priority is used for lock arbitration, jobs of higher priority run
	// first.
	Priority int `yaml:"priority" json:"priority"`
	// IgnoreTWCS skips tables using TimeWindowCompactionStrategy.
	IgnoreTWCS bool `yaml:"ignore_twcs" json:"ignore_twcs"`
	// WarningTime and ErrorTime are ages of the least recently repaired
	// range that raise a warning or an error.
	WarningTime time.Duration `yaml:"warning_time" json:"warning_time"`
	ErrorTime   time.Duration `yaml:"error_time" json:"error_time"`
	// BackoffTime is how long a failed job waits before it is retried.
	BackoffTime time.Duration `yaml:"backoff_time" json:"backoff_time"`
	// UnitTimeout limits a single repair session, zero means no limit.
	UnitTimeout time.Duration `yaml:"unit_timeout" json:"unit_timeout"`
	Disabled    bool          `yaml:"disabled" json:"disabled"`
}

// DisabledConfiguration is never scheduled.
var DisabledConfiguration = Configuration{Disabled: true}

// DefaultConfiguration returns a Configuration initialized with default
// values.
func DefaultConfiguration() Configuration {
	return Configuration{
		Interval:    7 * 24 * time.Hour,
		Type:        RepairTypeFull,
		WarningTime: 8 * 24 * time.Hour,
		ErrorTime:   10 * 24 * time.Hour,
		BackoffTime: 30 * time.Minute,
		UnitTimeout: 3 * time.Hour,
	}
}

// NewConfiguration returns c if it is valid, disabled configurations are
// always valid.
func NewConfiguration(c Configuration) (Configuration, error) {
	if err := c.Validate(); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

// Validate checks if all the fields are properly set.
func (c Configuration) Validate() error {
	if c.Disabled {
		return nil
	}

	var err error
	if c.Interval <= 0 {
		err = multierr.Append(err, errors.New("interval must be positive"))
	}
	if c.Type != RepairTypeFull && c.Type != RepairTypeIncremental {
		err = multierr.Append(err, errors.Errorf("unknown type %q", c.Type))
	}
	if c.WarningTime < c.Interval {
		err = multierr.Append(err, errors.Errorf("warning_time %s must not be shorter than interval %s", c.WarningTime, c.Interval))
	}
	if c.ErrorTime < c.WarningTime {
		err = multierr.Append(err, errors.Errorf("error_time %s must not be shorter than warning_time %s", c.ErrorTime, c.WarningTime))
	}
	if c.BackoffTime < 0 {
		err = multierr.Append(err, errors.New("backoff_time must not be negative"))
	}
	if c.UnitTimeout < 0 {
		err = multierr.Append(err, errors.New("unit_timeout must not be negative"))
	}
	if err != nil {
		return errors.Wrap(ErrInvalidConfiguration, err.Error())
	}
	return nil
}

// key returns a stable textual form of the configuration.
func (c Configuration) key() string {
	return fmt.Sprintf("%s/%s/%d/%t/%s/%s/%s/%s/%t",
		c.Type, c.Interval, c.Priority, c.IgnoreTWCS,
		c.WarningTime, c.ErrorTime, c.BackoffTime, c.UnitTimeout, c.Disabled)
}

// Config specifies the Scheduler configuration.
type Config struct {
	// StateRefreshInterval specifies how often repair states are updated.
	StateRefreshInterval time.Duration `yaml:"state_refresh_interval"`
	// RefreshParallelism limits number of repair states updated at once.
	RefreshParallelism int `yaml:"refresh_parallelism"`
	// HistoryLookback specifies how far back repair history is read.
	HistoryLookback time.Duration `yaml:"history_lookback"`
	// StatusWait specifies how long a single repair status poll waits for
	// the repair to finish.
	StatusWait time.Duration `yaml:"status_wait"`
}

// DefaultConfig returns a Config initialized with default values.
func DefaultConfig() Config {
	return Config{
		StateRefreshInterval: time.Minute,
		RefreshParallelism:   4,
		HistoryLookback:      30 * 24 * time.Hour,
		StatusWait:           30 * time.Second,
	}
}

// Validate checks if all the fields are properly set.
func (c Config) Validate() error {
	var err error
	if c.StateRefreshInterval <= 0 {
		err = multierr.Append(err, errors.New("state_refresh_interval must be positive"))
	}
	if c.RefreshParallelism < 0 {
		err = multierr.Append(err, errors.New("refresh_parallelism must not be negative"))
	}
	if c.HistoryLookback < 0 {
		err = multierr.Append(err, errors.New("history_lookback must not be negative"))
	}
	if c.StatusWait <= 0 {
		err = multierr.Append(err, errors.New("status_wait must be positive"))
	}
	return err
}
