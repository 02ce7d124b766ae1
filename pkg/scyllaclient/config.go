// Copyright (C) 2017 ScyllaDB

package scyllaclient

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config specifies the Client configuration.
type Config struct {
	// Hosts specifies hosts used for requests not bound to a host.
	Hosts []string `yaml:"-"`
	// Port specifies the Scylla REST API port.
	Port string `yaml:"port"`
	// Scheme specifies transport scheme HTTP or HTTPS.
	Scheme string `yaml:"scheme"`
	// Timeout specifies time to complete a single request to Scylla REST API
	// possibly including opening a TCP connection.
	Timeout time.Duration `yaml:"timeout"`
	// Backoff specifies parameters of exponential backoff used when
	// requests fail.
	Backoff BackoffConfig `yaml:"backoff"`

	// Transport allows for setting a custom round tripper.
	Transport http.RoundTripper `yaml:"-"`
}

// BackoffConfig specifies request exponential backoff parameters.
type BackoffConfig struct {
	WaitMin    time.Duration `yaml:"wait_min"`
	WaitMax    time.Duration `yaml:"wait_max"`
	MaxRetries uint64        `yaml:"max_retries"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// DefaultConfig returns a Config initialized with default values.
func DefaultConfig() Config {
	return Config{
		Port:    "10000",
		Scheme:  "http",
		Timeout: 30 * time.Second,
		Backoff: BackoffConfig{
			WaitMin:    time.Second,
			WaitMax:    30 * time.Second,
			MaxRetries: 9,
			Multiplier: 2,
			Jitter:     0.2,
		},
	}
}

// TestConfig returns DefaultConfig with hosts set and retries shortened.
func TestConfig(hosts []string, port string) Config {
	config := DefaultConfig()
	config.Hosts = hosts
	config.Port = port
	config.Timeout = 5 * time.Second
	config.Backoff.MaxRetries = 2
	config.Backoff.WaitMin = 10 * time.Millisecond
	config.Backoff.WaitMax = 50 * time.Millisecond
	return config
}

// Validate checks if all the fields are properly set.
func (c Config) Validate() error {
	var err error
	if c.Port == "" {
		err = multierr.Append(err, errors.New("missing port"))
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		err = multierr.Append(err, errors.Errorf("unsupported scheme %q", c.Scheme))
	}
	if c.Timeout <= 0 {
		err = multierr.Append(err, errors.New("timeout must be positive"))
	}
	if c.Backoff.WaitMin <= 0 || c.Backoff.WaitMax < c.Backoff.WaitMin {
		err = multierr.Append(err, errors.New("invalid backoff wait range"))
	}
	return err
}
