// Copyright (C) 2017 ScyllaDB

package netwait

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/util/retry"
	"go.uber.org/multierr"
)

// Waiter waits for any of the addresses to accept TCP connections.
type Waiter struct {
	DialTimeout time.Duration
	Backoff     func() retry.Backoff
	Logger      log.Logger
}

// DefaultWaiter waits up to two minutes.
var DefaultWaiter = Waiter{
	DialTimeout: time.Second,
	Backoff: func() retry.Backoff {
		return retry.WithMaxRetries(retry.NewExponentialBackoff(time.Second, 0, 5*time.Second, 1.5, 0), 30)
	},
	Logger: log.NopLogger,
}

// AnyHostPort waits using DefaultWaiter.
func AnyHostPort(ctx context.Context, hosts []string, port string) (string, error) {
	return DefaultWaiter.WaitAnyHostPort(ctx, hosts, port)
}

// WaitAnyHostPort returns the first host accepting connections on port.
func (w Waiter) WaitAnyHostPort(ctx context.Context, hosts []string, port string) (string, error) {
	addr, err := w.WaitAnyAddr(ctx, joinHostsPort(hosts, port)...)
	if err != nil {
		return "", err
	}
	host, _, err := net.SplitHostPort(addr)
	return host, err
}

// WaitAnyAddr returns the first address accepting connections.
func (w Waiter) WaitAnyAddr(ctx context.Context, addr ...string) (string, error) {
	if len(addr) == 0 {
		return "", errors.New("no addresses")
	}

	var (
		out      string
		attempts int
	)
	op := func() error {
		attempts++
		a, err := w.dialAny(ctx, addr)
		if err != nil {
			return err
		}
		out = a
		return nil
	}
	notify := func(err error, wait time.Duration) {
		w.Logger.Info(ctx, "Waiting for network connection", "wait", wait, "error", err)
	}

	if err := retry.WithNotify(ctx, op, w.Backoff(), notify); err != nil {
		return "", errors.Wrapf(err, "giving up after %d attempts", attempts)
	}
	return out, nil
}

func (w Waiter) dialAny(ctx context.Context, addrs []string) (string, error) {
	d := net.Dialer{Timeout: w.DialTimeout}

	var errs error
	for _, a := range addrs {
		conn, err := d.DialContext(ctx, "tcp", a)
		if err == nil {
			conn.Close()
			return a, nil
		}
		errs = multierr.Append(errs, err)
	}
	return "", errs
}

func joinHostsPort(hosts []string, port string) []string {
	if len(hosts) == 0 {
		return nil
	}
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = net.JoinHostPort(h, port)
	}
	return out
}
