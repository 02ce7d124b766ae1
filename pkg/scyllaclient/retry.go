// Copyright (C) 2017 ScyllaDB

package scyllaclient

import (
	"context"
	"net/url"
	"time"

	"github.com/go-openapi/runtime"
	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/util/retry"
)

type retryConfig struct {
	backoff  BackoffConfig
	poolSize int
}

func (c retryConfig) newBackoff(ctx context.Context) retry.Backoff {
	b := c.backoff
	// Requests not bound to a host try every host in the pool at least once.
	if !isForceHost(ctx) && uint64(c.poolSize-1) > b.MaxRetries {
		b.MaxRetries = uint64(c.poolSize - 1)
	}
	return backoff(b)
}

func backoff(config BackoffConfig) retry.Backoff {
	return retry.WithMaxRetries(retry.NewExponentialBackoff(
		config.WaitMin,
		0,
		config.WaitMax,
		config.Multiplier,
		config.Jitter,
	), config.MaxRetries)
}

type retryableTransport struct {
	transport runtime.ClientTransport
	config    retryConfig
	logger    log.Logger
}

type retryableOperation struct {
	ctx      context.Context
	id       string
	result   interface{}
	attempts int
	logger   log.Logger

	do func() (interface{}, error)
}

// retryable wraps parent and adds retry capabilities.
func retryable(transport runtime.ClientTransport, config retryConfig, logger log.Logger) runtime.ClientTransport {
	return retryableTransport{
		transport: transport,
		config:    config,
		logger:    logger,
	}
}

func (t retryableTransport) Submit(operation *runtime.ClientOperation) (interface{}, error) {
	ctx := operation.Context
	if ctx == nil {
		ctx = context.Background()
	}
	o := &retryableOperation{
		ctx:    ctx,
		id:     operation.ID,
		logger: t.logger,
	}
	o.do = func() (interface{}, error) {
		return t.transport.Submit(operation)
	}
	return o.submit(t.config.newBackoff(ctx))
}

func (o *retryableOperation) submit(b retry.Backoff) (interface{}, error) {
	err := retry.WithNotify(o.ctx, o.op, b, o.notify)
	if err != nil {
		err = unpackURLError(err)

		// Do not print "giving up after 1 attempts" for permanent errors.
		if o.attempts > 1 {
			err = errors.Wrapf(err, "giving up after %d attempts", o.attempts)
		}
		return nil, err
	}
	return o.result, nil
}

func (o *retryableOperation) op() (err error) {
	o.attempts++

	o.result, err = o.do()
	if err != nil && !shouldRetry(o.ctx, err) {
		err = retry.Permanent(err)
	}
	return
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	// Check the response code. We retry on 500-range responses to allow
	// the server time to recover, as 500's are typically not permanent
	// errors and may relate to outages on the server side. This will catch
	// invalid response codes as well, like 0 and 999.
	c := StatusCodeOf(err)
	return c == 0 || (c >= 500 && c != 501)
}

func (o *retryableOperation) notify(err error, wait time.Duration) {
	o.logger.Info(o.ctx, "HTTP retry backoff",
		"operation", o.id,
		"wait", wait,
		"error", unpackURLError(err),
	)
}

func unpackURLError(err error) error {
	if e, ok := err.(*url.Error); ok { // nolint: errorlint
		return e.Err
	}
	return err
}
