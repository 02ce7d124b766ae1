// Copyright (C) 2017 ScyllaDB

package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// Backoff specifies a policy for how long to wait between retries.
// It is called after a failing request to determine the amount of time
// that should pass before trying again.
type Backoff = backoff.BackOff

// Stop indicates that no more retries should be made.
const Stop = backoff.Stop

// BackoffFunc allows for using a function as Backoff.
type BackoffFunc func() time.Duration

// NextBackOff implements Backoff.
func (f BackoffFunc) NextBackOff() time.Duration {
	return f()
}

// Reset implements Backoff.
func (f BackoffFunc) Reset() {}

// NewExponentialBackoff returns Backoff with exponentially increasing wait
// times. Zero maxElapsedTime means no time limit.
func NewExponentialBackoff(initialInterval, maxElapsedTime, maxInterval time.Duration, multiplier, randomFactor float64) Backoff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxElapsedTime = maxElapsedTime
	b.MaxInterval = maxInterval
	b.Multiplier = multiplier
	b.RandomizationFactor = randomFactor
	b.Reset()
	return b
}

// WithMaxRetries wraps a backoff function and stops retrying after n retries.
func WithMaxRetries(b Backoff, n uint64) Backoff {
	return backoff.WithMaxRetries(b, n)
}

// Operation is an operation to be retried.
type Operation = backoff.Operation

// Notify is a notify-on-error function. It receives an operation error and
// backoff delay if the operation failed (with an error).
type Notify = backoff.Notify

// WithNotify calls notify function with the error and wait duration for each
// failed attempt before sleep. Permanent errors are unwrapped and returned
// without further attempts.
func WithNotify(ctx context.Context, op Operation, b Backoff, notify Notify) error {
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}

// Permanent wraps the given err in a permanent error, the operation will not
// be retried.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent checks if the error or it's cause is a permanent error.
func IsPermanent(err error) bool {
	var perr *backoff.PermanentError
	return errors.As(err, &perr)
}
