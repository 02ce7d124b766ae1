// Copyright (C) 2017 ScyllaDB

package parallel

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// NoLimit means full parallelism mode.
const NoLimit = 0

// Run executes function f with arguments ranging from 0 to n-1 executing at
// most limit in parallel. If limit is NoLimit all calls run in parallel.
// Once ctx is canceled no new calls are started and the remaining indexes
// report the context error. Errors of all calls are combined.
func Run(ctx context.Context, n, limit int, f func(i int) error) error {
	if n == 0 {
		return nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	idx := atomic.NewInt32(0)
	out := make(chan error)
	for j := 0; j < limit; j++ {
		go func() {
			for {
				i := int(idx.Inc()) - 1
				if i >= n {
					return
				}
				if err := ctx.Err(); err != nil {
					out <- err
					continue
				}
				out <- errors.Wrapf(f(i), "index %d", i)
			}
		}()
	}

	var errs error
	for i := 0; i < n; i++ {
		errs = multierr.Append(errs, <-out)
	}
	return errs
}
