// Copyright (C) 2017 ScyllaDB

package tickrun

import (
	"context"
	"time"
)

// NewTicker executes f on every d tick until the returned stop function is
// called. Calls are sequential, a tick that arrives while f is running is
// dropped. The context passed to f is canceled on stop, stop waits for the
// running call to return.
func NewTicker(ctx context.Context, d time.Duration, f func(ctx context.Context)) (stop func()) {
	ticker := time.NewTicker(d)
	c := ticker.C
	if overrideTickerChanTestHook != nil {
		c = overrideTickerChanTestHook()
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c:
				f(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		cancel()
		<-done
	}
}

// for test purposes.
var overrideTickerChanTestHook func() <-chan time.Time
