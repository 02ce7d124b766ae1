// Copyright (C) 2017 ScyllaDB

package testutils

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

// WaitCond fails the test if cond does not become true within wait.
func WaitCond(t *testing.T, cond func() bool, interval, wait time.Duration) {
	t.Helper()

	if err := WaitCondError(cond, interval, wait); err != nil {
		t.Fatal(err)
	}
}

// WaitCondError polls cond every interval until it returns true or wait
// passes. With non-positive wait cond is checked once.
func WaitCondError(cond func() bool, interval, wait time.Duration) error {
	if wait <= 0 {
		if !cond() {
			return errors.New("condition not met")
		}
		return nil
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		if cond() {
			return nil
		}
		select {
		case <-tick.C:
		case <-deadline.C:
			if cond() {
				return nil
			}
			return errors.Errorf("condition not met within %v", wait)
		}
	}
}
