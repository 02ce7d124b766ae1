// Copyright (C) 2017 ScyllaDB

// Package schedule runs jobs of nodes in the order of their priority,
// at most one job per node at a time, guarded by distributed locks.
package schedule

import (
	"context"
	"time"

	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// Job is work scheduled for a node.
type Job interface {
	// ID returns a stable job identifier.
	ID() uuid.UUID
	// Priority orders runnable jobs, higher priority runs first.
	Priority() int
	// Runnable returns true if the job should run now.
	Runnable(now time.Time) bool
	// Overdue returns how long the job waits for execution, among jobs of
	// the same priority the most overdue runs first.
	Overdue(now time.Time) time.Duration
	// LockResources returns names of resources locked for the run.
	LockResources() []string
	// Run executes the job. Context is canceled if a lock is lost and the
	// job must abort. When stop is closed the job must not start new work,
	// work in progress is allowed to finish.
	Run(ctx context.Context, stop <-chan struct{}) error
}
