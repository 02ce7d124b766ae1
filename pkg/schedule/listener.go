// Copyright (C) 2017 ScyllaDB

package schedule

import (
	"time"

	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// Listener specifies pluggable hooks for job runs.
type Listener interface {
	OnRunStart(host string, jobID uuid.UUID)
	OnRunSuccess(host string, jobID uuid.UUID, d time.Duration)
	OnRunError(host string, jobID uuid.UUID, d time.Duration, err error)
	OnLockFailed(host string, jobID uuid.UUID, err error)
}

type nopListener struct{}

func (nopListener) OnRunStart(string, uuid.UUID) {
}

func (nopListener) OnRunSuccess(string, uuid.UUID, time.Duration) {
}

func (nopListener) OnRunError(string, uuid.UUID, time.Duration, error) {
}

func (nopListener) OnLockFailed(string, uuid.UUID, error) {
}

// NopListener is a Listener implementation that has no effects.
var NopListener Listener = nopListener{}
