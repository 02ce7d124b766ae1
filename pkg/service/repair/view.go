// Copyright (C) 2017 ScyllaDB

package repair

import (
	"time"

	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// JobState is the state of a job in its life cycle.
type JobState int

// JobState enumeration.
const (
	JobNotRunnable JobState = iota
	JobRunnable
	JobRunning
	JobCompleted
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobNotRunnable:
		return "NOT_RUNNABLE"
	case JobRunnable:
		return "RUNNABLE"
	case JobRunning:
		return "RUNNING"
	case JobCompleted:
		return "COMPLETED"
	case JobFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// JobStatus describes how up to date repairs of a job are.
type JobStatus string

// JobStatus enumeration.
const (
	// StatusCompleted all ranges were repaired within the interval.
	StatusCompleted JobStatus = "COMPLETED"
	// StatusOnTime some ranges are due but none is older than warning time.
	StatusOnTime JobStatus = "ON_TIME"
	// StatusLate the least recently repaired range is older than warning time.
	StatusLate JobStatus = "LATE"
	// StatusOverdue the least recently repaired range is older than error time.
	StatusOverdue JobStatus = "OVERDUE"
	StatusRunning JobStatus = "RUNNING"
	// StatusFailed the last run failed and ranges are due.
	StatusFailed JobStatus = "FAILED"
)

// JobView is a read only description of a job.
type JobView struct {
	ID         uuid.UUID     `json:"id"`
	HostID     uuid.UUID     `json:"host_id"`
	Host       string        `json:"host"`
	Keyspace   string        `json:"keyspace"`
	Table      string        `json:"table"`
	Type       RepairType    `json:"type"`
	Interval   time.Duration `json:"interval"`
	Priority   int           `json:"priority"`
	State      string        `json:"state"`
	Status     JobStatus     `json:"status"`
	Progress   float64       `json:"progress"`
	RepairedAt *time.Time    `json:"repaired_at,omitempty"`
	LastRunAt  *time.Time    `json:"last_run_at,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
