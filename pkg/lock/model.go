// Copyright (C) 2017 ScyllaDB

package lock

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

var (
	// ErrLockUnavailable is returned when the resource is held by another
	// holder or a holder with a higher priority is waiting for it.
	ErrLockUnavailable = errors.New("lock unavailable")
	// ErrLockLost is reported by a lock that could not be renewed.
	ErrLockLost = errors.New("lock lost")
	// ErrClosed is returned by a closed factory.
	ErrClosed = errors.New("lock factory closed")
)

// Record is a lock row, at most one record exists per resource.
type Record struct {
	Resource   string
	Holder     uuid.UUID
	Priority   int
	AcquiredAt time.Time
	ExpiresAt  time.Time
	Metadata   map[string]string
}

// Expired returns true if the record is not valid at time now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Store is a linearizable per key conditional write primitive.
type Store interface {
	// Insert writes r if there is no record for r.Resource, if not applied
	// the existing record is returned.
	Insert(ctx context.Context, r Record) (applied bool, existing Record, err error)
	// Replace writes next if the stored record has the holder and expiry of
	// prev.
	Replace(ctx context.Context, prev, next Record) (applied bool, err error)
	// Renew sets expiresAt if the resource is held by holder.
	Renew(ctx context.Context, resource string, holder uuid.UUID, expiresAt time.Time) (applied bool, err error)
	// Delete removes the record if the resource is held by holder.
	Delete(ctx context.Context, resource string, holder uuid.UUID) (applied bool, err error)

	// PutPriority announces that holder waits for the resource with
	// priority, the announcement expires after ttl.
	PutPriority(ctx context.Context, resource string, holder uuid.UUID, priority int, ttl time.Duration) error
	// Priorities returns live announcements for the resource.
	Priorities(ctx context.Context, resource string) (map[uuid.UUID]int, error)
	// DeletePriority removes holder announcement.
	DeletePriority(ctx context.Context, resource string, holder uuid.UUID) error
}
