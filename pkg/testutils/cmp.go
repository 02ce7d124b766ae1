// Copyright (C) 2017 ScyllaDB

package testutils

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// UUIDComparer compares uuid.UUID values by value.
func UUIDComparer() cmp.Option {
	return cmp.Comparer(func(a, b uuid.UUID) bool { return a == b })
}

// TimeComparer compares time.Time values with Equal so that location and
// monotonic clock readings are ignored.
func TimeComparer() cmp.Option {
	return cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
}

// NearTimeComparer compares time.Time values that are less than d apart.
func NearTimeComparer(d time.Duration) cmp.Option {
	return cmp.Comparer(func(a, b time.Time) bool {
		diff := a.Sub(b)
		if diff < 0 {
			diff = -diff
		}
		return diff < d
	})
}
