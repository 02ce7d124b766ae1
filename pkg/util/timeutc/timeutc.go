// Copyright (C) 2017 ScyllaDB

package timeutc

import "time"

// Now returns current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// Since returns the time elapsed since t.
func Since(t time.Time) time.Duration {
	return Now().Sub(t.UTC())
}

// CQL truncates t to the precision of the CQL timestamp type, values read
// back from the database compare equal to the truncated value.
func CQL(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
