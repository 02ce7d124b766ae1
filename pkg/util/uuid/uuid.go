// Copyright (C) 2017 ScyllaDB

package uuid

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/gocql/gocql"
)

// Nil UUID is special form of UUID that is specified to have all
// 128 bits set to zero.
var Nil UUID

// UUID is a wrapper for a UUID type, currently "github.com/gocql/gocql".UUID.
type UUID struct {
	gocql.UUID
}

// NewRandom returns a random (Version 4) UUID and error if it fails to read
// from it's random source.
func NewRandom() (UUID, error) {
	u, err := gocql.RandomUUID()
	if err != nil {
		return Nil, err
	}
	return UUID{UUID: u}, nil
}

// MustRandom works like NewRandom but panics on error.
func MustRandom() UUID {
	u, err := NewRandom()
	if err != nil {
		panic(err)
	}
	return u
}

// NewTime returns a time based (Version 1) UUID.
func NewTime() UUID {
	return UUID{UUID: gocql.TimeUUID()}
}

// NewFromUint64 creates a UUID from a uint64 pair.
func NewFromUint64(l, h uint64) UUID {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], l)
	binary.LittleEndian.PutUint64(b[8:], h)

	b[6] &= 0x0F // clear version
	b[6] |= 0x40 // set version to 4 (random uuid)
	b[8] &= 0x3F // clear variant
	b[8] |= 0x80 // set to IETF variant

	u, err := gocql.UUIDFromBytes(b[:])
	if err != nil {
		panic(err)
	}
	return UUID{UUID: u}
}

// NewFromStrings creates a stable UUID out of the given parts.
// The same parts always result in the same UUID.
func NewFromStrings(parts ...string) UUID {
	l := xxhash.New()
	h := xxhash.New()
	for i, p := range parts {
		_, _ = l.WriteString(p) // nolint: errcheck
		_, _ = l.WriteString("/")
		// High bits hash the parts in reverse order.
		_, _ = h.WriteString(parts[len(parts)-1-i])
		_, _ = h.WriteString("\\")
	}
	return NewFromUint64(l.Sum64(), h.Sum64())
}

// Parse creates a new UUID from string.
func Parse(s string) (UUID, error) {
	u, err := gocql.ParseUUID(s)
	if err != nil {
		return Nil, err
	}
	return UUID{UUID: u}, nil
}

// MustParse creates a new UUID from string and panics if string is invalid.
func MustParse(s string) UUID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Compare returns an integer comparing two UUIDs. Time based UUIDs are
// compared by timestamp first.
func Compare(a, b UUID) int {
	if a.Version() == 1 && b.Version() == 1 {
		if ta, tb := a.Timestamp(), b.Timestamp(); ta != tb {
			if ta < tb {
				return -1
			}
			return 1
		}
	}
	return bytes.Compare(a.Bytes(), b.Bytes())
}

// MarshalCQL implements gocql.Marshaler.
func (u UUID) MarshalCQL(info gocql.TypeInfo) ([]byte, error) {
	if u == Nil {
		return nil, nil
	}
	return u.UUID[:], nil
}

// UnmarshalCQL implements gocql.Unmarshaler.
func (u *UUID) UnmarshalCQL(info gocql.TypeInfo, data []byte) error {
	if len(data) == 0 {
		*u = Nil
		return nil
	}

	var err error
	u.UUID, err = gocql.UUIDFromBytes(data)
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UUID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*u = Nil
		return nil
	}
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = v
	return nil
}
