// Copyright (C) 2017 ScyllaDB

package dht

import (
	"fmt"
	"math"
)

// Full token range.
const (
	Murmur3MinToken = int64(math.MinInt64)
	Murmur3MaxToken = int64(math.MaxInt64)
)

// TokenRange is a left-open right-closed range of tokens (StartToken, EndToken].
// If StartToken > EndToken the range wraps around the ring, if StartToken ==
// EndToken the range spans the whole ring.
type TokenRange struct {
	StartToken int64 `json:"start_token" db:"start_token"`
	EndToken   int64 `json:"end_token" db:"end_token"`
}

// FullRing returns a range covering all tokens.
func FullRing() TokenRange {
	return TokenRange{StartToken: Murmur3MinToken, EndToken: Murmur3MinToken}
}

// IsWrapAround returns true if the range passes through the end of the ring.
func (r TokenRange) IsWrapAround() bool {
	return r.StartToken > r.EndToken
}

// IsFullRing returns true if the range spans the whole ring.
func (r TokenRange) IsFullRing() bool {
	return r.StartToken == r.EndToken
}

// Contains returns true if token belongs to the range.
func (r TokenRange) Contains(token int64) bool {
	for _, s := range r.Segments() {
		if s.StartToken < token && token <= s.EndToken {
			return true
		}
	}
	return false
}

// Covers returns true if every token of o belongs to r.
func (r TokenRange) Covers(o TokenRange) bool {
	rs := r.Segments()
	for _, os := range o.Segments() {
		covered := false
		for _, s := range rs {
			if s.StartToken <= os.StartToken && os.EndToken <= s.EndToken {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// Segments splits the range into non-empty, non-wrapping ranges.
func (r TokenRange) Segments() []TokenRange {
	switch {
	case r.IsFullRing():
		return []TokenRange{{StartToken: Murmur3MinToken, EndToken: Murmur3MaxToken}}
	case r.IsWrapAround():
		out := make([]TokenRange, 0, 2)
		if r.StartToken < Murmur3MaxToken {
			out = append(out, TokenRange{StartToken: r.StartToken, EndToken: Murmur3MaxToken})
		}
		if r.EndToken > Murmur3MinToken {
			out = append(out, TokenRange{StartToken: Murmur3MinToken, EndToken: r.EndToken})
		}
		return out
	default:
		return []TokenRange{r}
	}
}

// Less orders ranges by start token, then by end token.
func (r TokenRange) Less(o TokenRange) bool {
	if r.StartToken != o.StartToken {
		return r.StartToken < o.StartToken
	}
	return r.EndToken < o.EndToken
}

func (r TokenRange) String() string {
	return fmt.Sprintf("(%d,%d]", r.StartToken, r.EndToken)
}
