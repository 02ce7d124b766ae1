// Copyright (C) 2017 ScyllaDB

package dht

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenRangeSegments(t *testing.T) {
	t.Parallel()

	table := []struct {
		Name   string
		Range  TokenRange
		Golden []TokenRange
	}{
		{
			Name:   "Plain",
			Range:  TokenRange{StartToken: -10, EndToken: 10},
			Golden: []TokenRange{{StartToken: -10, EndToken: 10}},
		},
		{
			Name:  "Wrap around",
			Range: TokenRange{StartToken: 10, EndToken: -10},
			Golden: []TokenRange{
				{StartToken: 10, EndToken: Murmur3MaxToken},
				{StartToken: Murmur3MinToken, EndToken: -10},
			},
		},
		{
			Name:   "Ending at min token",
			Range:  TokenRange{StartToken: 10, EndToken: Murmur3MinToken},
			Golden: []TokenRange{{StartToken: 10, EndToken: Murmur3MaxToken}},
		},
		{
			Name:   "Full ring",
			Range:  TokenRange{StartToken: 5, EndToken: 5},
			Golden: []TokenRange{{StartToken: Murmur3MinToken, EndToken: Murmur3MaxToken}},
		},
	}

	for i := range table {
		test := table[i]
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(test.Golden, test.Range.Segments()); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestTokenRangeCovers(t *testing.T) {
	t.Parallel()

	table := []struct {
		Name   string
		R      TokenRange
		O      TokenRange
		Golden bool
	}{
		{
			Name:   "Same",
			R:      TokenRange{StartToken: 0, EndToken: 100},
			O:      TokenRange{StartToken: 0, EndToken: 100},
			Golden: true,
		},
		{
			Name:   "Inside",
			R:      TokenRange{StartToken: 0, EndToken: 100},
			O:      TokenRange{StartToken: 10, EndToken: 20},
			Golden: true,
		},
		{
			Name: "Partial overlap",
			R:    TokenRange{StartToken: 0, EndToken: 100},
			O:    TokenRange{StartToken: 50, EndToken: 150},
		},
		{
			Name: "Disjoint",
			R:    TokenRange{StartToken: 0, EndToken: 100},
			O:    TokenRange{StartToken: 200, EndToken: 300},
		},
		{
			Name:   "Wrap around covers wrap around",
			R:      TokenRange{StartToken: 100, EndToken: -100},
			O:      TokenRange{StartToken: 200, EndToken: -200},
			Golden: true,
		},
		{
			Name:   "Wrap around covers tail",
			R:      TokenRange{StartToken: 100, EndToken: -100},
			O:      TokenRange{StartToken: -300, EndToken: -200},
			Golden: true,
		},
		{
			Name: "Plain does not cover wrap around",
			R:    TokenRange{StartToken: 0, EndToken: 100},
			O:    TokenRange{StartToken: 50, EndToken: 10},
		},
		{
			Name:   "Full ring covers everything",
			R:      FullRing(),
			O:      TokenRange{StartToken: 50, EndToken: 10},
			Golden: true,
		},
		{
			Name: "Nothing but full ring covers full ring",
			R:    TokenRange{StartToken: 10, EndToken: 9},
			O:    FullRing(),
		},
	}

	for i := range table {
		test := table[i]
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			if v := test.R.Covers(test.O); v != test.Golden {
				t.Fatalf("%s.Covers(%s) = %v, expected %v", test.R, test.O, v, test.Golden)
			}
		})
	}
}

func TestTokenRangeContains(t *testing.T) {
	t.Parallel()

	r := TokenRange{StartToken: 100, EndToken: -100}
	if r.Contains(100) {
		t.Error("start token must not be contained")
	}
	if !r.Contains(-100) {
		t.Error("end token must be contained")
	}
	if !r.Contains(Murmur3MaxToken) {
		t.Error("max token must be contained in wrap around range")
	}
	if r.Contains(0) {
		t.Error("0 must not be contained")
	}
}
