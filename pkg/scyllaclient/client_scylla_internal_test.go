// Copyright (C) 2017 ScyllaDB

package scyllaclient

import (
	"testing"
)

func TestDumpRanges(t *testing.T) {
	table := []struct {
		Name     string
		Ranges   []TokenRange
		Expected string
	}{
		{
			Name:     "simple",
			Ranges:   []TokenRange{{StartToken: 1, EndToken: 2}, {StartToken: 5, EndToken: 10}},
			Expected: "1:2,5:10",
		},
		{
			Name:     "wrap around",
			Ranges:   []TokenRange{{StartToken: 10, EndToken: -10}},
			Expected: "10:9223372036854775807,-9223372036854775808:-10",
		},
		{
			Name:     "full ring",
			Ranges:   []TokenRange{{StartToken: 3, EndToken: 3}},
			Expected: "-9223372036854775808:9223372036854775807",
		},
	}

	for i := range table {
		test := table[i]
		t.Run(test.Name, func(t *testing.T) {
			if v := dumpRanges(test.Ranges); v != test.Expected {
				t.Fatalf("dumpRanges() = %s, expected %s", v, test.Expected)
			}
		})
	}
}
