// Copyright (C) 2017 ScyllaDB

package uuid

import "testing"

func TestNewFromStrings(t *testing.T) {
	t.Parallel()

	a := NewFromStrings("host", "ks.tbl", "full")
	if a != NewFromStrings("host", "ks.tbl", "full") {
		t.Fatal("expected stable UUID")
	}
	if a == NewFromStrings("host", "ks.tbl", "incremental") {
		t.Fatal("expected different UUID for different parts")
	}
	if a == NewFromStrings("ks.tbl", "host", "full") {
		t.Fatal("expected different UUID for permuted parts")
	}
	if a.Version() != 4 {
		t.Fatalf("Version() = %d, expected 4", a.Version())
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	u := MustRandom()
	v, err := Parse(u.String())
	if err != nil {
		t.Fatal(err)
	}
	if u != v {
		t.Fatalf("Parse() = %s, expected %s", v, u)
	}

	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMarshalCQLNil(t *testing.T) {
	t.Parallel()

	b, err := Nil.MarshalCQL(nil)
	if err != nil {
		t.Fatal(err)
	}
	if b != nil {
		t.Fatalf("MarshalCQL() = %v, expected nil", b)
	}

	var u UUID
	if err := u.UnmarshalCQL(nil, nil); err != nil {
		t.Fatal(err)
	}
	if u != Nil {
		t.Fatal("expected Nil")
	}
}
