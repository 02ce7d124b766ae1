// Copyright (C) 2017 ScyllaDB

package repair

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
)

func TestConfigurationValidate(t *testing.T) {
	table := []struct {
		Name   string
		Modify func(c *Configuration)
		Error  bool
	}{
		{
			Name:   "default",
			Modify: func(c *Configuration) {},
		},
		{
			Name:   "disabled ignores other fields",
			Modify: func(c *Configuration) { *c = DisabledConfiguration },
		},
		{
			Name:   "zero interval",
			Modify: func(c *Configuration) { c.Interval = 0 },
			Error:  true,
		},
		{
			Name:   "unknown type",
			Modify: func(c *Configuration) { c.Type = "parallel" },
			Error:  true,
		},
		{
			Name:   "warning before interval",
			Modify: func(c *Configuration) { c.WarningTime = c.Interval - time.Hour },
			Error:  true,
		},
		{
			Name:   "error before warning",
			Modify: func(c *Configuration) { c.ErrorTime = c.WarningTime - time.Hour },
			Error:  true,
		},
		{
			Name:   "negative backoff",
			Modify: func(c *Configuration) { c.BackoffTime = -time.Second },
			Error:  true,
		},
		{
			Name:   "negative unit timeout",
			Modify: func(c *Configuration) { c.UnitTimeout = -time.Second },
			Error:  true,
		},
	}

	for i := range table {
		test := table[i]
		t.Run(test.Name, func(t *testing.T) {
			c := DefaultConfiguration()
			test.Modify(&c)
			_, err := NewConfiguration(c)
			if test.Error {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("NewConfiguration() error %v, expected %v", err, ErrInvalidConfiguration)
				}
				return
			}
			if err != nil {
				t.Fatal("NewConfiguration() error", err)
			}
		})
	}
}

func TestRepairTypeUnmarshalText(t *testing.T) {
	var v RepairType
	if err := v.UnmarshalText([]byte("incremental")); err != nil {
		t.Fatal(err)
	}
	if v != RepairTypeIncremental {
		t.Fatalf("UnmarshalText() = %s, expected %s", v, RepairTypeIncremental)
	}
	if err := v.UnmarshalText([]byte("vnode")); err == nil {
		t.Fatal("UnmarshalText() expected error")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal("DefaultConfig().Validate() error", err)
	}
	c := DefaultConfig()
	c.StatusWait = 0
	c.RefreshParallelism = -1
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() expected error")
	}
}

func TestTableReferenceFactory(t *testing.T) {
	f := NewTableReferenceFactory()
	a := f.ForTable("ks1", "t1")
	if b := f.ForTable("ks1", "t1"); a != b {
		t.Fatalf("ForTable() = %+v, expected %+v", b, a)
	}
	if a == f.ForTable("ks1", "t2") {
		t.Fatal("ForTable() equal for different tables")
	}
	f.ForTable("ks2", "t1")
	if f.Len() != 3 {
		t.Fatalf("Len() = %d, expected 3", f.Len())
	}

	f.Forget("ks1")
	if f.Len() != 1 {
		t.Fatalf("Len() = %d after Forget, expected 1", f.Len())
	}
	if b := f.ForTable("ks1", "t1"); a != b {
		t.Fatalf("ForTable() = %+v after Forget, expected %+v", b, a)
	}

	f.ForgetTable("ks2", "t1")
	if f.Len() != 1 {
		t.Fatalf("Len() = %d after ForgetTable, expected 1", f.Len())
	}
	if a.String() != "ks1.t1" {
		t.Fatalf("String() = %s, expected ks1.t1", a)
	}
}

func TestLogFaultReporter(t *testing.T) {
	r := NewLogFaultReporter(log.NopLogger)
	data := map[string]string{"host": "h1", "keyspace": "ks"}

	r.Raise(FaultRepairWarning, data)
	r.Raise(FaultRepairWarning, data)
	r.Raise(FaultRepairError, map[string]string{"host": "h2"})
	if a := r.Active(); len(a) != 2 {
		t.Fatalf("Active() = %v, expected 2 faults", a)
	}

	r.Cease(FaultRepairWarning, map[string]string{"keyspace": "ks", "host": "h1"})
	r.Cease(FaultJobFailed, data)
	a := r.Active()
	if len(a) != 1 || a[0] != "REPAIR_ERROR host=h2" {
		t.Fatalf("Active() = %v, expected error of h2", a)
	}
}
