// Copyright (C) 2017 ScyllaDB

package lock

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	table := []struct {
		Name  string
		Patch func(c *Config)
		Error bool
	}{
		{
			Name:  "Default",
			Patch: func(c *Config) {},
		},
		{
			Name: "Zero lock time",
			Patch: func(c *Config) {
				c.LockTime = 0
			},
			Error: true,
		},
		{
			Name: "Update time equal to a quarter",
			Patch: func(c *Config) {
				c.LockTime = 4 * time.Minute
				c.LockUpdateTime = time.Minute
			},
			Error: true,
		},
		{
			Name: "Negative failure cache expiry",
			Patch: func(c *Config) {
				c.FailureCacheExpiry = -time.Second
			},
			Error: true,
		},
	}

	for i := range table {
		test := table[i]
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			c := DefaultConfig()
			test.Patch(&c)
			err := c.Validate()
			if test.Error && err == nil {
				t.Fatal("expected error")
			}
			if !test.Error && err != nil {
				t.Fatal(err)
			}
		})
	}
}
