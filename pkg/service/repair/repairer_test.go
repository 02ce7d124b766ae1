// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
	"github.com/scylladb/scylla-autorepair/pkg/scyllaclient"
)

type fakeScyllaClient struct {
	mu       sync.Mutex
	opts     []scyllaclient.RepairOptions
	statuses []scyllaclient.CommandStatus
	polls    int
	err      error
}

func (c *fakeScyllaClient) Repair(ctx context.Context, host, keyspace, table string, opts scyllaclient.RepairOptions) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.opts = append(c.opts, opts)
	return int32(len(c.opts)), nil
}

func (c *fakeScyllaClient) RepairStatus(ctx context.Context, host string, id int32, wait time.Duration) (scyllaclient.CommandStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.statuses[c.polls]
	c.polls++
	return s, nil
}

func TestScyllaRepairer(t *testing.T) {
	single := RepairRequest{
		Host:     "h1",
		Keyspace: "ks",
		Table:    "tbl",
		Ranges:   []dht.TokenRange{range1},
		Replicas: []string{"h1", "h2"},
	}
	multi := single
	multi.Ranges = []dht.TokenRange{range1, range2}
	multi.Replicas = []string{"h1", "h2", "h3"}

	table := []struct {
		Name     string
		Request  RepairRequest
		Statuses []scyllaclient.CommandStatus
		Hosts    []string
		Polls    int
		Error    bool
	}{
		{
			Name:     "single range",
			Request:  single,
			Statuses: []scyllaclient.CommandStatus{scyllaclient.CommandRunning, scyllaclient.CommandSuccessful},
			Hosts:    []string{"h1", "h2"},
			Polls:    2,
		},
		{
			Name:     "many ranges",
			Request:  multi,
			Statuses: []scyllaclient.CommandStatus{scyllaclient.CommandSuccessful},
			Polls:    1,
		},
		{
			Name:     "failed",
			Request:  single,
			Statuses: []scyllaclient.CommandStatus{scyllaclient.CommandRunning, scyllaclient.CommandFailed},
			Hosts:    []string{"h1", "h2"},
			Polls:    2,
			Error:    true,
		},
		{
			Name:     "unknown status",
			Request:  single,
			Statuses: []scyllaclient.CommandStatus{"FOO"},
			Hosts:    []string{"h1", "h2"},
			Polls:    1,
			Error:    true,
		},
	}

	for i := range table {
		test := table[i]
		t.Run(test.Name, func(t *testing.T) {
			c := &fakeScyllaClient{statuses: test.Statuses}
			r := NewScyllaRepairer(c, time.Second, log.NopLogger)

			err := r.Repair(context.Background(), test.Request)
			if test.Error && err == nil {
				t.Fatal("Repair() expected error")
			}
			if !test.Error && err != nil {
				t.Fatal("Repair() error", err)
			}
			if c.polls != test.Polls {
				t.Fatalf("RepairStatus() called %d times, expected %d", c.polls, test.Polls)
			}
			if len(c.opts) != 1 {
				t.Fatalf("Repair() called %d times, expected 1", len(c.opts))
			}
			if diff := cmp.Diff(test.Hosts, c.opts[0].Hosts); diff != "" {
				t.Fatal("hosts diff", diff)
			}
			if len(c.opts[0].Ranges) != len(test.Request.Ranges) {
				t.Fatalf("Repair() got %d ranges, expected %d", len(c.opts[0].Ranges), len(test.Request.Ranges))
			}
		})
	}
}

func TestScyllaRepairerMode(t *testing.T) {
	table := []struct {
		Type     RepairType
		Expected scyllaclient.IncrementalMode
	}{
		{Type: RepairTypeFull, Expected: scyllaclient.IncrementalModeFull},
		{Type: RepairTypeIncremental, Expected: scyllaclient.IncrementalModeIncremental},
	}

	var opts []scyllaclient.RepairOptions
	for i := range table {
		test := table[i]
		t.Run(test.Type.String(), func(t *testing.T) {
			c := &fakeScyllaClient{statuses: []scyllaclient.CommandStatus{scyllaclient.CommandSuccessful}}
			r := NewScyllaRepairer(c, time.Second, log.NopLogger)
			req := RepairRequest{
				Host:     "h1",
				Keyspace: "ks",
				Table:    "tbl",
				Type:     test.Type,
				Ranges:   []dht.TokenRange{range1},
				Replicas: []string{"h1", "h2"},
			}
			if err := r.Repair(context.Background(), req); err != nil {
				t.Fatal("Repair() error", err)
			}
			if c.opts[0].Mode != test.Expected {
				t.Fatalf("Repair() mode %q, expected %q", c.opts[0].Mode, test.Expected)
			}
			opts = append(opts, c.opts[0])
		})
	}

	if len(opts) == 2 && cmp.Equal(opts[0], opts[1]) {
		t.Fatalf("full and incremental repairs send the same options %+v", opts[0])
	}
}

func TestScyllaRepairerErrors(t *testing.T) {
	t.Run("nothing to repair", func(t *testing.T) {
		r := NewScyllaRepairer(&fakeScyllaClient{}, time.Second, log.NopLogger)
		if err := r.Repair(context.Background(), RepairRequest{Host: "h1"}); err == nil {
			t.Fatal("Repair() expected error")
		}
	})

	t.Run("start", func(t *testing.T) {
		startErr := errors.New("unavailable")
		r := NewScyllaRepairer(&fakeScyllaClient{err: startErr}, time.Second, log.NopLogger)
		req := RepairRequest{Host: "h1", Keyspace: "ks", Table: "tbl", Ranges: []dht.TokenRange{range1}}
		if err := r.Repair(context.Background(), req); !errors.Is(err, startErr) {
			t.Fatalf("Repair() error %v, expected %v", err, startErr)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := &fakeScyllaClient{statuses: []scyllaclient.CommandStatus{scyllaclient.CommandRunning}}
		r := NewScyllaRepairer(c, time.Second, log.NopLogger)
		req := RepairRequest{Host: "h1", Keyspace: "ks", Table: "tbl", Ranges: []dht.TokenRange{range1}}
		if err := r.Repair(ctx, req); !errors.Is(err, context.Canceled) {
			t.Fatalf("Repair() error %v, expected %v", err, context.Canceled)
		}
	})
}
