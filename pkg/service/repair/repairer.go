// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
	"github.com/scylladb/scylla-autorepair/pkg/scyllaclient"
)

// RepairRequest describes a single repair session.
type RepairRequest struct {
	Host     string
	Keyspace string
	Table    string
	Type     RepairType
	Ranges   []dht.TokenRange
	Replicas []string
}

// Repairer repairs token ranges of a table, Repair returns when the repair
// is done.
type Repairer interface {
	Repair(ctx context.Context, req RepairRequest) error
}

// ScyllaClient is the subset of scyllaclient.Client used for repairs.
type ScyllaClient interface {
	Repair(ctx context.Context, host, keyspace, table string, opts scyllaclient.RepairOptions) (int32, error)
	RepairStatus(ctx context.Context, host string, id int32, wait time.Duration) (scyllaclient.CommandStatus, error)
}

// ScyllaRepairer runs repairs using the Scylla REST API.
type ScyllaRepairer struct {
	client ScyllaClient
	wait   time.Duration
	logger log.Logger
}

var _ Repairer = &ScyllaRepairer{}

// NewScyllaRepairer returns a repairer, wait specifies how long a single
// status poll blocks.
func NewScyllaRepairer(client ScyllaClient, wait time.Duration, logger log.Logger) *ScyllaRepairer {
	return &ScyllaRepairer{
		client: client,
		wait:   wait,
		logger: logger,
	}
}

// Repair implements Repairer.
func (r *ScyllaRepairer) Repair(ctx context.Context, req RepairRequest) error {
	if len(req.Ranges) == 0 {
		return errors.Errorf("host %s: nothing to repair", req.Host)
	}

	opts := scyllaclient.RepairOptions{
		Ranges: make([]scyllaclient.TokenRange, len(req.Ranges)),
		Mode:   incrementalMode(req.Type),
	}
	for i, tr := range req.Ranges {
		opts.Ranges[i] = scyllaclient.TokenRange{
			StartToken: tr.StartToken,
			EndToken:   tr.EndToken,
			Replicas:   req.Replicas,
		}
	}
	// Replicas of a single range are known, a multi range session repairs
	// with all replicas of each range.
	if len(req.Ranges) == 1 {
		opts.Hosts = req.Replicas
	}

	id, err := r.client.Repair(ctx, req.Host, req.Keyspace, req.Table, opts)
	if err != nil {
		return err
	}

	logger := r.logger.With(
		"host", req.Host,
		"keyspace", req.Keyspace,
		"table", req.Table,
		"type", req.Type,
		"ranges", len(req.Ranges),
		"command_id", id,
	)
	logger.Info(ctx, "Repairing")
	if err := r.waitStatus(ctx, req.Host, id); err != nil {
		return errors.Wrapf(err, "host %s: keyspace %s table %s command %d", req.Host, req.Keyspace, req.Table, id)
	}
	logger.Debug(ctx, "Repair done")
	return nil
}

func incrementalMode(t RepairType) scyllaclient.IncrementalMode {
	if t == RepairTypeIncremental {
		return scyllaclient.IncrementalModeIncremental
	}
	return scyllaclient.IncrementalModeFull
}

func (r *ScyllaRepairer) waitStatus(ctx context.Context, host string, id int32) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s, err := r.client.RepairStatus(ctx, host, id, r.wait)
		if err != nil {
			return err
		}
		switch s {
		case scyllaclient.CommandRunning:
			// Continue
		case scyllaclient.CommandSuccessful:
			return nil
		case scyllaclient.CommandFailed:
			return errors.New("repair failed on Scylla - consult Scylla logs for details")
		default:
			return errors.Errorf("unknown command status %q", s)
		}
	}
}
