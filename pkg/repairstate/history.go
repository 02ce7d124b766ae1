// Copyright (C) 2017 ScyllaDB

package repairstate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/qb"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
	"github.com/scylladb/scylla-autorepair/pkg/schema/table"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// Status is the outcome of repairing a range.
type Status string

// Status enumeration.
const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// HistoryEntry records repair of a token range of a table on a host.
type HistoryEntry struct {
	HostID   uuid.UUID `db:"host_id"`
	Keyspace string    `db:"keyspace_name"`
	Table    string    `db:"table_name"`
	dht.TokenRange
	Participants []string  `db:"participants"`
	Status       Status    `db:"status"`
	RepairType   string    `db:"repair_type"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
	JobID        uuid.UUID `db:"job_id"`
}

// HistoryStore persists repair history.
type HistoryStore interface {
	// Entries returns entries of a table on a host finished at or after since.
	Entries(ctx context.Context, hostID uuid.UUID, keyspace, table string, since time.Time) ([]HistoryEntry, error)
	// Put appends an entry.
	Put(ctx context.Context, e HistoryEntry) error
}

// CQLHistory keeps repair history in the repair_history table.
type CQLHistory struct {
	session gocqlx.Session
}

var _ HistoryStore = &CQLHistory{}

// NewCQLHistory returns history store using session.
func NewCQLHistory(session gocqlx.Session) *CQLHistory {
	return &CQLHistory{session: session}
}

// Entries implements HistoryStore.
func (h *CQLHistory) Entries(ctx context.Context, hostID uuid.UUID, keyspace, tbl string, since time.Time) ([]HistoryEntry, error) {
	q := table.RepairHistory.SelectBuilder().
		Where(qb.GtOrEq("finished_at")).
		Query(h.session).
		WithContext(ctx).
		BindMap(qb.M{
			"host_id":       hostID,
			"keyspace_name": keyspace,
			"table_name":    tbl,
			"finished_at":   since,
		})

	var out []HistoryEntry
	if err := q.SelectRelease(&out); err != nil {
		return nil, errors.Wrapf(err, "read history of %s.%s", keyspace, tbl)
	}
	return out, nil
}

// Put implements HistoryStore.
func (h *CQLHistory) Put(ctx context.Context, e HistoryEntry) error {
	q := table.RepairHistory.InsertQuery(h.session).WithContext(ctx).BindStruct(e)
	if err := q.ExecRelease(); err != nil {
		return errors.Wrapf(err, "write history of %s.%s %s", e.Keyspace, e.Table, e.TokenRange)
	}
	return nil
}
