// Copyright (C) 2024 ScyllaDB

package migrate

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/migrate"
	"github.com/scylladb/gocqlx/v2/qb"
	"github.com/scylladb/scylla-autorepair/pkg/schema/table"
)

func init() {
	reg.Add(migrate.CallComment, "backfillRepairType", backfillRepairType)
}

// Rows written before repair_type existed come from full repairs.
const defaultRepairType = "full"

func backfillRepairType(ctx context.Context, session gocqlx.Session, _ migrate.CallbackEvent, _ string) error {
	type row struct {
		HostID       gocql.UUID
		KeyspaceName string
		TableName    string
		FinishedAt   time.Time
		StartToken   int64
		EndToken     int64
		RepairType   string
	}

	q := qb.Select(table.RepairHistory.Name()).Columns(
		"host_id", "keyspace_name", "table_name", "finished_at", "start_token", "end_token", "repair_type",
	).Query(session).WithContext(ctx)
	defer q.Release()

	u := qb.Update(table.RepairHistory.Name()).
		Set("repair_type").
		Where(qb.Eq("host_id"), qb.Eq("keyspace_name"), qb.Eq("table_name"),
			qb.Eq("finished_at"), qb.Eq("start_token"), qb.Eq("end_token")).
		Query(session).WithContext(ctx)
	defer u.Release()

	var (
		r       row
		updated int
	)
	iter := q.Iter()
	for iter.StructScan(&r) {
		if r.RepairType != "" {
			continue
		}
		if err := u.Bind(defaultRepairType, r.HostID, r.KeyspaceName, r.TableName, r.FinishedAt, r.StartToken, r.EndToken).Exec(); err != nil {
			iter.Close()
			return err
		}
		updated++
	}
	if err := iter.Close(); err != nil {
		return err
	}

	Logger.Info(ctx, "Backfilled repair history", "rows", updated)
	return nil
}
