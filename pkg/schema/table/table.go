// Copyright (C) 2017 ScyllaDB

package table

import "github.com/scylladb/gocqlx/v2/table"

// Table models
var (
	Lock = table.New(table.Metadata{
		Name: "lock",
		Columns: []string{
			"resource",
			"holder",
			"priority",
			"acquired_at",
			"expires_at",
			"metadata",
		},
		PartKey: []string{"resource"},
	})

	LockPriority = table.New(table.Metadata{
		Name: "lock_priority",
		Columns: []string{
			"resource",
			"holder",
			"priority",
		},
		PartKey: []string{"resource"},
		SortKey: []string{"holder"},
	})

	RepairHistory = table.New(table.Metadata{
		Name: "repair_history",
		Columns: []string{
			"host_id",
			"keyspace_name",
			"table_name",
			"finished_at",
			"start_token",
			"end_token",
			"started_at",
			"status",
			"participants",
			"job_id",
			"repair_type",
		},
		PartKey: []string{"host_id", "keyspace_name", "table_name"},
		SortKey: []string{"finished_at", "start_token", "end_token"},
	})
)
