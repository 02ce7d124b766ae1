// Copyright (C) 2017 ScyllaDB

package restapi

import (
	"github.com/scylladb/scylla-autorepair/pkg/service/repair"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// Services contains REST API services.
type Services struct {
	Repair RepairService
}

// RepairService service interface for the REST API handlers, it is
// implemented by repair.Scheduler.
type RepairService interface {
	CurrentRepairJobs() []repair.JobView
	Job(id uuid.UUID) (repair.JobView, bool)
}
