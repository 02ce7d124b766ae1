// Copyright (C) 2017 ScyllaDB

package cluster

import (
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// Node is a member of the cluster.
type Node struct {
	ID      uuid.UUID `json:"id" db:"host_id"`
	Address string    `json:"address"`
	DC      string    `json:"dc" db:"data_center"`
	Rack    string    `json:"rack" db:"rack"`
}

func (n Node) String() string {
	return n.Address
}
