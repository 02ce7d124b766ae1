// Copyright (C) 2017 ScyllaDB

package cluster

import (
	"context"
	"net"
	"sort"

	"github.com/pkg/errors"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/qb"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

type localRow struct {
	HostID  uuid.UUID `db:"host_id"`
	Address net.IP    `db:"broadcast_address"`
	DC      string    `db:"data_center"`
	Rack    string    `db:"rack"`
}

type peerRow struct {
	HostID  uuid.UUID `db:"host_id"`
	Address net.IP    `db:"peer"`
	DC      string    `db:"data_center"`
	Rack    string    `db:"rack"`
}

// Topology reads cluster members from the system tables of the node the
// session is connected to.
type Topology struct {
	session gocqlx.Session
}

// NewTopology returns topology reader using session.
func NewTopology(session gocqlx.Session) *Topology {
	return &Topology{session: session}
}

// Nodes returns all cluster members ordered by address.
func (t *Topology) Nodes(ctx context.Context) ([]Node, error) {
	var local []localRow
	q := qb.Select("system.local").
		Columns("host_id", "broadcast_address", "data_center", "rack").
		Query(t.session).
		WithContext(ctx)
	if err := q.SelectRelease(&local); err != nil {
		return nil, errors.Wrap(err, "read system.local")
	}

	var peers []peerRow
	q = qb.Select("system.peers").
		Columns("host_id", "peer", "data_center", "rack").
		Query(t.session).
		WithContext(ctx)
	if err := q.SelectRelease(&peers); err != nil {
		return nil, errors.Wrap(err, "read system.peers")
	}

	out := make([]Node, 0, len(local)+len(peers))
	for _, r := range local {
		out = append(out, Node{ID: r.HostID, Address: r.Address.String(), DC: r.DC, Rack: r.Rack})
	}
	for _, r := range peers {
		// Peers being removed have no host ID
		if r.HostID == uuid.Nil {
			continue
		}
		out = append(out, Node{ID: r.HostID, Address: r.Address.String(), DC: r.DC, Rack: r.Rack})
	}
	SortNodes(out)
	return out, nil
}

// SortNodes sorts nodes by address.
func SortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Address < nodes[j].Address
	})
}
