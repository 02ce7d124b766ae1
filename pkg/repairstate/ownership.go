// Copyright (C) 2017 ScyllaDB

package repairstate

import (
	"context"

	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
	"github.com/scylladb/scylla-autorepair/pkg/scyllaclient"
)

// RingDescriber returns token ring of a keyspace.
type RingDescriber interface {
	DescribeRing(ctx context.Context, keyspace string) (scyllaclient.Ring, error)
}

// RingOwnership derives owned ranges from the keyspace token ring.
type RingOwnership struct {
	client RingDescriber
}

var _ Ownership = &RingOwnership{}

// NewRingOwnership returns ownership backed by client.
func NewRingOwnership(client RingDescriber) *RingOwnership {
	return &RingOwnership{client: client}
}

// OwnedRanges implements Ownership.
func (o *RingOwnership) OwnedRanges(ctx context.Context, node cluster.Node, keyspace string) ([]OwnedRange, error) {
	ring, err := o.client.DescribeRing(ctx, keyspace)
	if err != nil {
		return nil, errors.Wrapf(err, "describe ring of %s", keyspace)
	}

	var out []OwnedRange
	for _, t := range ring.Tokens {
		if !strset.New(t.Replicas...).Has(node.Address) {
			continue
		}
		out = append(out, OwnedRange{
			TokenRange: dht.TokenRange{StartToken: t.StartToken, EndToken: t.EndToken},
			Replicas:   t.Replicas,
		})
	}
	return out, nil
}
