// Copyright (C) 2017 ScyllaDB

package scyllaclient

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/runtime"
	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/dht"
	"github.com/scylladb/scylla-manager/v3/swagger/gen/scylla/v1/client/operations"
)

// DescribeRing returns a description of token range of a given keyspace.
func (c *Client) DescribeRing(ctx context.Context, keyspace string) (Ring, error) {
	resp, err := c.scyllaOps.StorageServiceDescribeRingByKeyspaceGet(&operations.StorageServiceDescribeRingByKeyspaceGetParams{
		Context:  ctx,
		Keyspace: keyspace,
	})
	if err != nil {
		return Ring{}, err
	}
	if len(resp.Payload) == 0 {
		return Ring{}, errors.New("received empty token range list")
	}

	ring := Ring{
		Tokens: make([]TokenRange, 0, len(resp.Payload)),
		HostDC: make(map[string]string),
	}
	for _, p := range resp.Payload {
		startToken, err := strconv.ParseInt(p.StartToken, 10, 64)
		if err != nil {
			return Ring{}, errors.Wrap(err, "parse StartToken")
		}
		endToken, err := strconv.ParseInt(p.EndToken, 10, 64)
		if err != nil {
			return Ring{}, errors.Wrap(err, "parse EndToken")
		}

		// Ensure deterministic order of nodes in replica set
		replicas := append([]string(nil), p.Endpoints...)
		sort.Strings(replicas)

		ring.Tokens = append(ring.Tokens, TokenRange{
			StartToken: startToken,
			EndToken:   endToken,
			Replicas:   replicas,
		})
		for _, e := range p.EndpointDetails {
			ring.HostDC[e.Host] = e.Datacenter
		}
	}
	return ring, nil
}

// Repair starts repair of a table on host and returns the repair ID.
func (c *Client) Repair(ctx context.Context, host, keyspace, table string, opts RepairOptions) (int32, error) {
	p := operations.StorageServiceRepairAsyncByKeyspacePostParams{
		Context:        forceHost(ctx, host),
		Keyspace:       keyspace,
		ColumnFamilies: &table,
	}
	if len(opts.Ranges) > 0 {
		dr := dumpRanges(opts.Ranges)
		p.Ranges = &dr
	}
	// Single node cluster repair fails with hosts param
	if len(opts.Hosts) > 1 {
		hosts := strings.Join(opts.Hosts, ",")
		p.Hosts = &hosts
	}
	var clientOpts []operations.ClientOption
	if opts.Mode != "" {
		clientOpts = append(clientOpts, withQueryParam("incremental_mode", string(opts.Mode)))
	}

	resp, err := c.scyllaOps.StorageServiceRepairAsyncByKeyspacePost(&p, clientOpts...)
	if err != nil {
		return 0, errors.Wrapf(err, "host %s: start repair of %s.%s", host, keyspace, table)
	}
	return resp.Payload, nil
}
func dumpRanges(ranges []TokenRange) string {
	var buf bytes.Buffer
	for i, ttr := range ranges {
		if i > 0 {
			_ = buf.WriteByte(',')
		}
		switch {
		case ttr.StartToken == ttr.EndToken:
			_, _ = fmt.Fprintf(&buf, "%d:%d", dht.Murmur3MinToken, dht.Murmur3MaxToken)
		case ttr.StartToken > ttr.EndToken:
			_, _ = fmt.Fprintf(&buf, "%d:%d,%d:%d", ttr.StartToken, dht.Murmur3MaxToken, dht.Murmur3MinToken, ttr.EndToken)
		default:
			_, _ = fmt.Fprintf(&buf, "%d:%d", ttr.StartToken, ttr.EndToken)
		}
	}
	return buf.String()
}

// RepairStatus returns status of a repair, if wait is positive the call
// blocks until the repair ends or wait passes.
func (c *Client) RepairStatus(ctx context.Context, host string, id int32, wait time.Duration) (CommandStatus, error) {
	ctx = forceHost(ctx, host)

	var clientOpts []operations.ClientOption
	if wait > 0 {
		clientOpts = append(clientOpts, withQueryParam("timeout", strconv.Itoa(int(wait.Seconds()))))
		// Wait starts when the node receives the request.
		ctx = customTimeout(ctx, wait+c.config.Timeout)
	}

	resp, err := c.scyllaOps.StorageServiceRepairStatus(&operations.StorageServiceRepairStatusParams{
		Context: ctx,
		ID:      id,
	}, clientOpts...)
	if err != nil {
		return "", errors.Wrapf(err, "host %s: repair %d status", host, id)
	}
	return CommandStatus(resp.GetPayload()), nil
}

// LiveNodes returns addresses of nodes that are alive according to gossip.
func (c *Client) LiveNodes(ctx context.Context) ([]string, error) {
	resp, err := c.scyllaOps.GossiperEndpointLiveGet(&operations.GossiperEndpointLiveGetParams{Context: ctx})
	if err != nil {
		return nil, errors.Wrap(err, "live nodes")
	}
	live := append([]string(nil), resp.Payload...)
	sort.Strings(live)
	return live, nil
}

// withQueryParam sets a query parameter the generated operation params do
// not expose.
func withQueryParam(name, value string) operations.ClientOption {
	return func(op *runtime.ClientOperation) {
		params := op.Params
		op.Params = runtime.ClientRequestWriterFunc(func(r runtime.ClientRequest, reg strfmt.Registry) error {
			if err := params.WriteToRequest(r, reg); err != nil {
				return err
			}
			return r.SetQueryParam(name, value)
		})
	}
}
