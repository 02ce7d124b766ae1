// Copyright (C) 2017 ScyllaDB

package cluster

import (
	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/util/inexlist"
)

// FilterConfig selects nodes handled by this process.
type FilterConfig struct {
	// DC is a list of glob patterns of datacenter names, "!" excludes.
	DC []string `yaml:"dc"`
	// Hosts is a list of glob patterns of node addresses, "!" excludes.
	Hosts []string `yaml:"hosts"`
}

// Filter selects nodes by datacenter and address.
type Filter struct {
	dc    inexlist.InExList
	hosts inexlist.InExList
}

// NewFilter returns a filter, empty lists match all nodes.
func NewFilter(c FilterConfig) (*Filter, error) {
	dc, err := inexlist.ParseInExList(c.DC)
	if err != nil {
		return nil, errors.Wrap(err, "parse dc filter")
	}
	hosts, err := inexlist.ParseInExList(c.Hosts)
	if err != nil {
		return nil, errors.Wrap(err, "parse hosts filter")
	}
	return &Filter{dc: dc, hosts: hosts}, nil
}

// Check returns true if node passes the filter.
func (f *Filter) Check(n Node) bool {
	return f.dc.Match(n.DC) && f.hosts.Match(n.Address)
}

// Apply returns nodes that pass the filter.
func (f *Filter) Apply(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		if f.Check(n) {
			out = append(out, n)
		}
	}
	return out
}
