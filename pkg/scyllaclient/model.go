// Copyright (C) 2017 ScyllaDB

package scyllaclient

import (
	"github.com/scylladb/go-set/strset"
)

// CommandStatus specifies a result of a command.
type CommandStatus string

// Command statuses.
const (
	CommandRunning    CommandStatus = "RUNNING"
	CommandSuccessful CommandStatus = "SUCCESSFUL"
	CommandFailed     CommandStatus = "FAILED"
)

// Ring describes token ring of a keyspace.
type Ring struct {
	Tokens []TokenRange
	HostDC map[string]string
}

// Datacenters returns a list of datacenters the keyspace is replicated in.
func (r Ring) Datacenters() []string {
	v := strset.NewWithSize(len(r.HostDC))
	for _, dc := range r.HostDC {
		v.Add(dc)
	}
	return v.List()
}

// HostTokenRanges returns token ranges given host is a replica of.
func (r Ring) HostTokenRanges(host string) []TokenRange {
	var out []TokenRange
	for _, t := range r.Tokens {
		if strset.New(t.Replicas...).Has(host) {
			out = append(out, t)
		}
	}
	return out
}

// TokenRange describes replicas of a token range.
type TokenRange struct {
	StartToken int64
	EndToken   int64
	Replicas   []string
}

// RepairOptions specifies scope of a repair.
type RepairOptions struct {
	// Ranges to repair, empty means all ranges of the host.
	Ranges []TokenRange
	// Hosts taking part in repair, empty means all replicas.
	Hosts []string
	// Mode of incremental repair, empty means node default.
	Mode IncrementalMode
}

// IncrementalMode describes how repaired data is tracked by Scylla.
type IncrementalMode string

// IncrementalMode enumeration.
const (
	// IncrementalModeDisabled runs a regular repair of all data.
	IncrementalModeDisabled IncrementalMode = "disabled"
	// IncrementalModeIncremental repairs only data not marked as repaired.
	IncrementalModeIncremental IncrementalMode = "incremental"
	// IncrementalModeFull repairs all data and marks it as repaired.
	IncrementalModeFull IncrementalMode = "full"
)
