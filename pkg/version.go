// Copyright (C) 2017 ScyllaDB

package pkg

var version = "Snapshot"

// Version returns the program version, it is set at build time with
// -ldflags "-X github.com/scylladb/scylla-autorepair/pkg.version=<version>".
func Version() string {
	return version
}
