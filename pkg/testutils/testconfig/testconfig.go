// Copyright (C) 2017 ScyllaDB

// Package testconfig holds command line flags of integration tests.
package testconfig

import (
	"flag"
	"strings"
	"time"
)

var (
	flagCluster  = flag.String("cluster", "127.0.0.1", "a comma-separated list of host:port tuples of the database hosts")
	flagTimeout  = flag.Duration("gocql.timeout", 10*time.Second, "sets the connection `timeout` for all operations")
	flagUser     = flag.String("user", "", "CQL user")
	flagPassword = flag.String("password", "", "CQL password")
	flagAPI      = flag.String("scylla-api", "", "Scylla REST API address of a test node, empty skips API tests")
)

func parse() {
	if !flag.Parsed() {
		flag.Parse()
	}
}

// ClusterHosts returns addresses of the database hosts.
func ClusterHosts() []string {
	parse()
	return strings.Split(*flagCluster, ",")
}

// CQLTimeout returns timeout for CQL sessions.
func CQLTimeout() time.Duration {
	parse()
	return *flagTimeout
}

// Credentials returns CQL username and password.
func Credentials() (user, password string) {
	parse()
	return *flagUser, *flagPassword
}

// ScyllaAPI returns the Scylla REST API address.
func ScyllaAPI() string {
	parse()
	return *flagAPI
}
