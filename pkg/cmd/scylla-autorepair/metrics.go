// Copyright (C) 2017 ScyllaDB

package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/scylladb/scylla-autorepair/pkg"
)

var currentVersion = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "scylla_autorepair",
	Subsystem: "server",
	Name:      "current_version",
	Help:      "Current scylla-autorepair version.",
}, []string{"version"})

func init() {
	prometheus.MustRegister(currentVersion)
	currentVersion.WithLabelValues(pkg.Version()).Set(0)
}
