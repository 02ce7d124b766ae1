// Copyright (C) 2017 ScyllaDB

// Package metrics contains Prometheus metrics of the repair scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace of all metrics.
const Namespace = "scylla_autorepair"

func gaugeVecCreator(subsystem string) func(help, name string, labels ...string) *prometheus.GaugeVec {
	return func(help, name string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
}

func counterVecCreator(subsystem string) func(help, name string, labels ...string) *prometheus.CounterVec {
	return func(help, name string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
}

func histogramVecCreator(subsystem string) func(help, name string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return func(help, name string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}, labels)
	}
}
