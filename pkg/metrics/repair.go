// Copyright (C) 2017 ScyllaDB

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RepairMetrics tracks repair state and repair sessions of tables.
type RepairMetrics struct {
	lastRepairedAt  *prometheus.GaugeVec
	progress        *prometheus.GaugeVec
	rangesRepaired  *prometheus.CounterVec
	rangesFailed    *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
}

// NewRepairMetrics creates repair metrics, call MustRegister to make them
// visible.
func NewRepairMetrics() RepairMetrics {
	g := gaugeVecCreator("repair")
	c := counterVecCreator("repair")
	h := histogramVecCreator("repair")

	return RepairMetrics{
		lastRepairedAt: g("Unix timestamp of the least recently repaired range, 0 if a range was never repaired.",
			"last_repaired_timestamp", "host", "keyspace", "table", "type"),
		progress: g("Fraction of ranges repaired within the repair interval.",
			"progress", "host", "keyspace", "table", "type"),
		rangesRepaired: c("Number of successfully repaired token ranges.",
			"token_ranges_success_total", "host", "keyspace", "table", "type"),
		rangesFailed: c("Number of token ranges that failed to repair.",
			"token_ranges_error_total", "host", "keyspace", "table", "type"),
		sessionDuration: h("Duration of repair sessions in seconds.",
			"session_duration_seconds", prometheus.ExponentialBuckets(1, 4, 10), "host", "keyspace", "table", "type", "status"),
	}
}

// IsZero returns true if metrics were not created with NewRepairMetrics.
func (m RepairMetrics) IsZero() bool {
	return m.lastRepairedAt == nil
}

func (m RepairMetrics) all() []prometheus.Collector {
	return []prometheus.Collector{
		m.lastRepairedAt,
		m.progress,
		m.rangesRepaired,
		m.rangesFailed,
		m.sessionDuration,
	}
}

// MustRegister shall be called to make the metrics visible by prometheus client.
func (m RepairMetrics) MustRegister() RepairMetrics {
	prometheus.MustRegister(m.all()...)
	return m
}

// SetState updates "last_repaired_timestamp" and "progress".
func (m RepairMetrics) SetState(host, keyspace, table, repairType string, repairedAt time.Time, progress float64) {
	var ts float64
	if !repairedAt.IsZero() {
		ts = float64(repairedAt.Unix())
	}
	m.lastRepairedAt.WithLabelValues(host, keyspace, table, repairType).Set(ts)
	m.progress.WithLabelValues(host, keyspace, table, repairType).Set(progress)
}

// ObserveSession records a finished repair session of n ranges.
func (m RepairMetrics) ObserveSession(host, keyspace, table, repairType string, ranges int, d time.Duration, success bool) {
	status := "success"
	if success {
		m.rangesRepaired.WithLabelValues(host, keyspace, table, repairType).Add(float64(ranges))
	} else {
		status = "error"
		m.rangesFailed.WithLabelValues(host, keyspace, table, repairType).Add(float64(ranges))
	}
	m.sessionDuration.WithLabelValues(host, keyspace, table, repairType, status).Observe(d.Seconds())
}

// DeleteTable removes metrics of a repair type of a table on a host.
func (m RepairMetrics) DeleteTable(host, keyspace, table, repairType string) {
	l := prometheus.Labels{
		"host":     host,
		"keyspace": keyspace,
		"table":    table,
		"type":     repairType,
	}
	m.lastRepairedAt.DeletePartialMatch(l)
	m.progress.DeletePartialMatch(l)
	m.rangesRepaired.DeletePartialMatch(l)
	m.rangesFailed.DeletePartialMatch(l)
	m.sessionDuration.DeletePartialMatch(l)
}
