// Copyright (C) 2017 ScyllaDB

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TableConfigMetrics tracks schema and topology events handled by the
// configuration provider.
type TableConfigMetrics struct {
	events  *prometheus.CounterVec
	tables  *prometheus.GaugeVec
	syncErr *prometheus.CounterVec
}

// NewTableConfigMetrics creates configuration provider metrics, call
// MustRegister to make them visible.
func NewTableConfigMetrics() TableConfigMetrics {
	g := gaugeVecCreator("tableconfig")
	c := counterVecCreator("tableconfig")

	return TableConfigMetrics{
		events: c("Total number of events parametrized by kind and result.",
			"event_total", "kind", "result"),
		tables: g("Number of tables with repair configured on a node.",
			"configured_tables", "host"),
		syncErr: c("Total number of failed configuration updates.",
			"error_total", "kind"),
	}
}

func (m TableConfigMetrics) all() []prometheus.Collector {
	return []prometheus.Collector{
		m.events,
		m.tables,
		m.syncErr,
	}
}

// MustRegister shall be called to make the metrics visible by prometheus client.
func (m TableConfigMetrics) MustRegister() TableConfigMetrics {
	prometheus.MustRegister(m.all()...)
	return m
}

// OnEvent updates "event_total", result is one of handled, rejected or
// ignored.
func (m TableConfigMetrics) OnEvent(kind, result string) {
	m.events.WithLabelValues(kind, result).Inc()
}

// OnError updates "error_total".
func (m TableConfigMetrics) OnError(kind string) {
	m.syncErr.WithLabelValues(kind).Inc()
}

// SetConfiguredTables updates "configured_tables".
func (m TableConfigMetrics) SetConfiguredTables(host string, n int) {
	m.tables.WithLabelValues(host).Set(float64(n))
}

// DeleteHost removes "configured_tables" of host.
func (m TableConfigMetrics) DeleteHost(host string) {
	m.tables.DeleteLabelValues(host)
}
