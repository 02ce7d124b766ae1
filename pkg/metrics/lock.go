// Copyright (C) 2017 ScyllaDB

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LockMetrics tracks distributed locks, it implements lock.Listener.
type LockMetrics struct {
	held     *prometheus.GaugeVec
	attempts *prometheus.CounterVec
	lost     *prometheus.CounterVec
}

// NewLockMetrics creates lock metrics, call MustRegister to make them
// visible.
func NewLockMetrics() LockMetrics {
	g := gaugeVecCreator("lock")
	c := counterVecCreator("lock")

	return LockMetrics{
		held: g("If the lock is held by this process the value is 1 otherwise it's 0.",
			"held", "resource"),
		attempts: c("Total number of lock attempts parametrized by result.",
			"attempt_total", "resource", "result"),
		lost: c("Total number of locks lost because they could not be renewed.",
			"lost_total", "resource"),
	}
}

func (m LockMetrics) all() []prometheus.Collector {
	return []prometheus.Collector{
		m.held,
		m.attempts,
		m.lost,
	}
}

// MustRegister shall be called to make the metrics visible by prometheus client.
func (m LockMetrics) MustRegister() LockMetrics {
	prometheus.MustRegister(m.all()...)
	return m
}

// OnLockAcquired updates "held" and "attempt_total".
func (m LockMetrics) OnLockAcquired(resource string) {
	m.held.WithLabelValues(resource).Set(1)
	m.attempts.WithLabelValues(resource, "acquired").Inc()
}

// OnLockFailed updates "attempt_total".
func (m LockMetrics) OnLockFailed(resource string, _ error) {
	m.attempts.WithLabelValues(resource, "failed").Inc()
}

// OnLockLost updates "held" and "lost_total".
func (m LockMetrics) OnLockLost(resource string) {
	m.held.WithLabelValues(resource).Set(0)
	m.lost.WithLabelValues(resource).Inc()
}

// OnLockReleased updates "held".
func (m LockMetrics) OnLockReleased(resource string) {
	m.held.WithLabelValues(resource).Set(0)
}
