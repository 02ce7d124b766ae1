// Copyright (C) 2017 ScyllaDB

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// SchedulerMetrics tracks job runs, it implements schedule.Listener.
type SchedulerMetrics struct {
	runIndicator *prometheus.GaugeVec
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.GaugeVec
	lockFailures *prometheus.CounterVec
}

// NewSchedulerMetrics creates scheduler metrics, call MustRegister to make
// them visible.
func NewSchedulerMetrics() SchedulerMetrics {
	g := gaugeVecCreator("scheduler")
	c := counterVecCreator("scheduler")

	return SchedulerMetrics{
		runIndicator: g("If the job is running the value is 1 otherwise it's 0.",
			"run_indicator", "host", "job"),
		runsTotal: c("Total number of job runs parametrized by status.",
			"run_total", "host", "job", "status"),
		runDuration: g("Duration of the last job run in seconds.",
			"last_run_duration_seconds", "host", "job"),
		lockFailures: c("Total number of failed attempts to lock job resources.",
			"lock_failure_total", "host", "job"),
	}
}

func (m SchedulerMetrics) all() []prometheus.Collector {
	return []prometheus.Collector{
		m.runIndicator,
		m.runsTotal,
		m.runDuration,
		m.lockFailures,
	}
}

// MustRegister shall be called to make the metrics visible by prometheus client.
func (m SchedulerMetrics) MustRegister() SchedulerMetrics {
	prometheus.MustRegister(m.all()...)
	return m
}

// OnRunStart updates "run_indicator".
func (m SchedulerMetrics) OnRunStart(host string, jobID uuid.UUID) {
	m.runIndicator.WithLabelValues(host, jobID.String()).Set(1)
}

// OnRunSuccess updates "run_indicator", "run_total" and "last_run_duration_seconds".
func (m SchedulerMetrics) OnRunSuccess(host string, jobID uuid.UUID, d time.Duration) {
	m.endRun(host, jobID, d, "success")
}

// OnRunError updates "run_indicator", "run_total" and "last_run_duration_seconds".
func (m SchedulerMetrics) OnRunError(host string, jobID uuid.UUID, d time.Duration, _ error) {
	m.endRun(host, jobID, d, "error")
}

func (m SchedulerMetrics) endRun(host string, jobID uuid.UUID, d time.Duration, status string) {
	m.runIndicator.WithLabelValues(host, jobID.String()).Set(0)
	m.runsTotal.WithLabelValues(host, jobID.String(), status).Inc()
	m.runDuration.WithLabelValues(host, jobID.String()).Set(d.Seconds())
}

// OnLockFailed updates "lock_failure_total".
func (m SchedulerMetrics) OnLockFailed(host string, jobID uuid.UUID, _ error) {
	m.lockFailures.WithLabelValues(host, jobID.String()).Inc()
}

// DeleteJob removes all metrics of a job.
func (m SchedulerMetrics) DeleteJob(host string, jobID uuid.UUID) {
	l := prometheus.Labels{"host": host, "job": jobID.String()}
	for _, c := range []interface {
		DeletePartialMatch(labels prometheus.Labels) int
	}{m.runIndicator, m.runsTotal, m.runDuration, m.lockFailures} {
		c.DeletePartialMatch(l)
	}
}
