package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"refreshd/internal/runs"
)

// Metrics exports run-level counters for the maintenance jobs. It
// implements runs.Observer and hangs off the run recorder so every
// execution path is counted once.
type Metrics struct {
	runsTotal  *prometheus.CounterVec
	runSeconds *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "refreshd_job_runs_total",
			Help: "Completed job executions by job name and result.",
		}, []string{"job", "result"}),
		runSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "refreshd_job_run_duration_seconds",
			Help:    "Wall-clock duration of job executions.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
	}
}

func (m *Metrics) ObserveRun(run runs.JobRun) {
	result := "success"
	if !run.Success {
		result = "failure"
	}
	m.runsTotal.WithLabelValues(run.JobName, result).Inc()
	m.runSeconds.WithLabelValues(run.JobName).Observe(run.DurationMS / 1000)
}
