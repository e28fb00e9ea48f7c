package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a server. Each server owns its
// registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	jobsCreated  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	steps        *prometheus.CounterVec
	bestEnergy   *prometheus.GaugeVec
	runDuration  *prometheus.HistogramVec
	checkpoints  *prometheus.CounterVec
}

// NewMetrics registers the server collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: problem
		jobsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lahc",
			Subsystem: "jobs",
			Name:      "created_total",
			Help:      "Total jobs submitted",
		}, []string{"problem"}),

		// Labels: problem, state (completed, failed, cancelled)
		jobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lahc",
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total jobs that reached a terminal state",
		}, []string{"problem", "state"}),

		jobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lahc",
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Jobs currently running",
		}),

		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lahc",
			Subsystem: "search",
			Name:      "steps_total",
			Help:      "Search steps completed across all jobs",
		}, []string{"problem"}),

		// Last reported best energy of the most recent job per problem.
		bestEnergy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lahc",
			Subsystem: "search",
			Name:      "best_energy",
			Help:      "Best energy reported by the latest job of a problem",
		}, []string{"problem"}),

		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lahc",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Wall time of finished jobs",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"problem"}),

		// Labels: status (saved, error)
		checkpoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lahc",
			Subsystem: "store",
			Name:      "checkpoints_total",
			Help:      "Checkpoint save attempts",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) jobCreated(problem string) {
	m.jobsCreated.WithLabelValues(problem).Inc()
}

func (m *Metrics) jobStarted() {
	m.jobsRunning.Inc()
}

func (m *Metrics) jobFinished(problem string, state JobState, elapsed time.Duration) {
	m.jobsRunning.Dec()
	m.jobsFinished.WithLabelValues(problem, string(state)).Inc()
	m.runDuration.WithLabelValues(problem).Observe(elapsed.Seconds())
}

func (m *Metrics) progress(problem string, deltaSteps int, bestEnergy float64) {
	if deltaSteps > 0 {
		m.steps.WithLabelValues(problem).Add(float64(deltaSteps))
	}
	m.bestEnergy.WithLabelValues(problem).Set(bestEnergy)
}

func (m *Metrics) checkpoint(err error) {
	status := "saved"
	if err != nil {
		status = "error"
	}
	m.checkpoints.WithLabelValues(status).Inc()
}
