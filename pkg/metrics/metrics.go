// Package metrics provides Prometheus metrics of the orchestrator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "save_orchestrator"

type Metrics struct {
	// Execution metrics
	ExecutionsStarted  prometheus.Counter
	ExecutionsFinished *prometheus.CounterVec

	// Agent metrics
	AgentsStarted prometheus.Counter
	AgentsCrashed prometheus.Counter
	Heartbeats    *prometheus.CounterVec

	// Test metrics
	TestsDispatched prometheus.Counter
	TestResults     *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates Metrics and registers them to reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExecutionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_started_total",
			Help:      "Number of executions whose agents are started.",
		}),
		ExecutionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_finished_total",
			Help:      "Number of executions which reached a terminal status.",
		}, []string{"status"}),
		AgentsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agents_started_total",
			Help:      "Number of agent containers started.",
		}),
		AgentsCrashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agents_crashed_total",
			Help:      "Number of agents marked as CRASHED.",
		}),
		Heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Number of heartbeats received, by reported agent state.",
		}, []string{"state"}),
		TestsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_dispatched_total",
			Help:      "Number of tests handed to agents.",
		}),
		TestResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_results_total",
			Help:      "Number of test results saved, by status.",
		}, []string{"status"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.ExecutionsStarted,
		m.ExecutionsFinished,
		m.AgentsStarted,
		m.AgentsCrashed,
		m.Heartbeats,
		m.TestsDispatched,
		m.TestResults,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler exposing metrics in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
