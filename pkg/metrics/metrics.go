// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMStreamDuration tracks LLM streaming response duration per round.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "LLM streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// SessionsTotal tracks total sessions created.
	SessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_total",
			Help: "Total sessions created",
		},
	)

	// MessagesTotal tracks messages appended to session history.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended to session history",
		},
		[]string{"role"},
	)

	// ToolExecutionsTotal tracks tool calls by outcome.
	ToolExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_executions_total",
			Help: "Total tool calls by tool and outcome",
		},
		[]string{"tool", "status"},
	)

	// ToolRoundsPerTurn tracks tool-call rounds per conversation turn.
	ToolRoundsPerTurn = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tool_rounds_per_turn",
			Help:    "Tool-call rounds per conversation turn",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// LeadSignalsTotal tracks published lead-eligibility signals.
	LeadSignalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_signals_total",
			Help: "Total lead-eligibility signals published",
		},
	)

	// LeadsCapturedTotal tracks persisted leads.
	LeadsCapturedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leads_captured_total",
			Help: "Total leads captured",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
