// Package observability wires Prometheus metrics for the runtime core: LLM
// usage, approval latency, and gateway queue depth (spec §4.6). Grounded on
// the teacher's internal/observability/metrics.go (same promauto pattern,
// same Record*/Set* accessor shape), scoped down to this module's domain.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide set of Prometheus collectors. A nil *Metrics
// is valid everywhere it's threaded through (every Record/Set method is a
// nil-safe no-op), so metrics are strictly optional wiring.
type Metrics struct {
	// LLMRequestDuration measures provider completion latency in seconds.
	// Labels: provider, model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts completions by outcome.
	// Labels: provider, model, status (success|error).
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion).
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD accumulates estimated spend.
	// Labels: provider, model.
	LLMCostUSD *prometheus.CounterVec

	// ApprovalLatency measures time from an approval prompt to its
	// resolution. Labels: outcome (approved|denied|expired|cancelled).
	ApprovalLatency *prometheus.HistogramVec

	// GatewayConnectedClients is the current websocket connection count.
	GatewayConnectedClients prometheus.Gauge

	// GatewayQueueDepth is the current outbound frame queue depth for one
	// client connection. Labels: session_id.
	GatewayQueueDepth *prometheus.GaugeVec
}

// New registers and returns the full metrics set against the default
// Prometheus registry. Call once at startup; nil is also a valid Metrics
// value everywhere it's passed, for callers (tests, cli subcommands) that
// don't want metrics wired.
func New() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexuscore_llm_request_duration_seconds",
				Help:    "Duration of LLM completion requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_llm_requests_total",
				Help: "Total number of LLM completion requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),
		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_llm_cost_usd_total",
				Help: "Estimated LLM API cost in USD by provider and model",
			},
			[]string{"provider", "model"},
		),
		ApprovalLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexuscore_approval_latency_seconds",
				Help:    "Time from an approval prompt to its resolution",
				Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
			},
			[]string{"outcome"},
		),
		GatewayConnectedClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "nexuscore_gateway_connected_clients",
				Help: "Current number of connected websocket clients",
			},
		),
		GatewayQueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nexuscore_gateway_queue_depth",
				Help: "Current outbound frame queue depth per client connection",
			},
			[]string{"session_id"},
		),
	}
}

// RecordLLMRequest records one completed or failed LLM call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, latency time.Duration, promptTokens, completionTokens int, costUSD float64) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(latency.Seconds())
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
	if costUSD > 0 {
		m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
	}
}

// RecordApprovalResolved records the latency from prompt to resolution.
func (m *Metrics) RecordApprovalResolved(outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.ApprovalLatency.WithLabelValues(outcome).Observe(latency.Seconds())
}

// ClientConnected increments the connected-client gauge.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.GatewayConnectedClients.Inc()
}

// ClientDisconnected decrements the connected-client gauge and clears the
// disconnected client's queue-depth series.
func (m *Metrics) ClientDisconnected(sessionID string) {
	if m == nil {
		return
	}
	m.GatewayConnectedClients.Dec()
	m.GatewayQueueDepth.DeleteLabelValues(sessionID)
}

// SetQueueDepth records one client's current outbound queue depth.
func (m *Metrics) SetQueueDepth(sessionID string, depth int) {
	if m == nil {
		return
	}
	m.GatewayQueueDepth.WithLabelValues(sessionID).Set(float64(depth))
}
