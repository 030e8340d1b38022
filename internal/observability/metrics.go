package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the collector set exposed on the daemon's /metrics endpoint,
// covering the components whose operations benefit from dashboards and
// alerting: compression scheduling, GNN enhancement, provenance scoring,
// shadow validation verdicts, pattern confidence, the reasoning bank's
// drift guard, and unified search latency.
type Metrics struct {
	registry *prometheus.Registry

	CompressionTierTransitions *prometheus.CounterVec
	GNNEnhanceLatency          prometheus.Histogram
	GNNCircuitBreakerState     *prometheus.GaugeVec
	ProvenanceLScore           prometheus.Summary
	ShadowVerdicts             *prometheus.CounterVec
	PatternConfidence          prometheus.Histogram
	ReasoningDriftRejections   *prometheus.CounterVec
	ReasoningRollbacks         *prometheus.CounterVec
	SearchLatency              *prometheus.HistogramVec
	SearchPartialResults       prometheus.Counter
	BusDropped                 prometheus.Counter
	DaemonRequestsTotal        *prometheus.CounterVec
	DaemonActiveConnections    prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CompressionTierTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godagent_compression_tier_transitions_total",
			Help: "Count of compression tier transitions, labeled by from/to tier.",
		}, []string{"from", "to"}),
		GNNEnhanceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "godagent_gnn_enhance_latency_seconds",
			Help:    "Latency of GNN query enhancement calls.",
			Buckets: prometheus.DefBuckets,
		}),
		GNNCircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godagent_gnn_circuit_breaker_state",
			Help: "GNN enhancement circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"adapter"}),
		ProvenanceLScore: prometheus.NewSummary(prometheus.SummaryOpts{
			Name:       "godagent_provenance_lscore",
			Help:       "Distribution of computed L-Scores.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
		ShadowVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godagent_shadow_verdicts_total",
			Help: "Count of shadow validator verdicts, labeled by verdict.",
		}, []string{"verdict"}),
		PatternConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "godagent_pattern_confidence",
			Help:    "Distribution of pattern confidence scores after an update.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ReasoningDriftRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godagent_reasoning_drift_rejections_total",
			Help: "Count of feedback updates rejected by the drift guard, labeled by route.",
		}, []string{"route"}),
		ReasoningRollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godagent_reasoning_rollbacks_total",
			Help: "Count of checkpoint rollbacks, labeled by route and reason.",
		}, []string{"route", "reason"}),
		SearchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "godagent_search_adapter_latency_seconds",
			Help:    "Unified search per-adapter latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		SearchPartialResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godagent_search_partial_results_total",
			Help: "Count of unified search calls that returned a partial (degraded-source) result.",
		}),
		BusDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godagent_observability_bus_dropped_total",
			Help: "Count of events dropped by the observability bus due to backpressure.",
		}),
		DaemonRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godagent_daemon_requests_total",
			Help: "Count of daemon RPC requests, labeled by method and outcome.",
		}, []string{"method", "outcome"}),
		DaemonActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "godagent_daemon_active_connections",
			Help: "Current count of open daemon socket connections.",
		}),
	}

	reg.MustRegister(
		m.CompressionTierTransitions,
		m.GNNEnhanceLatency,
		m.GNNCircuitBreakerState,
		m.ProvenanceLScore,
		m.ShadowVerdicts,
		m.PatternConfidence,
		m.ReasoningDriftRejections,
		m.ReasoningRollbacks,
		m.SearchLatency,
		m.SearchPartialResults,
		m.BusDropped,
		m.DaemonRequestsTotal,
		m.DaemonActiveConnections,
	)
	return m
}

// Handler returns the HTTP handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
