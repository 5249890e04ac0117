// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsReceived *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	EventErrors    *prometheus.CounterVec

	// Registry metrics
	RegistrySize       prometheus.Gauge
	CandidatesSelected *prometheus.CounterVec
	CandidatesExpired  prometheus.Counter
	SelectionCycles    prometheus.Counter

	// Decision metrics
	GuardOutcomes      *prometheus.CounterVec
	StrategySignals    *prometheus.CounterVec
	EvaluationLatency  *prometheus.HistogramVec
	EvaluationFailures *prometheus.CounterVec

	// Provider metrics
	ProviderCallLatency *prometheus.HistogramVec
	ProviderCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSelectionCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_signal_engine"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_received_total",
			Help:      "Discovery events received by source",
		}, []string{"source"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_dropped_total",
			Help:      "Discovery events dropped by source and reason",
		}, []string{"source", "reason"}),
		EventErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "source_errors_total",
			Help:      "Event source errors by source",
		}, []string{"source"}),

		RegistrySize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "candidates",
			Help:      "Live candidates held by the registry",
		}),
		CandidatesSelected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "selected_total",
			Help:      "Candidates selected for evaluation by source",
		}, []string{"source"}),
		CandidatesExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "expired_total",
			Help:      "Candidates removed after TTL expiry",
		}),
		SelectionCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "selection_cycles_total",
			Help:      "Completed selection cycles",
		}),

		GuardOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "outcomes_total",
			Help:      "Guard check outcomes by check and outcome",
		}, []string{"check", "outcome"}),
		StrategySignals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "signals_total",
			Help:      "Strategy results by sleeve, signal and kind (entry/exit)",
		}, []string{"sleeve", "signal", "kind"}),
		EvaluationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "evaluation_latency_seconds",
			Help:      "Entry/exit evaluation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		EvaluationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "evaluation_failures_total",
			Help:      "Evaluations that ended in an error or panic",
		}, []string{"kind"}),

		ProviderCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "method"}),
		ProviderCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_errors_total",
			Help:      "Provider call errors after retries",
		}, []string{"provider", "method"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSelectionCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_selection_cycle_timestamp",
			Help:      "Unix timestamp of the last completed selection cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordEventReceived increments the events received counter.
func RecordEventReceived(source string) {
	DefaultMetrics.EventsReceived.WithLabelValues(source).Inc()
}

// RecordEventDropped records a dropped discovery event.
func RecordEventDropped(source, reason string) {
	DefaultMetrics.EventsDropped.WithLabelValues(source, reason).Inc()
}

// RecordSourceError records an event source failure.
func RecordSourceError(source string) {
	DefaultMetrics.EventErrors.WithLabelValues(source).Inc()
}

// UpdateRegistrySize sets the registry size gauge.
func UpdateRegistrySize(n int) {
	DefaultMetrics.RegistrySize.Set(float64(n))
}

// RecordSelectionCycle records one completed selection cycle.
func RecordSelectionCycle(expired int, selectedSources []string, unixSeconds int64) {
	DefaultMetrics.SelectionCycles.Inc()
	DefaultMetrics.CandidatesExpired.Add(float64(expired))
	for _, src := range selectedSources {
		DefaultMetrics.CandidatesSelected.WithLabelValues(src).Inc()
	}
	DefaultMetrics.LastSelectionCycle.Set(float64(unixSeconds))
}

// RecordGuardOutcome records one guard check outcome.
func RecordGuardOutcome(check, outcome string) {
	DefaultMetrics.GuardOutcomes.WithLabelValues(check, outcome).Inc()
}

// RecordSignal records a strategy result and its evaluation latency.
func RecordSignal(kind, sleeve, signal string, seconds float64) {
	DefaultMetrics.StrategySignals.WithLabelValues(sleeve, signal, kind).Inc()
	DefaultMetrics.EvaluationLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordEvaluationFailure records an evaluation that errored or panicked.
func RecordEvaluationFailure(kind string) {
	DefaultMetrics.EvaluationFailures.WithLabelValues(kind).Inc()
}

// RecordProviderCall records provider call latency and errors.
func RecordProviderCall(provider, method string, seconds float64, err error) {
	DefaultMetrics.ProviderCallLatency.WithLabelValues(provider, method).Observe(seconds)
	if err != nil {
		DefaultMetrics.ProviderCallErrors.WithLabelValues(provider, method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
