package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recibo_events_total",
			Help: "Total number of inbound events by normalized kind (count)",
		},
		[]string{"kind"},
	)

	PipelineOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recibo_pipeline_outcomes_total",
			Help: "Terminal outcome of each reconciliation pipeline (count)",
		},
		[]string{"outcome"},
	)

	PipelinesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recibo_pipelines_in_flight",
			Help: "Number of reconciliation pipelines currently running (count)",
		},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recibo_pipeline_duration_ms",
			Help:    "End-to-end pipeline duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"outcome"},
	)

	MediaResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recibo_media_resolve_duration_ms",
			Help:    "Media acquisition duration in milliseconds",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000},
		},
		[]string{"strategy", "status"},
	)

	OracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recibo_oracle_request_duration_ms",
			Help:    "Verification oracle round-trip duration in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"status"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recibo_notifications_total",
			Help: "Outbound notifications by delivery status (count)",
		},
		[]string{"status"},
	)

	LedgerPendingPayees = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recibo_ledger_pending_payees",
			Help: "Number of ledger payees still pending settlement (count)",
		},
	)

	LedgerFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recibo_ledger_flushes_total",
			Help: "Ledger persistence flushes by status (count)",
		},
		[]string{"status"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recibo_rate_limit_requests_total",
			Help: "Requests seen by the rate limiter (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recibo_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recibo_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recibo_circuit_breaker_failures_total",
			Help: "Total number of failed requests through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(PipelineOutcomesTotal)
	prometheus.MustRegister(PipelinesInFlight)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(MediaResolveDuration)
	prometheus.MustRegister(OracleRequestDuration)
	prometheus.MustRegister(NotificationsTotal)
}

func RegisterLedgerMetrics() {
	prometheus.MustRegister(LedgerPendingPayees)
	prometheus.MustRegister(LedgerFlushesTotal)
}

func RegisterHTTPMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObservePipelineDuration(duration time.Duration, outcome string) {
	PipelineDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func ObserveOracleDuration(duration time.Duration, status string) {
	OracleRequestDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveMediaResolveDuration(duration time.Duration, strategy, status string) {
	MediaResolveDuration.WithLabelValues(strategy, status).Observe(float64(duration.Milliseconds()))
}
