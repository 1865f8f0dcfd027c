package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/matchboard/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Provider call rate by outcome. Each live fetch costs quota; watch for rate_limited.
	GenAICallsTotal *prometheus.CounterVec

	// Provider latency. Grounded generation is slow; p95 well above 10s means trouble.
	GenAIDuration *prometheus.HistogramVec

	// Retry attempts for provider calls. Watch for: unstable upstream.
	GenAIRetriesTotal prometheus.Counter

	// Failed live fetches by category (see client.CategorizeError).
	GenAIErrorsTotal *prometheus.CounterVec

	// Cache hits. kind=fresh for hits inside the freshness window, kind=stale for failure fallbacks.
	CacheHitsTotal *prometheus.CounterVec

	// Age of the cache record when served. Watch for: stale serves climbing toward days.
	CacheRecordAgeSeconds prometheus.Histogram

	// Store errors by operation and category.
	StoreErrorsTotal *prometheus.CounterVec

	// Store operation latency.
	StoreOperationDurationSeconds *prometheus.HistogramVec

	// Corrupt cache records discarded on load.
	StoreCorruptRecordsTotal prometheus.Counter

	// Results handed to the view by provenance and reason.
	ResultsTotal *prometheus.CounterVec

	// Forced refreshes rejected by the cooldown guard.
	RefreshCooldownRejectionsTotal prometheus.Counter

	// Circuit breaker state (0=closed, 1=open, 2=half_open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload.
	RateLimitDeniedTotal prometheus.Counter

	// Cache warming runs, duration and failures.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram
	CacheWarmingErrorsTotal     prometheus.Counter

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	GenAICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genaiApiCallsTotal",
			Help: "Total number of generative provider calls",
		},
		[]string{"status"},
	)
	GenAIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genaiApiDurationSeconds",
			Help:    "Generative provider latency in seconds (per call)",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"status"},
	)
	GenAIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "genaiApiRetriesTotal",
			Help: "Total number of retry attempts for provider calls",
		},
	)
	GenAIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genaiApiErrorsTotal",
			Help: "Failed live fetches by error category",
		},
		[]string{"category"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Cache records served, by kind (fresh or stale)",
		},
		[]string{"kind"},
	)
	CacheRecordAgeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheRecordAgeSeconds",
			Help:    "Age of the cache record at the time it was served",
			Buckets: []float64{60, 600, 1800, 3600, 6 * 3600, 12 * 3600, 24 * 3600, 7 * 24 * 3600},
		},
	)
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeErrorsTotal",
			Help: "Cache store errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	StoreOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "Cache store operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	StoreCorruptRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storeCorruptRecordsTotal",
			Help: "Corrupt cache records discarded on load",
		},
	)
	ResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchResultsTotal",
			Help: "Match results returned to the view, by provenance and reason",
		},
		[]string{"provenance", "reason"},
	)
	RefreshCooldownRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refreshCooldownRejectionsTotal",
			Help: "Forced refreshes rejected because the cooldown had not elapsed",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming duration in seconds",
			Buckets: []float64{.01, .1, 1, 5, 10, 30, 60},
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs that did not produce live data",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		GenAICallsTotal, GenAIDuration, GenAIRetriesTotal, GenAIErrorsTotal,
		CacheHitsTotal, CacheRecordAgeSeconds,
		StoreErrorsTotal, StoreOperationDurationSeconds, StoreCorruptRecordsTotal,
		ResultsTotal, RefreshCooldownRejectionsTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		RateLimitDeniedTotal,
		CacheWarmingTotal, CacheWarmingDurationSeconds, CacheWarmingErrorsTotal,
	)
}

// RegisterTrafficGauges registers sliding-window gauges over the traffic tracker.
// Call from main after config load with the degraded window.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "requestsInWindow",
					Help: "Match requests (success + error + denied) in the sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in the sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordResult counts a result handed to the view.
func RecordResult(provenance, reason string) {
	if reason == "" {
		reason = "none"
	}
	ResultsTotal.WithLabelValues(provenance, reason).Inc()
}

// CircuitBreakerStateValue maps the breaker's int state to the gauge value.
func CircuitBreakerStateValue(state int) float64 {
	return float64(state)
}

// RecordCircuitBreakerTransition counts a state transition and updates the gauge.
func RecordCircuitBreakerTransition(component, from, to string, toState int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(CircuitBreakerStateValue(toState))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
