package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for riftd.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	stubMatches    prometheus.Counter
	stubNoMatch    prometheus.Counter
	faultsTotal    *prometheus.CounterVec
	scriptRuns     prometheus.Counter
	scriptTimeouts prometheus.Counter
	scriptQueueFull prometheus.Counter
	decisionCache  *prometheus.CounterVec

	requestDuration *prometheus.HistogramVec

	uptime              prometheus.GaugeFunc
	recordingStoreSize  prometheus.Gauge
	scriptPoolDepth     prometheus.Gauge
}

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests handled by an imposter or the fault-injection proxy",
			},
			[]string{"listener", "status"},
		),

		stubMatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stub_matches_total",
				Help:      "Total requests that matched a stub",
			},
		),

		stubNoMatch: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stub_no_match_total",
				Help:      "Total requests served by the default response (no stub matched)",
			},
		),

		faultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "faults_injected_total",
				Help:      "Total fault injections by rule and kind",
			},
			[]string{"rule_id", "kind"},
		),

		scriptRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_executions_total",
				Help:      "Total script pool job executions",
			},
		),

		scriptTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_timeouts_total",
				Help:      "Total script pool jobs that exceeded their timeout",
			},
		),

		scriptQueueFull: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_queue_full_total",
				Help:      "Total script pool submissions rejected because the queue was full",
			},
		),

		decisionCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decision_cache_events_total",
				Help:      "Decision cache hits, misses, inserts, evictions, and expirations",
			},
			[]string{"event"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_milliseconds",
				Help:      "Duration of requests in milliseconds",
				Buckets:   buckets,
			},
			[]string{"listener", "status"},
		),

		recordingStoreSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "recording_store_size",
				Help:      "Current number of signatures held in the recording store",
			},
		),

		scriptPoolDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "script_pool_queue_depth",
				Help:      "Current script pool queue depth",
			},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since riftd started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.requestsTotal,
		pm.stubMatches,
		pm.stubNoMatch,
		pm.faultsTotal,
		pm.scriptRuns,
		pm.scriptTimeouts,
		pm.scriptQueueFull,
		pm.decisionCache,
		pm.requestDuration,
		pm.uptime,
		pm.recordingStoreSize,
		pm.scriptPoolDepth,
	)

	promMetrics = pm
}

// RecordPrometheusRequest records a completed request.
func RecordPrometheusRequest(listener string, durationMs int64, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.requestsTotal.WithLabelValues(listener, status).Inc()
	promMetrics.requestDuration.WithLabelValues(listener, status).Observe(float64(durationMs))
}

// RecordPrometheusStubMatch records whether dispatch found a matching stub.
func RecordPrometheusStubMatch(matched bool) {
	if promMetrics == nil {
		return
	}
	if matched {
		promMetrics.stubMatches.Inc()
	} else {
		promMetrics.stubNoMatch.Inc()
	}
}

// RecordPrometheusFault records a fault injection.
func RecordPrometheusFault(ruleID, kind string) {
	if promMetrics == nil {
		return
	}
	promMetrics.faultsTotal.WithLabelValues(ruleID, kind).Inc()
}

// RecordPrometheusScriptExecution records a script pool job outcome.
func RecordPrometheusScriptExecution(timedOut, queueFull bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.scriptRuns.Inc()
	if timedOut {
		promMetrics.scriptTimeouts.Inc()
	}
	if queueFull {
		promMetrics.scriptQueueFull.Inc()
	}
}

// RecordPrometheusDecisionCache records a decision cache event.
func RecordPrometheusDecisionCache(event string) {
	if promMetrics == nil {
		return
	}
	promMetrics.decisionCache.WithLabelValues(event).Inc()
}

// SetPrometheusRecordingStoreSize sets the recording store size gauge.
func SetPrometheusRecordingStoreSize(n int) {
	if promMetrics == nil {
		return
	}
	promMetrics.recordingStoreSize.Set(float64(n))
}

// SetPrometheusScriptPoolDepth sets the script pool queue depth gauge.
func SetPrometheusScriptPoolDepth(depth int) {
	if promMetrics == nil {
		return
	}
	promMetrics.scriptPoolDepth.Set(float64(depth))
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
