// Package metrics collects and exposes riftd runtime observability data.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct (per-imposter counters + time series)
//     for the lightweight JSON /metrics endpoint used by local tooling.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems.
//
// Keeping both allows ad hoc inspection without a Prometheus sidecar while
// still supporting a real monitoring stack.
//
// # Concurrency — hot path
//
// RecordRequest is called from the imposter dispatcher and the
// fault-injection proxy handler on every request and must be as fast as
// possible. It uses atomic increments for global counters and dispatches a
// lightweight event onto a buffered channel (tsChan) for the time-series
// worker to process asynchronously. This avoids holding any lock on the
// hot path.
//
// The per-imposter ImposterMetrics struct also uses atomic operations
// exclusively; the sync.Map that stores the per-imposter entries is
// read-heavy and write-once-per-new-imposter, which is the ideal use case
// for sync.Map.
//
// # Invariants
//
//   - RequestsTotal == RequestsSuccess + RequestsFailed (maintained by
//     RecordRequest).
//   - The time-series ring buffer holds at most timeSeriesBucketCount
//     buckets (24 * 60 = 1440 for the last 24 hours at 1-minute
//     granularity).
//   - tsChan capacity is 8192 events; events dropped when full are counted
//     in tsDroppedEvents for observability.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	timeSeriesBucketDuration = time.Minute
	timeSeriesBucketCount    = 24 * 60
)

// TimeSeriesBucket stores metrics for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp    time.Time
	Requests     int64
	Errors       int64
	TotalLatency int64
	Count        int64
}

// Metrics collects and exposes riftd runtime metrics.
type Metrics struct {
	RequestsTotal   atomic.Int64
	RequestsSuccess atomic.Int64
	RequestsFailed  atomic.Int64

	StubMatches   atomic.Int64
	NoStubMatched atomic.Int64

	FaultsLatency atomic.Int64
	FaultsError   atomic.Int64
	FaultsTCP     atomic.Int64

	ScriptExecutions atomic.Int64
	ScriptTimeouts   atomic.Int64
	ScriptQueueFull  atomic.Int64

	DecisionCacheHits        atomic.Int64
	DecisionCacheMisses      atomic.Int64
	DecisionCacheInserts     atomic.Int64
	DecisionCacheEvictions   atomic.Int64
	DecisionCacheExpirations atomic.Int64

	RecordingStoreSize atomic.Int64

	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	imposterMetrics sync.Map // imposter name/port -> *ImposterMetrics
	ruleMetrics     sync.Map // rule id -> *atomic.Int64 (fault injections)

	timeSeriesMu    sync.RWMutex
	timeSeries      []*TimeSeriesBucket
	tsChan          chan timeSeriesEvent
	tsDroppedEvents atomic.Int64

	startTime time.Time
}

type timeSeriesEvent struct {
	durationMs int64
	isError    bool
}

// ImposterMetrics tracks metrics for a single imposter.
type ImposterMetrics struct {
	Requests atomic.Int64
	Success  atomic.Int64
	Failures atomic.Int64
	TotalMs  atomic.Int64
	MinMs    atomic.Int64
	MaxMs    atomic.Int64
}

var global = &Metrics{startTime: time.Now()}

func init() {
	global.MinLatencyMs.Store(int64(^uint64(0) >> 1))
	global.tsChan = make(chan timeSeriesEvent, 8192)
	global.initTimeSeries()
	go global.processTimeSeriesLoop()
}

func (m *Metrics) initTimeSeries() {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)
	m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
	for i := 0; i < timeSeriesBucketCount; i++ {
		m.timeSeries[i] = &TimeSeriesBucket{
			Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
		}
	}
}

// Global returns the global metrics instance.
func Global() *Metrics { return global }

// StartTime returns the time when the metrics system was initialized.
func StartTime() time.Time { return global.startTime }

// RecordRequest records a completed request through an imposter or the
// fault-injection proxy.
func (m *Metrics) RecordRequest(listener string, durationMs int64, success bool) {
	m.RequestsTotal.Add(1)
	if success {
		m.RequestsSuccess.Add(1)
	} else {
		m.RequestsFailed.Add(1)
	}
	m.TotalLatencyMs.Add(durationMs)
	updateMin(&m.MinLatencyMs, durationMs)
	updateMax(&m.MaxLatencyMs, durationMs)

	im := m.getImposterMetrics(listener)
	im.Requests.Add(1)
	if success {
		im.Success.Add(1)
	} else {
		im.Failures.Add(1)
	}
	im.TotalMs.Add(durationMs)
	updateMin(&im.MinMs, durationMs)
	updateMax(&im.MaxMs, durationMs)

	m.recordTimeSeries(durationMs, !success)
	RecordPrometheusRequest(listener, durationMs, success)
}

// RecordStubMatch records whether an imposter dispatch found a matching
// stub or fell through to the default response.
func (m *Metrics) RecordStubMatch(matched bool) {
	if matched {
		m.StubMatches.Add(1)
	} else {
		m.NoStubMatched.Add(1)
	}
	RecordPrometheusStubMatch(matched)
}

// RecordFault records a fault injection of the given kind for a rule.
func (m *Metrics) RecordFault(ruleID, kind string) {
	switch kind {
	case "latency":
		m.FaultsLatency.Add(1)
	case "error":
		m.FaultsError.Add(1)
	case "tcp":
		m.FaultsTCP.Add(1)
	}
	if ruleID != "" {
		counter := m.getRuleCounter(ruleID)
		counter.Add(1)
	}
	RecordPrometheusFault(ruleID, kind)
}

// RecordScriptExecution records a script pool job outcome.
func (m *Metrics) RecordScriptExecution(timedOut, queueFull bool) {
	m.ScriptExecutions.Add(1)
	if timedOut {
		m.ScriptTimeouts.Add(1)
	}
	if queueFull {
		m.ScriptQueueFull.Add(1)
	}
	RecordPrometheusScriptExecution(timedOut, queueFull)
}

// RecordDecisionCache records a decision cache lookup/write outcome.
func (m *Metrics) RecordDecisionCache(event string) {
	switch event {
	case "hit":
		m.DecisionCacheHits.Add(1)
	case "miss":
		m.DecisionCacheMisses.Add(1)
	case "insert":
		m.DecisionCacheInserts.Add(1)
	case "eviction":
		m.DecisionCacheEvictions.Add(1)
	case "expiration":
		m.DecisionCacheExpirations.Add(1)
	}
	RecordPrometheusDecisionCache(event)
}

// SetRecordingStoreSize sets the current recording store entry count.
func (m *Metrics) SetRecordingStoreSize(n int) {
	m.RecordingStoreSize.Store(int64(n))
	SetPrometheusRecordingStoreSize(n)
}

// SetScriptPoolDepth sets the current script pool queue depth gauge.
func (m *Metrics) SetScriptPoolDepth(depth int) {
	SetPrometheusScriptPoolDepth(depth)
}

func (m *Metrics) recordTimeSeries(durationMs int64, isError bool) {
	select {
	case m.tsChan <- timeSeriesEvent{durationMs: durationMs, isError: isError}:
	default:
		m.tsDroppedEvents.Add(1)
	}
}

func (m *Metrics) processTimeSeriesLoop() {
	for evt := range m.tsChan {
		m.applyTimeSeriesEvent(evt.durationMs, evt.isError)
	}
}

func (m *Metrics) applyTimeSeriesEvent(durationMs int64, isError bool) {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)

	if len(m.timeSeries) > 0 {
		lastBucket := m.timeSeries[len(m.timeSeries)-1]
		bucketsDiff := int(now.Sub(lastBucket.Timestamp) / timeSeriesBucketDuration)

		if bucketsDiff > 0 {
			if bucketsDiff >= timeSeriesBucketCount {
				m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
				for i := 0; i < timeSeriesBucketCount; i++ {
					m.timeSeries[i] = &TimeSeriesBucket{
						Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
					}
				}
			} else {
				m.timeSeries = m.timeSeries[bucketsDiff:]
				for i := 0; i < bucketsDiff; i++ {
					m.timeSeries = append(m.timeSeries, &TimeSeriesBucket{
						Timestamp: lastBucket.Timestamp.Add(time.Duration(i+1) * timeSeriesBucketDuration),
					})
				}
			}
		}
	}

	if len(m.timeSeries) > 0 {
		bucket := m.timeSeries[len(m.timeSeries)-1]
		bucket.Requests++
		bucket.TotalLatency += durationMs
		bucket.Count++
		if isError {
			bucket.Errors++
		}
	}
}

func (m *Metrics) getImposterMetrics(listener string) *ImposterMetrics {
	if v, ok := m.imposterMetrics.Load(listener); ok {
		return v.(*ImposterMetrics)
	}
	im := &ImposterMetrics{}
	im.MinMs.Store(int64(^uint64(0) >> 1))
	actual, _ := m.imposterMetrics.LoadOrStore(listener, im)
	return actual.(*ImposterMetrics)
}

func (m *Metrics) getRuleCounter(ruleID string) *atomic.Int64 {
	if v, ok := m.ruleMetrics.Load(ruleID); ok {
		return v.(*atomic.Int64)
	}
	counter := &atomic.Int64{}
	actual, _ := m.ruleMetrics.LoadOrStore(ruleID, counter)
	return actual.(*atomic.Int64)
}

// GetImposterMetrics returns the metrics for a specific imposter (or nil if
// none recorded yet).
func (m *Metrics) GetImposterMetrics(listener string) *ImposterMetrics {
	if v, ok := m.imposterMetrics.Load(listener); ok {
		return v.(*ImposterMetrics)
	}
	return nil
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() map[string]interface{} {
	total := m.RequestsTotal.Load()
	avgLatency := float64(0)
	if total > 0 {
		avgLatency = float64(m.TotalLatencyMs.Load()) / float64(total)
	}

	minLatency := m.MinLatencyMs.Load()
	if minLatency == int64(^uint64(0)>>1) {
		minLatency = 0
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"requests": map[string]interface{}{
			"total":   total,
			"success": m.RequestsSuccess.Load(),
			"failed":  m.RequestsFailed.Load(),
		},
		"latency_ms": map[string]interface{}{
			"avg": avgLatency,
			"min": minLatency,
			"max": m.MaxLatencyMs.Load(),
		},
		"stubs": map[string]interface{}{
			"matched":    m.StubMatches.Load(),
			"no_match":   m.NoStubMatched.Load(),
		},
		"faults": map[string]interface{}{
			"latency": m.FaultsLatency.Load(),
			"error":   m.FaultsError.Load(),
			"tcp":     m.FaultsTCP.Load(),
		},
		"scripts": map[string]interface{}{
			"executions": m.ScriptExecutions.Load(),
			"timeouts":   m.ScriptTimeouts.Load(),
			"queue_full": m.ScriptQueueFull.Load(),
		},
		"decision_cache": map[string]interface{}{
			"hits":        m.DecisionCacheHits.Load(),
			"misses":      m.DecisionCacheMisses.Load(),
			"inserts":     m.DecisionCacheInserts.Load(),
			"evictions":   m.DecisionCacheEvictions.Load(),
			"expirations": m.DecisionCacheExpirations.Load(),
		},
		"recording_store_size": m.RecordingStoreSize.Load(),
		"ts_dropped_events":     m.tsDroppedEvents.Load(),
	}
}

// ImposterStats returns per-imposter metrics.
func (m *Metrics) ImposterStats() map[string]interface{} {
	result := make(map[string]interface{})

	m.imposterMetrics.Range(func(key, value interface{}) bool {
		listener := key.(string)
		im := value.(*ImposterMetrics)

		total := im.Requests.Load()
		avgMs := float64(0)
		if total > 0 {
			avgMs = float64(im.TotalMs.Load()) / float64(total)
		}

		minMs := im.MinMs.Load()
		if minMs == int64(^uint64(0)>>1) {
			minMs = 0
		}

		result[listener] = map[string]interface{}{
			"requests": total,
			"success":  im.Success.Load(),
			"failures": im.Failures.Load(),
			"avg_ms":   avgMs,
			"min_ms":   minMs,
			"max_ms":   im.MaxMs.Load(),
		}
		return true
	})

	return result
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		result := m.Snapshot()
		result["imposters"] = m.ImposterStats()
		json.NewEncoder(w).Encode(result)
	})
}

// TimeSeries returns minute-level time-series data for the last 24 hours.
func (m *Metrics) TimeSeries() []map[string]interface{} {
	m.timeSeriesMu.RLock()
	defer m.timeSeriesMu.RUnlock()

	result := make([]map[string]interface{}, len(m.timeSeries))
	for i, bucket := range m.timeSeries {
		avgDuration := float64(0)
		if bucket.Count > 0 {
			avgDuration = float64(bucket.TotalLatency) / float64(bucket.Count)
		}
		result[i] = map[string]interface{}{
			"timestamp":    bucket.Timestamp.Format(time.RFC3339),
			"requests":     bucket.Requests,
			"errors":       bucket.Errors,
			"avg_duration": avgDuration,
		}
	}
	return result
}

// TimeSeriesHandler returns an HTTP handler for time-series metrics.
func (m *Metrics) TimeSeriesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.TimeSeries())
	})
}

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}
