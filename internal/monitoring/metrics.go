package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const responseSamples = 1000

// Metrics holds application metrics
type Metrics struct {
	RequestCount       int64
	ErrorCount         int64
	CacheHits          int64
	CacheMisses        int64
	GitHubAPICalls     int64
	AnalysisCount      int64
	NarrativeCalls     int64
	NarrativeFallbacks int64
	StartTime          time.Time

	responseTimes []time.Duration
	responseMu    sync.RWMutex

	requestCountByStatus map[int]int64
	statusMu             sync.RWMutex

	externalAPIRequests map[string]int64
	externalAPIErrors   map[string]int64
	externalMu          sync.RWMutex

	RateLimitBlocks      int64
	RateLimitRedisErrors int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		responseTimes:        make([]time.Duration, 0, responseSamples),
		requestCountByStatus: make(map[int]int64),
		externalAPIRequests:  make(map[string]int64),
		externalAPIErrors:    make(map[string]int64),
	}
}

func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementGitHubCalls counts snapshot collections, not individual requests.
func (m *Metrics) IncrementGitHubCalls() {
	atomic.AddInt64(&m.GitHubAPICalls, 1)
}

func (m *Metrics) IncrementAnalysis() {
	atomic.AddInt64(&m.AnalysisCount, 1)
}

// RecordNarrative counts a narrative generation and whether it fell back.
func (m *Metrics) RecordNarrative(offline bool) {
	atomic.AddInt64(&m.NarrativeCalls, 1)
	if offline {
		atomic.AddInt64(&m.NarrativeFallbacks, 1)
	}
}

func (m *Metrics) IncrementRateLimitBlock() {
	atomic.AddInt64(&m.RateLimitBlocks, 1)
}

func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// RecordResponseTime keeps the last responseSamples durations for percentiles.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.responseMu.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > responseSamples {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseMu.Unlock()
}

func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.requestCountByStatus[statusCode]++
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(apiName string, success bool) {
	m.externalMu.Lock()
	defer m.externalMu.Unlock()

	m.externalAPIRequests[apiName]++
	if !success {
		m.externalAPIErrors[apiName]++
	}
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseMu.RLock()
	times := make([]time.Duration, len(m.responseTimes))
	copy(times, m.responseTimes)
	m.responseMu.RUnlock()

	if len(times) == 0 {
		return 0
	}

	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	distribution := make(map[int]int64, len(m.requestCountByStatus))
	for code, count := range m.requestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetExternalAPIStats returns external API statistics
func (m *Metrics) GetExternalAPIStats() map[string]interface{} {
	m.externalMu.RLock()
	defer m.externalMu.RUnlock()

	stats := make(map[string]interface{}, len(m.externalAPIRequests))
	for api, requests := range m.externalAPIRequests {
		errors := m.externalAPIErrors[api]
		errorRate := float64(0)
		if requests > 0 {
			errorRate = float64(errors) / float64(requests) * 100
		}

		stats[api] = map[string]interface{}{
			"requests":   requests,
			"errors":     errors,
			"error_rate": errorRate,
		}
	}
	return stats
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,
		"github_collections":     atomic.LoadInt64(&m.GitHubAPICalls),
		"analyses":               atomic.LoadInt64(&m.AnalysisCount),
		"narrative_calls":        atomic.LoadInt64(&m.NarrativeCalls),
		"narrative_fallbacks":    atomic.LoadInt64(&m.NarrativeFallbacks),
		"start_time":             m.StartTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / float64(time.Millisecond),
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / float64(time.Millisecond),
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / float64(time.Millisecond),
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"external_api_stats":       m.GetExternalAPIStats(),

		"rate_limit_blocks":       atomic.LoadInt64(&m.RateLimitBlocks),
		"rate_limit_redis_errors": atomic.LoadInt64(&m.RateLimitRedisErrors),

		"go_goroutines":     runtime.NumGoroutine(),
		"go_gc_count":       mem.NumGC,
		"go_heap_alloc_mb":  float64(mem.HeapAlloc) / 1024 / 1024,
		"go_heap_sys_bytes": mem.HeapSys,
	}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	for _, counter := range []*int64{
		&m.RequestCount, &m.ErrorCount, &m.CacheHits, &m.CacheMisses,
		&m.GitHubAPICalls, &m.AnalysisCount, &m.NarrativeCalls, &m.NarrativeFallbacks,
		&m.RateLimitBlocks, &m.RateLimitRedisErrors,
	} {
		atomic.StoreInt64(counter, 0)
	}

	m.responseMu.Lock()
	m.responseTimes = m.responseTimes[:0]
	m.responseMu.Unlock()

	m.statusMu.Lock()
	m.requestCountByStatus = make(map[int]int64)
	m.statusMu.Unlock()

	m.externalMu.Lock()
	m.externalAPIRequests = make(map[string]int64)
	m.externalAPIErrors = make(map[string]int64)
	m.externalMu.Unlock()

	m.StartTime = time.Now()
}
