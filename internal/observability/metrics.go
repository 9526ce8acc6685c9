package observability

import (
	"strconv"
	"sync"
	"time"
)

// CacheOutcome labels the result of a cache lookup.
type CacheOutcome string

const (
	CacheHit      CacheOutcome = "hit"
	CacheMiss     CacheOutcome = "miss"
	CacheBypass   CacheOutcome = "bypass"
	CacheDegraded CacheOutcome = "degraded"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	cacheCount    map[string]int64
	assignCount   map[string]int64
	totalLatency  time.Duration
	totalRequests int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests         map[string]int64 `json:"requests"`
	Errors           map[string]int64 `json:"errors"`
	Cache            map[string]int64 `json:"cache"`
	Assignments      map[string]int64 `json:"assignments"`
	AvgLatencyMillis float64          `json:"avg_latency_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		cacheCount:   make(map[string]int64),
		assignCount:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.totalRequests++
	m.totalLatency += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordCache counts a cache lookup outcome per key namespace.
func (m *Metrics) RecordCache(namespace string, outcome CacheOutcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheCount[namespace+"|"+string(outcome)]++
}

// RecordAssignment counts selector and assignment outcomes such as "selected" or "fallback".
func (m *Metrics) RecordAssignment(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignCount[outcome]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests:    copyCounts(m.requestCount),
		Errors:      copyCounts(m.errorCount),
		Cache:       copyCounts(m.cacheCount),
		Assignments: copyCounts(m.assignCount),
	}
	if m.totalRequests > 0 {
		snap.AvgLatencyMillis = float64(m.totalLatency.Milliseconds()) / float64(m.totalRequests)
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
