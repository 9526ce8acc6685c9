package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/tickets", "GET", 200, 30*time.Millisecond)
	m.RecordError("/api/tickets", "POST", "VALIDATION_FAILED")
	m.RecordCache("tickets", CacheHit)
	m.RecordCache("tickets", CacheHit)
	m.RecordCache("moderators", CacheDegraded)
	m.RecordAssignment("selected")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/tickets|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/tickets|POST|VALIDATION_FAILED"])
	assert.Equal(t, int64(2), snap.Cache["tickets|hit"])
	assert.Equal(t, int64(1), snap.Cache["moderators|degraded"])
	assert.Equal(t, int64(1), snap.Assignments["selected"])
	assert.InDelta(t, 20.0, snap.AvgLatencyMillis, 0.001)

	snap.Cache["tickets|hit"] = 99
	assert.Equal(t, int64(2), m.Snapshot().Cache["tickets|hit"], "snapshot must be a copy")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordCache("x", CacheMiss)
	m.RecordAssignment("none")
	assert.Empty(t, m.Snapshot().Requests)
}
