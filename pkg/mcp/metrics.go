package mcp

import (
	"sync"
	"sync/atomic"
	"time"
)

// latencyEWMAAlpha weights new samples in the average-latency estimate.
const latencyEWMAAlpha = 0.2

// Metrics tracks integration-layer counters. All methods are safe for
// concurrent use; counters are atomics, the latency estimate is guarded by
// a small mutex.
type Metrics struct {
	calls         atomic.Int64
	successes     atomic.Int64
	fallbackCalls atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64

	latencyMu  sync.Mutex
	avgLatency time.Duration
	hasSample  bool
}

// NewMetrics creates a zeroed metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordCall()     { m.calls.Add(1) }
func (m *Metrics) RecordSuccess() { m.successes.Add(1) }
func (m *Metrics) RecordFallback() {
	m.fallbackCalls.Add(1)
}
func (m *Metrics) RecordCacheHit()  { m.cacheHits.Add(1) }
func (m *Metrics) RecordCacheMiss() { m.cacheMisses.Add(1) }

// RecordLatency folds one sample into the exponentially weighted average.
func (m *Metrics) RecordLatency(d time.Duration) {
	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()
	if !m.hasSample {
		m.avgLatency = d
		m.hasSample = true
		return
	}
	m.avgLatency = time.Duration(latencyEWMAAlpha*float64(d) + (1-latencyEWMAAlpha)*float64(m.avgLatency))
}

// Snapshot is a point-in-time copy of the counters, shaped for the metrics
// endpoint and run summaries.
type Snapshot struct {
	MCPCalls      int64   `json:"mcp_calls"`
	Successes     int64   `json:"successes"`
	SuccessRate   float64 `json:"success_rate"`
	FallbackCalls int64   `json:"fallback_calls"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
}

// Snapshot returns current counter values.
func (m *Metrics) Snapshot() Snapshot {
	calls := m.calls.Load()
	successes := m.successes.Load()

	rate := 0.0
	if calls > 0 {
		rate = float64(successes) / float64(calls)
	}

	m.latencyMu.Lock()
	latency := m.avgLatency
	m.latencyMu.Unlock()

	return Snapshot{
		MCPCalls:      calls,
		Successes:     successes,
		SuccessRate:   rate,
		FallbackCalls: m.fallbackCalls.Load(),
		CacheHits:     m.cacheHits.Load(),
		CacheMisses:   m.cacheMisses.Load(),
		AvgLatencyMS:  float64(latency) / float64(time.Millisecond),
	}
}
