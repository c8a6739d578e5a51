package goLockout

import "sync/atomic"

// MetricID names one counter tracked by the collector.
type MetricID uint16

const (
	MetricStateRead MetricID = iota
	MetricStateWrite
	MetricStateCleared
	MetricWriteConflict
	MetricValidationRejected
	MetricExpiredRemoved
	MetricCorruptionDetected
	MetricStateRepaired
	MetricRepairFailed
	MetricStorageError
	MetricCleanupRuns
	MetricHealthChecks
	MetricChangePublished
	MetricChangeDeduped
	metricIDCount
)

const cacheLineSize = 64

// paddedCounter keeps each counter on its own cache line; hot read/write
// paths increment concurrently.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the lock-free counter collector shared by Manager and Monitor.
// A nil or disabled collector is valid and counts nothing.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

func (m *Metrics) Add(id MetricID, delta uint64) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, delta)
}

func (m *Metrics) Get(id MetricID) uint64 {
	if !m.Enabled() || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter. Disabled collectors return an empty map so
// exporters render nothing.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64)}
	if !m.Enabled() {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
