package goLockout

import (
	"sync"
	"testing"
)

func TestMetricsDisabledCountsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricStateRead)
	m.Add(MetricStateWrite, 10)

	if m.Get(MetricStateRead) != 0 {
		t.Fatal("disabled collector counted an increment")
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled snapshot should be empty, got %d entries", len(snap.Counters))
	}
}

func TestMetricsNilCollectorSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricStateRead)
	if m.Get(MetricStateRead) != 0 {
		t.Fatal("nil collector returned a count")
	}
	if m.Enabled() {
		t.Fatal("nil collector reported enabled")
	}
}

func TestMetricsCountsAndSnapshots(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricStateRead)
	m.Inc(MetricStateRead)
	m.Add(MetricExpiredRemoved, 5)

	if got := m.Get(MetricStateRead); got != 2 {
		t.Fatalf("state read = %d, want 2", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricStateRead] != 2 {
		t.Fatalf("snapshot state read = %d, want 2", snap.Counters[MetricStateRead])
	}
	if snap.Counters[MetricExpiredRemoved] != 5 {
		t.Fatalf("snapshot expired removed = %d, want 5", snap.Counters[MetricExpiredRemoved])
	}
	if snap.Counters[MetricStorageError] != 0 {
		t.Fatal("untouched counter must be zero")
	}

	// The snapshot is a copy.
	m.Inc(MetricStateRead)
	if snap.Counters[MetricStateRead] != 2 {
		t.Fatal("snapshot mutated by later increments")
	}
}

func TestMetricsIgnoresOutOfRangeID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricIDCount)
	m.Inc(metricIDCount + 100)
	if m.Get(metricIDCount) != 0 {
		t.Fatal("out-of-range id counted")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricStateWrite)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(MetricStateWrite); got != workers*perWorker {
		t.Fatalf("state write = %d, want %d", got, workers*perWorker)
	}
}
