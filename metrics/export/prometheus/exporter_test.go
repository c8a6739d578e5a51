package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goLockout "github.com/MrEthical07/goLockout"
)

type fakeSource struct {
	snapshot goLockout.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goLockout.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goLockout.MetricsSnapshot{
			Counters: map[goLockout.MetricID]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounters(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goLockout.MetricsSnapshot{
			Counters: map[goLockout.MetricID]uint64{
				goLockout.MetricStateWrite:         7,
				goLockout.MetricCorruptionDetected: 2,
			},
		},
		dropped: 3,
	})

	out := exp.Render()
	if !strings.Contains(out, "golockout_state_write_total 7") {
		t.Fatalf("expected state_write counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "golockout_corruption_detected_total 2") {
		t.Fatalf("expected corruption_detected counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE golockout_state_write_total counter") {
		t.Fatalf("expected TYPE line in output, got:\n%s", out)
	}
	if !strings.Contains(out, "golockout_audit_dropped_total 3") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}

	idx := strings.Index(out, "golockout_state_read_total")
	idxWrite := strings.Index(out, "golockout_state_write_total")
	if idx < 0 || idxWrite < 0 || idx > idxWrite {
		t.Fatalf("expected counters in declaration order, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goLockout.MetricsSnapshot{
			Counters: map[goLockout.MetricID]uint64{goLockout.MetricStateRead: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goLockout.MetricsSnapshot{
			Counters: map[goLockout.MetricID]uint64{
				goLockout.MetricStateRead:          1000,
				goLockout.MetricStateWrite:         400,
				goLockout.MetricStateCleared:       40,
				goLockout.MetricExpiredRemoved:     25,
				goLockout.MetricCorruptionDetected: 3,
				goLockout.MetricCleanupRuns:        12,
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
