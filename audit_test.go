package goLockout

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type countingSink struct {
	mu    sync.Mutex
	count int
	last  AuditEvent
}

func (s *countingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.last = event
}

func (s *countingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *countingSink) Last() AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// gateSink blocks Emit until released, to fill the dispatcher buffer.
type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.gate
}

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	d.Emit(context.Background(), AuditEvent{EventType: auditEventStateRemoved, Success: true})
	d.Close()

	if sink.Count() != 1 {
		t.Fatalf("expected 1 delivered event, got %d", sink.Count())
	}
	if got := sink.Last().EventType; got != auditEventStateRemoved {
		t.Fatalf("unexpected event type %q", got)
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("disabled config must not start a dispatcher")
	}

	// Nil dispatcher methods are no-ops.
	d.Emit(context.Background(), AuditEvent{EventType: auditEventStorageError})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	gate := &gateSink{gate: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, gate)

	// First event parks in the sink, further events fill then overflow the
	// one-slot buffer.
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventCleanupCompleted})
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events under backpressure")
	}

	close(gate.gate)
	d.Close()
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventHealthAlert})
	}
	d.Close()

	if sink.Count() != 10 {
		t.Fatalf("expected all 10 events delivered before close, got %d", sink.Count())
	}

	// Emit after close is a no-op.
	d.Emit(context.Background(), AuditEvent{EventType: auditEventHealthAlert})
	if sink.Count() != 10 {
		t.Fatal("event delivered after close")
	}
}

func TestChannelSinkBuffersEvents(t *testing.T) {
	sink := NewChannelSink(4)
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventMonitorStarted})

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventMonitorStarted {
			t.Fatalf("unexpected event type %q", event.EventType)
		}
	default:
		t.Fatal("expected buffered event")
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventStateCorrupted,
		Severity:  string(SeverityMedium),
	})
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventStateRemoved,
		Success:   true,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], auditEventStateCorrupted) {
		t.Fatalf("first line missing event type: %s", lines[0])
	}
}
