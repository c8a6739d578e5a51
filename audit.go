package goLockout

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types emitted through the audit sink.
const (
	auditEventStateCorrupted        = "state_corrupted"
	auditEventStateRepaired         = "state_repaired"
	auditEventStateRemoved          = "state_removed"
	auditEventStorageError          = "storage_error"
	auditEventCleanupCompleted      = "cleanup_completed"
	auditEventHealthAlert           = "health_alert"
	auditEventMaintenanceCompleted  = "maintenance_completed"
	auditEventMonitorStarted        = "monitor_started"
	auditEventMonitorStopped        = "monitor_stopped"
	auditEventMonitorAlreadyRunning = "monitor_already_running"
)

// AuditEvent records one state transition, corruption finding, or error.
// Identifier and Metadata are redacted before emission; sinks receive no
// plaintext identifiers or integrity material.
type AuditEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	EventType      string            `json:"event_type"`
	Identifier     string            `json:"identifier,omitempty"`
	CorruptionType string            `json:"corruption_type,omitempty"`
	Severity       string            `json:"severity,omitempty"`
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives emitted events. Implementations must be safe for
// concurrent use; Emit is called from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
