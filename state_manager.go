package goLockout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goLockout/internal/redact"
)

// Manager owns the canonical lockout state per identity: it validates,
// persists, expires, and synchronizes SecurityState records over a
// StateStore shared with other contexts.
//
// Manager methods are safe for concurrent use after Build.
type Manager struct {
	cfg     Config
	store   StateStore
	feed    ChangeFeed
	metrics *Metrics
	audit   *auditDispatcher

	// origin tags this instance's published changes so echoes received
	// through the feed are discarded.
	origin   string
	ownsFeed bool
	now      func() time.Time

	mu          sync.Mutex
	subscribers map[int]func(StateChange)
	nextSubID   int
	// lastSeen maps storage key to the newest UpdatedAt this instance has
	// written or accepted; older feed deliveries are no-ops.
	lastSeen map[string]int64
	unsubFeed func()
	closed    bool
}

// GetState returns the record for identifier, or nil when none exists —
// absence is the clean state, not an error. A record that fails validation
// is removed; when the identifier and attempt counter are recoverable a
// corrected copy is returned instead of nil. An expired record is removed
// and nil returned. Only storage failures produce an error.
func (m *Manager) GetState(ctx context.Context, identifier string) (*SecurityState, error) {
	if identifier == "" {
		return nil, nil
	}
	m.metrics.Inc(MetricStateRead)

	key := m.store.DeriveKey(identifier)
	value, err := m.store.Retrieve(ctx, key)
	if err != nil {
		return nil, m.storageError(ctx, "retrieve", err)
	}
	if value == nil {
		return nil, nil
	}

	st, ok := m.decode(value)
	if !ok {
		m.discardInvalid(ctx, key, "undecodable payload")
		return nil, nil
	}

	now := m.now()
	res := ValidateState(st, now, m.cfg.Manager.MaxStateAge, m.cfg.Manager.MaxLockoutWindow)
	if !res.Valid {
		m.discardInvalid(ctx, key, strings.Join(res.Violations, "; "))
		return res.Corrected, nil
	}

	if stateExpired(st, now, m.cfg.Manager.MaxStateAge) {
		if err := m.store.Remove(ctx, key); err != nil {
			return nil, m.storageError(ctx, "remove", err)
		}
		m.metrics.Inc(MetricExpiredRemoved)
		return nil, nil
	}

	return st, nil
}

// SetState merges update onto the existing record (or fresh defaults),
// refreshes UpdatedAt, validates the result, and persists it with a
// compare-and-swap retried under contention. A *ValidationError aborts the
// write with nothing persisted. Successful writes notify in-process
// subscribers synchronously and publish to the change feed.
func (m *Manager) SetState(ctx context.Context, identifier string, update StateUpdate) error {
	if identifier == "" {
		m.metrics.Inc(MetricValidationRejected)
		return &ValidationError{Violations: []string{"identifier missing"}}
	}
	key := m.store.DeriveKey(identifier)

	for attempt := 0; attempt < m.cfg.Manager.WriteRetries; attempt++ {
		old, err := m.store.Retrieve(ctx, key)
		if err != nil {
			return m.storageError(ctx, "retrieve", err)
		}
		// An undecodable existing value merges like an absent one; the raw
		// bytes still guard the swap so we never clobber a concurrent fix.
		cur, _ := m.decode(old)

		now := m.now()
		merged := mergeState(identifier, cur, update, now)
		res := ValidateState(merged, now, m.cfg.Manager.MaxStateAge, m.cfg.Manager.MaxLockoutWindow)
		if !res.Valid {
			m.metrics.Inc(MetricValidationRejected)
			return &ValidationError{Identifier: identifier, Violations: res.Violations}
		}

		payload, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		sealed := m.store.Seal(key, payload)

		if err := m.store.Swap(ctx, key, old, sealed); err != nil {
			if errors.Is(err, ErrWriteConflict) {
				m.metrics.Inc(MetricWriteConflict)
				continue
			}
			return m.storageError(ctx, "store", err)
		}

		m.metrics.Inc(MetricStateWrite)
		m.recordChange(ctx, StateChange{
			Origin:     m.origin,
			Key:        key,
			Identifier: identifier,
			UpdatedAt:  merged.UpdatedAt,
		})
		return nil
	}

	return fmt.Errorf("%w: retries exhausted", ErrWriteConflict)
}

// ClearState removes the record unconditionally. Removing an absent record
// is not an error. Subscribers receive a cleared change.
func (m *Manager) ClearState(ctx context.Context, identifier string) error {
	if identifier == "" {
		return nil
	}
	key := m.store.DeriveKey(identifier)
	if err := m.store.Remove(ctx, key); err != nil {
		return m.storageError(ctx, "remove", err)
	}
	m.metrics.Inc(MetricStateCleared)

	// The clear must order after the record's last write even when the
	// local clock lags another context's.
	ts := m.now().UnixMilli()
	m.mu.Lock()
	if prev := m.lastSeen[key]; prev >= ts {
		ts = prev + 1
	}
	m.mu.Unlock()

	m.recordChange(ctx, StateChange{
		Origin:     m.origin,
		Key:        key,
		Identifier: identifier,
		UpdatedAt:  ts,
		Cleared:    true,
	})
	return nil
}

// ListStates returns every valid record. Entries that fail decoding or
// validation are deleted as a side effect and the removal logged; expired
// but valid entries are included (cleanup owns their removal).
func (m *Manager) ListStates(ctx context.Context) ([]SecurityState, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, m.storageError(ctx, "enumerate", err)
	}

	now := m.now()
	out := make([]SecurityState, 0, len(keys))
	for _, key := range keys {
		value, err := m.store.Retrieve(ctx, key)
		if err != nil {
			return nil, m.storageError(ctx, "retrieve", err)
		}
		if value == nil {
			continue
		}
		st, ok := m.decode(value)
		if !ok {
			m.discardInvalid(ctx, key, "undecodable payload")
			continue
		}
		res := ValidateState(st, now, m.cfg.Manager.MaxStateAge, m.cfg.Manager.MaxLockoutWindow)
		if !res.Valid {
			m.discardInvalid(ctx, key, strings.Join(res.Violations, "; "))
			continue
		}
		out = append(out, *st)
	}
	return out, nil
}

// CleanupExpired removes every record that is expired, undecodable, or
// invalid, and returns how many were removed. Back-to-back calls with no
// intervening writes return 0 the second time. Storage failures abort the
// pass and are returned with the partial count.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, m.storageError(ctx, "enumerate", err)
	}

	now := m.now()
	removed := 0
	for _, key := range keys {
		value, err := m.store.Retrieve(ctx, key)
		if err != nil {
			return removed, m.storageError(ctx, "retrieve", err)
		}
		if value == nil {
			continue
		}

		st, ok := m.decode(value)
		reason := ""
		switch {
		case !ok:
			reason = "undecodable payload"
		default:
			res := ValidateState(st, now, m.cfg.Manager.MaxStateAge, m.cfg.Manager.MaxLockoutWindow)
			if !res.Valid {
				reason = strings.Join(res.Violations, "; ")
			} else if stateExpired(st, now, m.cfg.Manager.MaxStateAge) {
				reason = "expired"
			}
		}
		if reason == "" {
			continue
		}

		if err := m.store.Remove(ctx, key); err != nil {
			return removed, m.storageError(ctx, "remove", err)
		}
		removed++
		if reason == "expired" {
			m.metrics.Inc(MetricExpiredRemoved)
		} else {
			m.auditRemoval(ctx, reason)
		}
	}

	m.metrics.Inc(MetricCleanupRuns)
	m.pruneLastSeen(now)
	return removed, nil
}

// Subscribe registers fn for change notifications: synchronously for this
// instance's own writes, asynchronously for changes arriving through the
// feed. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(StateChange)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Close detaches the feed subscription and flushes the audit dispatcher.
// The Redis client belongs to the caller and stays open.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	unsub := m.unsubFeed
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if m.ownsFeed && m.feed != nil {
		_ = m.feed.Close()
	}
	m.audit.Close()
	return nil
}

// MetricsSnapshot exposes the counter collector for exporters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// AuditDropped reports how many events the dispatcher dropped under
// backpressure.
func (m *Manager) AuditDropped() uint64 {
	return m.audit.Dropped()
}

func (m *Manager) decode(value []byte) (*SecurityState, bool) {
	if value == nil {
		return nil, false
	}
	payload, ok := m.store.Payload(value)
	if !ok {
		return nil, false
	}
	var st SecurityState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, false
	}
	return &st, true
}

// mergeState overlays update onto cur (or fresh defaults), preserving
// CreatedAt and keeping UpdatedAt strictly increasing so change
// deduplication by UpdatedAt stays sound even within one millisecond.
func mergeState(identifier string, cur *SecurityState, update StateUpdate, now time.Time) *SecurityState {
	nowMs := now.UnixMilli()

	merged := SecurityState{
		Identifier:    identifier,
		CreatedAt:     nowMs,
		SchemaVersion: CurrentSchemaVersion,
	}
	if cur != nil {
		merged = *cur
		merged.Identifier = identifier
		merged.SchemaVersion = CurrentSchemaVersion
		if merged.CreatedAt <= 0 {
			merged.CreatedAt = nowMs
		}
	}

	if update.FailedAttempts != nil {
		merged.FailedAttempts = *update.FailedAttempts
	}
	if update.LockoutUntil != nil {
		merged.LockoutUntil = *update.LockoutUntil
	}
	if update.LastAttempt != nil {
		merged.LastAttempt = *update.LastAttempt
	}
	if update.ProgressiveDelay != nil {
		merged.ProgressiveDelay = *update.ProgressiveDelay
	}

	merged.UpdatedAt = nowMs
	if cur != nil && merged.UpdatedAt <= cur.UpdatedAt {
		merged.UpdatedAt = cur.UpdatedAt + 1
	}
	return &merged
}

// recordChange advances lastSeen, notifies in-process subscribers
// synchronously, then publishes to the feed. Publish failures are logged
// but do not fail the write that triggered them.
func (m *Manager) recordChange(ctx context.Context, change StateChange) {
	m.mu.Lock()
	if change.UpdatedAt > m.lastSeen[change.Key] {
		m.lastSeen[change.Key] = change.UpdatedAt
	}
	subs := make([]func(StateChange), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}

	if m.feed == nil {
		return
	}
	if err := m.feed.Publish(ctx, change); err != nil {
		m.audit.Emit(ctx, AuditEvent{
			Timestamp:  m.now(),
			EventType:  auditEventStorageError,
			Identifier: redact.Marker,
			Error:      err.Error(),
			Metadata:   map[string]string{"op": "publish"},
		})
		return
	}
	m.metrics.Inc(MetricChangePublished)
}

// handleRemoteChange is the feed callback: echoes of our own writes and
// anything not newer than the locally known UpdatedAt are no-ops.
func (m *Manager) handleRemoteChange(change StateChange) {
	if change.Origin == m.origin {
		m.metrics.Inc(MetricChangeDeduped)
		return
	}

	m.mu.Lock()
	if change.UpdatedAt <= m.lastSeen[change.Key] {
		m.mu.Unlock()
		m.metrics.Inc(MetricChangeDeduped)
		return
	}
	m.lastSeen[change.Key] = change.UpdatedAt
	subs := make([]func(StateChange), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}

// pruneLastSeen drops dedupe entries whose newest change predates the state
// age bound; their records are gone and no live context will replay older
// timestamps.
func (m *Manager) pruneLastSeen(now time.Time) {
	floor := now.UnixMilli() - m.cfg.Manager.MaxStateAge.Milliseconds()
	m.mu.Lock()
	for key, ts := range m.lastSeen {
		if ts < floor {
			delete(m.lastSeen, key)
		}
	}
	m.mu.Unlock()
}

// discardInvalid removes a record that failed validation on a read path and
// logs the removal. Failures here are contained: the caller already treats
// the record as gone.
func (m *Manager) discardInvalid(ctx context.Context, key, reason string) {
	if err := m.store.Remove(ctx, key); err != nil {
		m.metrics.Inc(MetricStorageError)
	}
	m.auditRemoval(ctx, reason)
}

func (m *Manager) auditRemoval(ctx context.Context, reason string) {
	m.audit.Emit(ctx, AuditEvent{
		Timestamp:  m.now(),
		EventType:  auditEventStateRemoved,
		Identifier: redact.Marker,
		Success:    true,
		Metadata:   redact.Map(map[string]string{"reason": reason}),
	})
}

func (m *Manager) storageError(ctx context.Context, op string, err error) error {
	m.metrics.Inc(MetricStorageError)
	m.audit.Emit(ctx, AuditEvent{
		Timestamp:  m.now(),
		EventType:  auditEventStorageError,
		Identifier: redact.Marker,
		Error:      err.Error(),
		Metadata:   map[string]string{"op": op},
	})
	return wrapStorageErr(err)
}
