package goLockout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goLockout/internal/redact"
)

// Monitor layers scheduled maintenance on a Manager: a periodic cleanup
// cycle, a periodic health audit, and classification plus remediation of
// corrupted records. All scheduling state lives inside the instance; there
// is no ambient process-wide timer state.
//
// The two cycles share one goroutine, so they never overlap each other; a
// cycle runs to completion before its timer is rearmed. Stop cancels future
// firings but not an in-flight cycle.
type Monitor struct {
	manager *Manager
	now     func() time.Time

	mu      sync.Mutex
	cfg     MonitorConfig
	running bool
	stop    chan struct{}
	done    chan struct{}
	// reconfig wakes the run loop to re-read cfg; buffered so UpdateConfig
	// never blocks behind an in-flight cycle.
	reconfig chan struct{}
	// counters tracks corruption events per identity. They live only for
	// the monitor's running lifetime: a restart resets escalation progress.
	counters map[string]*corruptionCount
}

type corruptionCount struct {
	total    int
	checksum int
}

// NewMonitor layers a stopped monitor on m, taking the Monitor section of
// the manager's configuration. Call Start to begin the maintenance cycles.
func NewMonitor(m *Manager) *Monitor {
	return &Monitor{
		manager:  m,
		now:      m.now,
		cfg:      sanitizeMonitorConfig(m.cfg.Monitor),
		reconfig: make(chan struct{}, 1),
		counters: make(map[string]*corruptionCount),
	}
}

// IsRunning reports whether the maintenance cycles are scheduled.
func (mo *Monitor) IsRunning() bool {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.running
}

// Config returns the monitor's current configuration.
func (mo *Monitor) Config() MonitorConfig {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.cfg
}

// Start launches the maintenance cycles. Starting a running monitor is a
// no-op, logged as a warning rather than an error. Corruption-escalation
// counters reset on every start.
func (mo *Monitor) Start() {
	mo.mu.Lock()
	if mo.running {
		mo.mu.Unlock()
		mo.manager.audit.Emit(context.Background(), AuditEvent{
			Timestamp: mo.now(),
			EventType: auditEventMonitorAlreadyRunning,
		})
		return
	}
	mo.running = true
	mo.counters = make(map[string]*corruptionCount)
	mo.stop = make(chan struct{})
	mo.done = make(chan struct{})
	mo.mu.Unlock()

	go mo.run()

	mo.manager.audit.Emit(context.Background(), AuditEvent{
		Timestamp: mo.now(),
		EventType: auditEventMonitorStarted,
		Success:   true,
	})
}

// Stop cancels all pending timers and waits for the run loop to exit. An
// in-flight cycle finishes first. Stopping a stopped monitor is a no-op.
func (mo *Monitor) Stop() {
	mo.mu.Lock()
	if !mo.running {
		mo.mu.Unlock()
		return
	}
	mo.running = false
	close(mo.stop)
	done := mo.done
	mo.mu.Unlock()

	<-done

	mo.manager.audit.Emit(context.Background(), AuditEvent{
		Timestamp: mo.now(),
		EventType: auditEventMonitorStopped,
		Success:   true,
	})
}

// UpdateConfig replaces the monitor configuration. Only timers whose
// interval or enablement changed are restarted; corruption counters are
// untouched.
func (mo *Monitor) UpdateConfig(cfg MonitorConfig) {
	cfg = sanitizeMonitorConfig(cfg)

	mo.mu.Lock()
	mo.cfg = cfg
	running := mo.running
	mo.mu.Unlock()

	if !running {
		return
	}
	select {
	case mo.reconfig <- struct{}{}:
	default:
		// A wake-up is already pending; the loop reads the latest cfg.
	}
}

// cycleTimer wraps one maintenance timer so the run loop can rearm it after
// a cycle and rebuild it only when its settings actually changed.
type cycleTimer struct {
	timer    *time.Timer
	interval time.Duration
	enabled  bool
}

func newCycleTimer(enabled bool, interval time.Duration) *cycleTimer {
	ct := &cycleTimer{
		interval: interval,
		enabled:  enabled && interval > 0,
	}
	if ct.enabled {
		ct.timer = time.NewTimer(interval)
	}
	return ct
}

// C returns nil for a disabled timer, which blocks forever in a select.
func (ct *cycleTimer) C() <-chan time.Time {
	if ct.timer == nil {
		return nil
	}
	return ct.timer.C
}

func (ct *cycleTimer) rearm() {
	if ct.enabled {
		ct.timer.Reset(ct.interval)
	}
}

// apply reconfigures the timer. An unchanged timer keeps its pending
// deadline.
func (ct *cycleTimer) apply(enabled bool, interval time.Duration) {
	enabled = enabled && interval > 0
	if enabled == ct.enabled && interval == ct.interval {
		return
	}
	if ct.timer != nil {
		ct.timer.Stop()
		ct.timer = nil
	}
	ct.enabled = enabled
	ct.interval = interval
	if ct.enabled {
		ct.timer = time.NewTimer(interval)
	}
}

func (ct *cycleTimer) stopTimer() {
	if ct.timer != nil {
		ct.timer.Stop()
	}
}

func (mo *Monitor) run() {
	defer close(mo.done)

	cfg := mo.Config()
	cleanup := newCycleTimer(cfg.EnableAutoCleanup, cfg.CleanupInterval)
	health := newCycleTimer(cfg.EnableHealthChecks, cfg.HealthCheckInterval)
	defer cleanup.stopTimer()
	defer health.stopTimer()

	for {
		select {
		case <-cleanup.C():
			mo.runCleanupCycle(context.Background())
			cleanup.rearm()
		case <-health.C():
			mo.runHealthCycle(context.Background())
			health.rearm()
		case <-mo.reconfig:
			cfg = mo.Config()
			cleanup.apply(cfg.EnableAutoCleanup, cfg.CleanupInterval)
			health.apply(cfg.EnableHealthChecks, cfg.HealthCheckInterval)
		case <-mo.stop:
			return
		}
	}
}

// runCleanupCycle is one timer firing: storage errors were already logged by
// the manager, the cycle is skipped, and the timer continues. Removals are
// logged only when something was actually removed.
func (mo *Monitor) runCleanupCycle(ctx context.Context) {
	count, err := mo.manager.CleanupExpired(ctx)
	if err != nil {
		return
	}
	if count > 0 {
		mo.manager.audit.Emit(ctx, AuditEvent{
			Timestamp: mo.now(),
			EventType: auditEventCleanupCompleted,
			Success:   true,
			Metadata:  map[string]string{"removed": fmt.Sprintf("%d", count)},
		})
	}
}

func (mo *Monitor) runHealthCycle(ctx context.Context) {
	_, _ = mo.PerformHealthCheck(ctx)
}

// PerformHealthCheck audits every stored record without mutating any of
// them and returns the aggregate report. A health alert is emitted when any
// record is corrupted. Storage failures are logged and returned.
func (mo *Monitor) PerformHealthCheck(ctx context.Context) (HealthReport, error) {
	mo.manager.metrics.Inc(MetricHealthChecks)

	keys, err := mo.manager.store.Keys(ctx)
	if err != nil {
		return HealthReport{}, mo.manager.storageError(ctx, "enumerate", err)
	}

	now := mo.now()
	nowMs := now.UnixMilli()
	cfg := mo.manager.cfg.Manager

	var report HealthReport
	var oldest, newest int64
	for _, key := range keys {
		value, err := mo.manager.store.Retrieve(ctx, key)
		if err != nil {
			return HealthReport{}, mo.manager.storageError(ctx, "retrieve", err)
		}
		if value == nil {
			continue
		}
		report.TotalStates++
		report.MemoryUsageEstimate += int64(len(value))

		st, ok := mo.manager.decode(value)
		if !ok {
			report.CorruptedStates++
			continue
		}
		res := ValidateState(st, now, cfg.MaxStateAge, cfg.MaxLockoutWindow)
		if !res.Valid {
			report.CorruptedStates++
			continue
		}
		report.ValidStates++
		if stateExpired(st, now, cfg.MaxStateAge) {
			report.ExpiredStates++
		}
		if oldest == 0 || st.UpdatedAt < oldest {
			oldest = st.UpdatedAt
		}
		if st.UpdatedAt > newest {
			newest = st.UpdatedAt
		}
	}

	if oldest > 0 {
		report.OldestStateAge = time.Duration(nowMs-oldest) * time.Millisecond
		report.NewestStateAge = time.Duration(nowMs-newest) * time.Millisecond
	}

	if report.CorruptedStates > 0 {
		mo.manager.audit.Emit(ctx, AuditEvent{
			Timestamp: mo.now(),
			EventType: auditEventHealthAlert,
			Metadata: map[string]string{
				"total":     fmt.Sprintf("%d", report.TotalStates),
				"corrupted": fmt.Sprintf("%d", report.CorruptedStates),
				"expired":   fmt.Sprintf("%d", report.ExpiredStates),
			},
		})
	}

	return report, nil
}

// ForceMaintenanceCheck runs cleanup then a health check synchronously,
// independent of the timers.
func (mo *Monitor) ForceMaintenanceCheck(ctx context.Context) (MaintenanceResult, error) {
	cleaned, err := mo.manager.CleanupExpired(ctx)
	if err != nil {
		return MaintenanceResult{}, err
	}
	health, err := mo.PerformHealthCheck(ctx)
	if err != nil {
		return MaintenanceResult{CleanedStates: cleaned}, err
	}

	mo.manager.audit.Emit(ctx, AuditEvent{
		Timestamp: mo.now(),
		EventType: auditEventMaintenanceCompleted,
		Success:   true,
		Metadata:  map[string]string{"cleaned": fmt.Sprintf("%d", cleaned)},
	})
	return MaintenanceResult{CleanedStates: cleaned, Health: health}, nil
}

// inspectResult is one integrity pass over a stored record. corruption is
// empty when every check passed; the first failing check wins.
type inspectResult struct {
	present    bool
	corruption CorruptionType
	state      *SecurityState
	detail     string
}

func (mo *Monitor) inspect(ctx context.Context, identifier string) (inspectResult, error) {
	store := mo.manager.store
	key := store.DeriveKey(identifier)

	value, err := store.Retrieve(ctx, key)
	if err != nil {
		return inspectResult{}, mo.manager.storageError(ctx, "retrieve", err)
	}
	if value == nil {
		return inspectResult{}, nil
	}

	res := inspectResult{present: true}

	payload, ok := store.Payload(value)
	if !ok {
		res.corruption = CorruptionInvalidStructure
		res.detail = "malformed envelope"
		return res, nil
	}
	var st SecurityState
	if err := json.Unmarshal(payload, &st); err != nil {
		res.corruption = CorruptionInvalidStructure
		res.detail = "undecodable payload"
		return res, nil
	}
	res.state = &st

	if v := shapeViolations(&st); len(v) > 0 {
		res.corruption = CorruptionInvalidStructure
		res.detail = strings.Join(v, "; ")
		return res, nil
	}
	if !store.CheckIntegrity(key, value) {
		res.corruption = CorruptionChecksumMismatch
		res.detail = "integrity tag mismatch"
		return res, nil
	}
	cfg := mo.manager.cfg.Manager
	if v := temporalViolations(&st, mo.now(), cfg.MaxStateAge, cfg.MaxLockoutWindow); len(v) > 0 {
		res.corruption = CorruptionInvalidTimestamps
		res.detail = strings.Join(v, "; ")
		return res, nil
	}

	return res, nil
}

// ValidateStateIntegrity composes three checks in order — structural
// validity, integrity tag, temporal consistency — stopping at the first
// failure. An absent record is vacuously valid. Corruption is reported and
// remediated internally, never returned as an error; only storage failures
// surface to the caller.
func (mo *Monitor) ValidateStateIntegrity(ctx context.Context, identifier string) (bool, error) {
	if identifier == "" {
		return true, nil
	}
	res, err := mo.inspect(ctx, identifier)
	if err != nil {
		return false, err
	}
	if !res.present || res.corruption == "" {
		return res.corruption == "", nil
	}

	mo.reportCorruption(ctx, identifier, res)
	return false, nil
}

// reportCorruption counts the event, classifies its severity, logs it with
// sensitive fields redacted, and applies the remediation policy.
func (mo *Monitor) reportCorruption(ctx context.Context, identifier string, res inspectResult) {
	mo.manager.metrics.Inc(MetricCorruptionDetected)

	mo.mu.Lock()
	detect := mo.cfg.EnableCorruptionDetection
	mo.mu.Unlock()
	if !detect {
		return
	}

	severity := mo.classify(identifier, res.corruption)

	mo.manager.audit.Emit(ctx, AuditEvent{
		Timestamp:      mo.now(),
		EventType:      auditEventStateCorrupted,
		Identifier:     redact.Marker,
		CorruptionType: string(res.corruption),
		Severity:       string(severity),
		Metadata: redact.Map(map[string]string{
			"detail": res.detail,
		}),
	})

	mo.remediate(ctx, identifier, res, severity)
}

// classify increments the per-identity counter and maps the event to a
// severity: past the threshold everything is critical; below it structural
// damage is high, checksum damage medium then high on repeat, and temporal
// damage medium.
func (mo *Monitor) classify(identifier string, ctype CorruptionType) Severity {
	mo.mu.Lock()
	c := mo.counters[identifier]
	if c == nil {
		c = &corruptionCount{}
		mo.counters[identifier] = c
	}
	c.total++
	if ctype == CorruptionChecksumMismatch {
		c.checksum++
	}
	total, checksum := c.total, c.checksum
	threshold := mo.cfg.CorruptionThreshold
	mo.mu.Unlock()

	switch {
	case total >= threshold:
		return SeverityCritical
	case ctype == CorruptionInvalidStructure:
		return SeverityHigh
	case ctype == CorruptionChecksumMismatch:
		if checksum > 1 {
			return SeverityHigh
		}
		return SeverityMedium
	case ctype == CorruptionInvalidTimestamps:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// remediate applies the policy: critical and high delete unconditionally;
// medium attempts repair (timestamps only) and deletes when repair is not
// applicable or does not stick; low logs only.
func (mo *Monitor) remediate(ctx context.Context, identifier string, res inspectResult, severity Severity) {
	switch severity {
	case SeverityCritical, SeverityHigh:
		mo.removeCorrupt(ctx, identifier)
	case SeverityMedium:
		if res.corruption == CorruptionInvalidTimestamps && res.state != nil {
			if mo.repairTimestamps(ctx, identifier, res.state) {
				mo.manager.metrics.Inc(MetricStateRepaired)
				mo.manager.audit.Emit(ctx, AuditEvent{
					Timestamp:  mo.now(),
					EventType:  auditEventStateRepaired,
					Identifier: redact.Marker,
					Success:    true,
				})
				return
			}
		}
		mo.manager.metrics.Inc(MetricRepairFailed)
		mo.removeCorrupt(ctx, identifier)
	case SeverityLow:
		// Log-only; the corruption event already went out.
	}
}

func (mo *Monitor) removeCorrupt(ctx context.Context, identifier string) {
	if err := mo.manager.ClearState(ctx, identifier); err != nil {
		return
	}
	mo.manager.audit.Emit(ctx, AuditEvent{
		Timestamp:  mo.now(),
		EventType:  auditEventStateRemoved,
		Identifier: redact.Marker,
		Success:    true,
		Metadata:   map[string]string{"reason": "corruption remediation"},
	})
}

// repairTimestamps clamps a future or non-positive LastAttempt to now and
// drops a LockoutUntil already in the past, persisting through SetState so
// the repaired record is re-validated on the way in. Returns true only when
// the persisted record passes a fresh integrity pass.
func (mo *Monitor) repairTimestamps(ctx context.Context, identifier string, st *SecurityState) bool {
	nowMs := mo.now().UnixMilli()
	horizon := nowMs + clockSkewAllowance.Milliseconds()

	var update StateUpdate
	if st.LastAttempt != 0 && (st.LastAttempt <= 0 || st.LastAttempt > horizon) {
		clamped := nowMs
		update.LastAttempt = &clamped
	}
	if st.LockoutUntil != 0 && st.LockoutUntil <= nowMs {
		cleared := int64(0)
		update.LockoutUntil = &cleared
	}

	if err := mo.manager.SetState(ctx, identifier, update); err != nil {
		return false
	}

	res, err := mo.inspect(ctx, identifier)
	if err != nil {
		return false
	}
	return res.present && res.corruption == ""
}
