package goLockout

import (
	"fmt"
	"time"
)

// clockSkewAllowance bounds how far ahead of local time a timestamp may sit
// before it counts as being in the future. Shared stores are written by
// multiple hosts whose clocks drift.
const clockSkewAllowance = 30 * time.Second

// ValidationResult reports the outcome of ValidateState.
type ValidationResult struct {
	Valid      bool
	Violations []string
	// Corrected is a best-effort repaired record, present only when the
	// identifier and a usable attempt counter could be recovered. It is
	// never persisted by ValidateState itself.
	Corrected *SecurityState
}

// ValidateState checks every record invariant: non-negative counters,
// ordered created/updated timestamps, a plausible last-attempt time, and a
// lockout window no further out than maxLockoutWindow. It is pure: no I/O,
// no mutation of st.
func ValidateState(st *SecurityState, now time.Time, maxStateAge, maxLockoutWindow time.Duration) ValidationResult {
	violations := shapeViolations(st)
	violations = append(violations, temporalViolations(st, now, maxStateAge, maxLockoutWindow)...)
	if len(violations) == 0 {
		return ValidationResult{Valid: true}
	}
	return ValidationResult{
		Violations: violations,
		Corrected:  correctedState(st, now, maxStateAge, maxLockoutWindow),
	}
}

// shapeViolations covers the non-temporal invariants: field presence,
// counter signs, created/updated ordering, and schema version.
func shapeViolations(st *SecurityState) []string {
	var v []string
	if st.Identifier == "" {
		v = append(v, "identifier missing")
	}
	if st.FailedAttempts < 0 {
		v = append(v, "failed attempts negative")
	}
	if st.ProgressiveDelay < 0 {
		v = append(v, "progressive delay negative")
	}
	if st.CreatedAt <= 0 {
		v = append(v, "created timestamp missing")
	}
	if st.UpdatedAt <= 0 {
		v = append(v, "updated timestamp missing")
	}
	if st.UpdatedAt < st.CreatedAt {
		v = append(v, "updated before created")
	}
	if st.SchemaVersion <= 0 || st.SchemaVersion > CurrentSchemaVersion {
		v = append(v, fmt.Sprintf("unknown schema version %d", st.SchemaVersion))
	}
	return v
}

// temporalViolations covers the timestamp invariants: LastAttempt neither in
// the future nor older than maxStateAge, LastAttempt not after LockoutUntil,
// and LockoutUntil within maxLockoutWindow.
func temporalViolations(st *SecurityState, now time.Time, maxStateAge, maxLockoutWindow time.Duration) []string {
	var v []string
	nowMs := now.UnixMilli()
	horizon := nowMs + clockSkewAllowance.Milliseconds()

	if st.LastAttempt != 0 {
		switch {
		case st.LastAttempt < 0:
			v = append(v, "last attempt negative")
		case st.LastAttempt > horizon:
			v = append(v, "last attempt in the future")
		case st.LastAttempt < nowMs-maxStateAge.Milliseconds():
			v = append(v, "last attempt older than max state age")
		}
	}
	if st.LockoutUntil != 0 {
		switch {
		case st.LockoutUntil < 0:
			v = append(v, "lockout deadline negative")
		case st.LockoutUntil > nowMs+maxLockoutWindow.Milliseconds():
			v = append(v, "lockout deadline beyond maximum window")
		}
	}
	if st.LastAttempt > 0 && st.LockoutUntil > 0 && st.LastAttempt > st.LockoutUntil {
		v = append(v, "last attempt after lockout deadline")
	}
	return v
}

// correctedState synthesizes a repaired record from an invalid one, or nil
// when not even the identifier survived. Implausible timestamps are clamped
// to now; a lockout window already in the past is dropped.
func correctedState(st *SecurityState, now time.Time, maxStateAge, maxLockoutWindow time.Duration) *SecurityState {
	if st.Identifier == "" {
		return nil
	}
	nowMs := now.UnixMilli()

	out := &SecurityState{
		Identifier:       st.Identifier,
		FailedAttempts:   st.FailedAttempts,
		ProgressiveDelay: st.ProgressiveDelay,
		SchemaVersion:    CurrentSchemaVersion,
	}
	if out.FailedAttempts < 0 {
		out.FailedAttempts = 0
	}
	if out.ProgressiveDelay < 0 {
		out.ProgressiveDelay = 0
	}

	out.CreatedAt = clampPast(st.CreatedAt, nowMs)
	out.UpdatedAt = clampPast(st.UpdatedAt, nowMs)
	if out.UpdatedAt < out.CreatedAt {
		out.UpdatedAt = out.CreatedAt
	}

	if st.LastAttempt != 0 {
		la := clampPast(st.LastAttempt, nowMs)
		if la < nowMs-maxStateAge.Milliseconds() {
			la = nowMs
		}
		out.LastAttempt = la
	}
	if st.LockoutUntil > nowMs {
		out.LockoutUntil = st.LockoutUntil
		if cap := nowMs + maxLockoutWindow.Milliseconds(); out.LockoutUntil > cap {
			out.LockoutUntil = cap
		}
	}

	return out
}

// clampPast forces ts into (0, now]: non-positive or future values become
// now.
func clampPast(ts, nowMs int64) int64 {
	if ts <= 0 || ts > nowMs {
		return nowMs
	}
	return ts
}

func stateExpired(st *SecurityState, now time.Time, maxStateAge time.Duration) bool {
	return st.UpdatedAt < now.UnixMilli()-maxStateAge.Milliseconds()
}
