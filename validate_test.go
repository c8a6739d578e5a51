package goLockout

import (
	"testing"
	"time"
)

const (
	testMaxAge        = 24 * time.Hour
	testLockoutWindow = 24 * time.Hour
)

func validTestState(now time.Time) *SecurityState {
	nowMs := now.UnixMilli()
	return &SecurityState{
		Identifier:     "alice@example.com",
		FailedAttempts: 3,
		LastAttempt:    nowMs - 1000,
		CreatedAt:      nowMs - 60_000,
		UpdatedAt:      nowMs - 1000,
		SchemaVersion:  CurrentSchemaVersion,
	}
}

func TestValidateStateAcceptsWellFormedRecord(t *testing.T) {
	now := time.Now()
	res := ValidateState(validTestState(now), now, testMaxAge, testLockoutWindow)
	if !res.Valid {
		t.Fatalf("expected valid, got violations %v", res.Violations)
	}
	if res.Corrected != nil {
		t.Fatal("valid record should not carry a corrected copy")
	}
}

func TestValidateStateShapeViolations(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name   string
		mutate func(*SecurityState)
		want   string
	}{
		{"missing identifier", func(s *SecurityState) { s.Identifier = "" }, "identifier missing"},
		{"negative attempts", func(s *SecurityState) { s.FailedAttempts = -1 }, "failed attempts negative"},
		{"negative delay", func(s *SecurityState) { s.ProgressiveDelay = -5 }, "progressive delay negative"},
		{"missing created", func(s *SecurityState) { s.CreatedAt = 0 }, "created timestamp missing"},
		{"missing updated", func(s *SecurityState) { s.UpdatedAt = 0 }, "updated timestamp missing"},
		{"updated before created", func(s *SecurityState) { s.UpdatedAt = s.CreatedAt - 1 }, "updated before created"},
		{"future schema", func(s *SecurityState) { s.SchemaVersion = CurrentSchemaVersion + 1 }, "unknown schema version 2"},
		{"zero schema", func(s *SecurityState) { s.SchemaVersion = 0 }, "unknown schema version 0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := validTestState(now)
			tc.mutate(st)
			res := ValidateState(st, now, testMaxAge, testLockoutWindow)
			if res.Valid {
				t.Fatal("expected invalid")
			}
			if !containsViolation(res.Violations, tc.want) {
				t.Fatalf("expected violation %q, got %v", tc.want, res.Violations)
			}
		})
	}
}

func TestValidateStateTemporalViolations(t *testing.T) {
	now := time.Now()
	nowMs := now.UnixMilli()

	cases := []struct {
		name   string
		mutate func(*SecurityState)
		want   string
	}{
		{"future last attempt", func(s *SecurityState) { s.LastAttempt = nowMs + time.Hour.Milliseconds() }, "last attempt in the future"},
		{"ancient last attempt", func(s *SecurityState) { s.LastAttempt = nowMs - (25 * time.Hour).Milliseconds() }, "last attempt older than max state age"},
		{"lockout beyond window", func(s *SecurityState) { s.LockoutUntil = nowMs + (48 * time.Hour).Milliseconds() }, "lockout deadline beyond maximum window"},
		{"attempt after lockout", func(s *SecurityState) {
			s.LockoutUntil = nowMs - 120_000
			s.LastAttempt = nowMs - 1000
		}, "last attempt after lockout deadline"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := validTestState(now)
			tc.mutate(st)
			res := ValidateState(st, now, testMaxAge, testLockoutWindow)
			if res.Valid {
				t.Fatal("expected invalid")
			}
			if !containsViolation(res.Violations, tc.want) {
				t.Fatalf("expected violation %q, got %v", tc.want, res.Violations)
			}
		})
	}
}

func TestValidateStateToleratesClockSkew(t *testing.T) {
	now := time.Now()
	st := validTestState(now)
	st.LastAttempt = now.UnixMilli() + (10 * time.Second).Milliseconds()

	res := ValidateState(st, now, testMaxAge, testLockoutWindow)
	if !res.Valid {
		t.Fatalf("small skew should be tolerated, got %v", res.Violations)
	}
}

func TestCorrectedStateClampsTimestamps(t *testing.T) {
	now := time.Now()
	nowMs := now.UnixMilli()

	st := validTestState(now)
	st.LastAttempt = nowMs + time.Hour.Milliseconds()
	st.LockoutUntil = nowMs - time.Minute.Milliseconds()

	res := ValidateState(st, now, testMaxAge, testLockoutWindow)
	if res.Valid {
		t.Fatal("expected invalid")
	}
	if res.Corrected == nil {
		t.Fatal("expected corrected state")
	}
	if res.Corrected.LastAttempt > nowMs {
		t.Fatalf("corrected last attempt still in the future: %d > %d", res.Corrected.LastAttempt, nowMs)
	}
	if res.Corrected.LockoutUntil != 0 {
		t.Fatalf("past lockout should be dropped, got %d", res.Corrected.LockoutUntil)
	}
	if res.Corrected.FailedAttempts != st.FailedAttempts {
		t.Fatal("attempt counter must survive correction")
	}

	check := ValidateState(res.Corrected, now, testMaxAge, testLockoutWindow)
	if !check.Valid {
		t.Fatalf("corrected state must validate, got %v", check.Violations)
	}
}

func TestCorrectedStateCapsLockoutWindow(t *testing.T) {
	now := time.Now()
	nowMs := now.UnixMilli()

	st := validTestState(now)
	st.LockoutUntil = nowMs + (72 * time.Hour).Milliseconds()

	res := ValidateState(st, now, testMaxAge, testLockoutWindow)
	if res.Valid {
		t.Fatal("expected invalid")
	}
	wantCap := nowMs + testLockoutWindow.Milliseconds()
	if res.Corrected.LockoutUntil != wantCap {
		t.Fatalf("expected lockout capped to %d, got %d", wantCap, res.Corrected.LockoutUntil)
	}
}

func TestCorrectedStateNilWithoutIdentifier(t *testing.T) {
	now := time.Now()
	st := validTestState(now)
	st.Identifier = ""

	res := ValidateState(st, now, testMaxAge, testLockoutWindow)
	if res.Valid {
		t.Fatal("expected invalid")
	}
	if res.Corrected != nil {
		t.Fatal("no identifier means nothing to correct")
	}
}

func TestStateExpired(t *testing.T) {
	now := time.Now()
	st := validTestState(now)
	if stateExpired(st, now, testMaxAge) {
		t.Fatal("fresh state reported expired")
	}

	st.UpdatedAt = now.UnixMilli() - (25 * time.Hour).Milliseconds()
	if !stateExpired(st, now, testMaxAge) {
		t.Fatal("stale state not reported expired")
	}
}

func TestLockedRespectsDeadline(t *testing.T) {
	now := time.Now()
	st := validTestState(now)

	st.LockoutUntil = now.Add(time.Minute).UnixMilli()
	if !st.Locked(now) {
		t.Fatal("expected locked before deadline")
	}
	if st.Locked(now.Add(2 * time.Minute)) {
		t.Fatal("expected unlocked after deadline")
	}

	st.LockoutUntil = 0
	if st.Locked(now) {
		t.Fatal("zero deadline must not lock")
	}
}

func containsViolation(violations []string, want string) bool {
	for _, v := range violations {
		if v == want {
			return true
		}
	}
	return false
}
