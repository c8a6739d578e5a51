package goLockout

import (
	"context"
	"time"
)

// CurrentSchemaVersion is the schema version written into new records.
const CurrentSchemaVersion = 1

// SecurityState is the per-identity abuse-tracking record.
//
// All timestamps are unix milliseconds; a zero LockoutUntil or LastAttempt
// means the field is absent. The record is persisted as a sealed envelope,
// so the integrity tag is not part of the struct.
type SecurityState struct {
	Identifier       string `json:"identifier"`
	FailedAttempts   int    `json:"failed_attempts"`
	LockoutUntil     int64  `json:"lockout_until,omitempty"`
	LastAttempt      int64  `json:"last_attempt,omitempty"`
	ProgressiveDelay int64  `json:"progressive_delay,omitempty"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
	SchemaVersion    int    `json:"schema_version"`
}

// Locked reports whether the record carries a lockout window that has not
// yet elapsed at the given time.
func (s *SecurityState) Locked(now time.Time) bool {
	return s.LockoutUntil > now.UnixMilli()
}

// StateUpdate enumerates the mutable fields of a SecurityState. Nil fields
// are left untouched by SetState; setting LockoutUntil to 0 clears the
// lockout window, and likewise for LastAttempt and ProgressiveDelay.
type StateUpdate struct {
	FailedAttempts   *int
	LockoutUntil     *int64
	LastAttempt      *int64
	ProgressiveDelay *int64
}

// StateChange describes one observed mutation of a record. Origin identifies
// the Manager instance that performed the write so that echoes received
// through a ChangeFeed can be discarded; UpdatedAt orders changes for the
// same key.
type StateChange struct {
	Origin     string `json:"origin"`
	Key        string `json:"key"`
	Identifier string `json:"identifier"`
	UpdatedAt  int64  `json:"updated_at"`
	Cleared    bool   `json:"cleared"`
}

// CorruptionType classifies why a stored record failed integrity validation.
type CorruptionType string

const (
	// CorruptionInvalidStructure covers undecodable payloads and records
	// whose non-temporal fields violate the state invariants.
	CorruptionInvalidStructure CorruptionType = "invalid_structure"
	// CorruptionChecksumMismatch means the storage-layer integrity tag does
	// not match the payload.
	CorruptionChecksumMismatch CorruptionType = "checksum_mismatch"
	// CorruptionInvalidTimestamps covers future or implausibly old
	// timestamps and inverted lockout windows.
	CorruptionInvalidTimestamps CorruptionType = "invalid_timestamps"
)

// Severity ranks a corruption event for remediation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// HealthReport aggregates one audit pass over all stored records.
type HealthReport struct {
	TotalStates         int
	ValidStates         int
	CorruptedStates     int
	ExpiredStates       int
	OldestStateAge      time.Duration
	NewestStateAge      time.Duration
	MemoryUsageEstimate int64
}

// MaintenanceResult is returned by Monitor.ForceMaintenanceCheck.
type MaintenanceResult struct {
	CleanedStates int
	Health        HealthReport
}

// StateStore is the persistence contract consumed by Manager and Monitor.
//
// Values are opaque sealed envelopes; implementations own key derivation and
// the integrity tag. The shipped implementation is Redis-backed and is wired
// by [Builder.WithRedis]; [Builder.WithStore] accepts a replacement.
// Implementations must return errors wrapping [ErrWriteConflict] from Swap
// when the current value differs from old, and [ErrStorageUnavailable] for
// backend failures. Retrieve and Remove must not fail for absent keys.
type StateStore interface {
	// DeriveKey maps an identifier to its storage key via a one-way keyed
	// derivation. The identifier itself never appears in the key.
	DeriveKey(identifier string) string
	// Seal wraps a payload in the versioned envelope carrying the integrity
	// tag for the given key.
	Seal(key string, payload []byte) []byte
	// Payload extracts the payload from a sealed envelope without verifying
	// the tag. ok is false for values that are not well-formed envelopes.
	Payload(value []byte) (payload []byte, ok bool)
	// CheckIntegrity reports whether the envelope's tag matches its payload
	// under the given key.
	CheckIntegrity(key string, value []byte) bool

	Store(ctx context.Context, key string, value []byte) error
	// Swap stores new only if the current value equals old (nil = absent).
	Swap(ctx context.Context, key string, old, new []byte) error
	// Retrieve returns the stored envelope, or nil when the key is absent.
	Retrieve(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// ChangeFeed propagates StateChange notifications between contexts sharing
// one store. Delivery is at-least-once and may be delayed; subscribers must
// tolerate duplicates and echoes of their own writes.
type ChangeFeed interface {
	Publish(ctx context.Context, change StateChange) error
	// Subscribe registers fn for all future changes and returns an
	// unsubscribe function. fn is called from the feed's delivery goroutine.
	Subscribe(fn func(StateChange)) (func(), error)
	Close() error
}
