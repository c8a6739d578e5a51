// Package goLockout tracks authentication-abuse state: failed-login counts,
// lockout windows, and progressive delays per identity, persisted in a shared
// Redis-backed store and kept consistent across concurrently running
// processes.
//
// The package is built around two cooperating pieces. [Manager] owns the
// canonical per-identity [SecurityState]: it validates, persists, expires, and
// synchronizes records, and rejects writes that would violate the state
// invariants. [Monitor] layers scheduled maintenance on top of a Manager:
// periodic cleanup of expired entries, periodic health audits, and detection
// and remediation of corrupted records (storage tampering, clock skew,
// partial writes).
//
// # Architecture boundaries
//
// goLockout is the public surface. It exposes [Manager], [Monitor], [Builder],
// [Config], the [StateStore] and [ChangeFeed] collaborator contracts, and
// value types (SecurityState, HealthReport, MetricsSnapshot). Storage sealing,
// key derivation, and redaction live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Decide authentication outcomes. Callers read lockout state and apply
//     their own policy; this package only keeps the record straight.
//   - Render user-visible messages.
//   - Store or log a plaintext identifier as part of a storage key or a
//     corruption event.
//
// # Consistency contract
//
// Writes go through a compare-and-swap on the stored value with bounded
// retry, so concurrent SetState calls for the same identity cannot silently
// lose updates. Cross-context change notifications are at-least-once; echoes
// of a context's own writes are deduplicated by origin and by updatedAt.
package goLockout
