// Package stores provides the Redis-backed persistence layer for
// security-state records.
//
// # Design
//
// Each record is stored as a sealed envelope: a version byte, an HMAC-SHA256
// integrity tag computed over the storage key and the payload, and the
// payload itself. Storage keys are a one-way keyed derivation of the
// identifier, so an identifier never appears in the keyspace. Both the
// derivation key and the MAC key are expanded from a single configured
// secret via HKDF, keeping the two uses cryptographically separated.
//
// Mutations go through Swap, a compare-and-swap on the full stored value
// implemented with a WATCH/MULTI optimistic transaction. Callers retry on
// ErrConflict.
//
// # Architecture boundaries
//
// This package owns persistence, key derivation, and the integrity tag. It
// does NOT decode payloads, validate record invariants, or decide
// remediation — those responsibilities belong to the root package.
//
// # What this package must NOT do
//
//   - Import goLockout or any sibling internal package.
//   - Log identifiers or derived keys.
//   - Fail Remove or Retrieve for absent keys.
package stores
