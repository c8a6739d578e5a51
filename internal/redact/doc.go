// Package redact sanitizes log context before corruption and error events
// are emitted: fields naming identifiers or integrity material are replaced
// with a marker, and over-long string values are truncated.
//
// # What this package must NOT do
//
//   - Import goLockout or any sibling internal package.
//   - Perform I/O.
package redact
