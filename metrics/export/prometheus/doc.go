// Package prometheus provides Prometheus collectors for goLockout metrics.
//
// [NewPrometheusExporter] accepts a [goLockout.Manager] and exposes an
// [http.Handler] that renders all goLockout counters in Prometheus text
// exposition format. Counter names are prefixed golockout_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate manager state.
package prometheus
