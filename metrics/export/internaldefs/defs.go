package internaldefs

import (
	goLockout "github.com/MrEthical07/goLockout"
)

// CounterDef binds one collector counter to its stable exported name.
type CounterDef struct {
	ID   goLockout.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a fixed order so text
// exposition output stays deterministic.
var CounterDefs = []CounterDef{
	{ID: goLockout.MetricStateRead, Name: "golockout_state_read_total", Help: "State reads."},
	{ID: goLockout.MetricStateWrite, Name: "golockout_state_write_total", Help: "Persisted state writes."},
	{ID: goLockout.MetricStateCleared, Name: "golockout_state_cleared_total", Help: "Explicitly cleared states."},
	{ID: goLockout.MetricWriteConflict, Name: "golockout_write_conflict_total", Help: "Compare-and-swap conflicts retried."},
	{ID: goLockout.MetricValidationRejected, Name: "golockout_validation_rejected_total", Help: "Writes aborted by invariant validation."},
	{ID: goLockout.MetricExpiredRemoved, Name: "golockout_expired_removed_total", Help: "Expired states removed."},
	{ID: goLockout.MetricCorruptionDetected, Name: "golockout_corruption_detected_total", Help: "Corruption events detected."},
	{ID: goLockout.MetricStateRepaired, Name: "golockout_state_repaired_total", Help: "Corrupted states repaired in place."},
	{ID: goLockout.MetricRepairFailed, Name: "golockout_repair_failed_total", Help: "Repairs that fell back to deletion."},
	{ID: goLockout.MetricStorageError, Name: "golockout_storage_error_total", Help: "Storage backend failures."},
	{ID: goLockout.MetricCleanupRuns, Name: "golockout_cleanup_runs_total", Help: "Completed cleanup passes."},
	{ID: goLockout.MetricHealthChecks, Name: "golockout_health_checks_total", Help: "Completed health checks."},
	{ID: goLockout.MetricChangePublished, Name: "golockout_change_published_total", Help: "Change notifications published."},
	{ID: goLockout.MetricChangeDeduped, Name: "golockout_change_deduped_total", Help: "Change notifications discarded as echoes or stale."},
}

// AuditDroppedName is the exported name for dispatcher backpressure drops.
const AuditDroppedName = "golockout_audit_dropped_total"

// AuditDroppedHelp documents the audit drop counter.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
