package goLockout

import (
	"fmt"
	"time"
)

// Config bundles all tunables of the state manager and monitor.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable; Monitor.UpdateConfig is the one sanctioned
// runtime mutation and affects only the monitor's own section.
type Config struct {
	Manager ManagerConfig
	Monitor MonitorConfig
	Storage StorageConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// ManagerConfig controls record validation and write behavior.
type ManagerConfig struct {
	// MaxStateAge bounds how long a record may go without an update before
	// it is treated as expired, and how old a LastAttempt may be before it
	// is implausible.
	MaxStateAge time.Duration
	// MaxLockoutWindow bounds how far in the future LockoutUntil may sit.
	MaxLockoutWindow time.Duration
	// WriteRetries bounds compare-and-swap retries under write contention.
	WriteRetries int
}

// MonitorConfig controls the maintenance scheduler and corruption policy.
type MonitorConfig struct {
	CleanupInterval     time.Duration
	HealthCheckInterval time.Duration
	// CorruptionThreshold is the per-identity corruption-event count at
	// which severity escalates to critical regardless of type.
	CorruptionThreshold       int
	EnableAutoCleanup         bool
	EnableHealthChecks        bool
	EnableCorruptionDetection bool
}

// StorageConfig controls the shipped Redis store and change feed.
type StorageConfig struct {
	// RedisPrefix scopes all derived storage keys.
	RedisPrefix string
	// ChangeChannel is the pub/sub channel for cross-context notifications.
	ChangeChannel string
	// Secret seeds both the storage-key derivation and the integrity tag.
	// Required, minimum 16 bytes.
	Secret []byte
}

// AuditConfig controls the async event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counter collector.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Manager: ManagerConfig{
			MaxStateAge:      24 * time.Hour,
			MaxLockoutWindow: 24 * time.Hour,
			WriteRetries:     4,
		},
		Monitor: MonitorConfig{
			CleanupInterval:           5 * time.Minute,
			HealthCheckInterval:       10 * time.Minute,
			CorruptionThreshold:       3,
			EnableAutoCleanup:         true,
			EnableHealthChecks:        true,
			EnableCorruptionDetection: true,
		},
		Storage: StorageConfig{
			RedisPrefix:   "ls",
			ChangeChannel: "ls:changes",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// DefaultConfig returns the configuration a zero-configured Builder starts
// from: 5 minute cleanup interval, 10 minute health-check interval, 24 hour
// state age and lockout window, corruption threshold 3, all maintenance
// enabled.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Storage.Secret != nil {
		out.Storage.Secret = make([]byte, len(cfg.Storage.Secret))
		copy(out.Storage.Secret, cfg.Storage.Secret)
	}
	return out
}

func sanitizeManagerConfig(cfg ManagerConfig) ManagerConfig {
	def := defaultConfig().Manager
	if cfg.MaxStateAge <= 0 {
		cfg.MaxStateAge = def.MaxStateAge
	}
	if cfg.MaxLockoutWindow <= 0 {
		cfg.MaxLockoutWindow = def.MaxLockoutWindow
	}
	if cfg.WriteRetries <= 0 {
		cfg.WriteRetries = def.WriteRetries
	}
	return cfg
}

func sanitizeMonitorConfig(cfg MonitorConfig) MonitorConfig {
	def := defaultConfig().Monitor
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = def.HealthCheckInterval
	}
	if cfg.CorruptionThreshold <= 0 {
		cfg.CorruptionThreshold = def.CorruptionThreshold
	}
	return cfg
}

// ConfigWarning is one Lint finding.
type ConfigWarning struct {
	Code    string
	Message string
}

// Warnings is the result of Config.Lint.
type Warnings []ConfigWarning

// Codes returns the warning codes in order.
func (ws Warnings) Codes() []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

// Lint flags configurations that weaken the tracker without being outright
// invalid. Build does not reject a config with warnings.
func (c Config) Lint() Warnings {
	var ws Warnings

	if len(c.Storage.Secret) > 0 && len(c.Storage.Secret) < 32 {
		ws = append(ws, ConfigWarning{
			Code:    "secret_short",
			Message: "storage secret below 32 bytes weakens key derivation and integrity tags",
		})
	}
	if !c.Monitor.EnableAutoCleanup {
		ws = append(ws, ConfigWarning{
			Code:    "cleanup_disabled",
			Message: "expired records accumulate unless the caller runs CleanupExpired itself",
		})
	}
	if !c.Monitor.EnableHealthChecks {
		ws = append(ws, ConfigWarning{
			Code:    "health_checks_disabled",
			Message: "corruption will only surface on individual reads",
		})
	}
	if !c.Monitor.EnableCorruptionDetection {
		ws = append(ws, ConfigWarning{
			Code:    "corruption_detection_disabled",
			Message: "tampered records are neither classified nor remediated",
		})
	}
	if c.Monitor.CleanupInterval > 0 && c.Monitor.CleanupInterval < 30*time.Second {
		ws = append(ws, ConfigWarning{
			Code:    "cleanup_interval_short",
			Message: fmt.Sprintf("cleanup every %s scans the full keyspace aggressively", c.Monitor.CleanupInterval),
		})
	}
	if c.Manager.MaxLockoutWindow > c.Manager.MaxStateAge {
		ws = append(ws, ConfigWarning{
			Code:    "lockout_window_exceeds_state_age",
			Message: "lockouts longer than MaxStateAge can expire out of the store while still active",
		})
	}
	if !c.Audit.Enabled {
		ws = append(ws, ConfigWarning{
			Code:    "audit_disabled",
			Message: "corruption and storage-error events will not be recorded",
		})
	}

	return ws
}
