package test

import (
	"context"
	"testing"

	goLockout "github.com/MrEthical07/goLockout"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goLockout.New

	var _ *goLockout.Manager
	var _ *goLockout.Monitor
	var _ goLockout.Config
	var _ goLockout.SecurityState
	var _ goLockout.StateUpdate
	var _ goLockout.StateChange
	var _ goLockout.HealthReport
	var _ goLockout.MaintenanceResult
	var _ goLockout.StateStore
	var _ goLockout.ChangeFeed
	var _ goLockout.AuditSink

	var _ error = goLockout.ErrStorageUnavailable
	var _ error = goLockout.ErrWriteConflict
	var _ error = goLockout.ErrInvalidState
	var _ error = goLockout.ErrFeedUnavailable
	var _ error = goLockout.ErrSecretRequired
	var _ error = goLockout.ErrNoBackend
	var _ error = goLockout.ErrBuilderUsed

	var _ func(*goLockout.Manager, context.Context, string) (*goLockout.SecurityState, error) = (*goLockout.Manager).GetState
	var _ func(*goLockout.Manager, context.Context, string, goLockout.StateUpdate) error = (*goLockout.Manager).SetState
	var _ func(*goLockout.Manager, context.Context, string) error = (*goLockout.Manager).ClearState
	var _ func(*goLockout.Manager, context.Context) ([]goLockout.SecurityState, error) = (*goLockout.Manager).ListStates
	var _ func(*goLockout.Manager, context.Context) (int, error) = (*goLockout.Manager).CleanupExpired
	var _ func(*goLockout.Manager, func(goLockout.StateChange)) func() = (*goLockout.Manager).Subscribe

	var _ func(*goLockout.Monitor, context.Context) (goLockout.HealthReport, error) = (*goLockout.Monitor).PerformHealthCheck
	var _ func(*goLockout.Monitor, context.Context) (goLockout.MaintenanceResult, error) = (*goLockout.Monitor).ForceMaintenanceCheck
	var _ func(*goLockout.Monitor, context.Context, string) (bool, error) = (*goLockout.Monitor).ValidateStateIntegrity
}
