package goLockout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goLockout/internal/stores"
)

var (
	// ErrStorageUnavailable indicates the state storage backend failed.
	// Maintenance loops and callers receive it so systemic failure stays
	// visible; it is never swallowed.
	ErrStorageUnavailable = stores.ErrUnavailable
	// ErrWriteConflict indicates a write lost to a concurrent writer after
	// exhausting retries.
	ErrWriteConflict = stores.ErrConflict
	// ErrInvalidState indicates a record failed invariant validation.
	ErrInvalidState = errors.New("security state failed validation")
	// ErrFeedUnavailable indicates the change feed backend failed.
	ErrFeedUnavailable = errors.New("change feed unavailable")
	// ErrSecretRequired indicates the storage secret is missing or too short.
	ErrSecretRequired = errors.New("storage secret missing or too short")
	// ErrNoBackend indicates Build was called without a Redis client or a
	// custom state store.
	ErrNoBackend = errors.New("no redis client or state store configured")
	// ErrBuilderUsed indicates Build was called twice on one builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// ValidationError reports the invariant violations that aborted a write.
// Nothing is persisted when it is returned. It matches ErrInvalidState under
// errors.Is.
type ValidationError struct {
	Identifier string
	Violations []string
}

func (e *ValidationError) Error() string {
	return "security state failed validation: " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidState
}

func wrapStorageErr(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
