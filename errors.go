package vesting

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("vesting: not found")
	ErrAlreadyExists = errors.New("vesting: already exists")
	ErrInvalidInput  = errors.New("vesting: invalid input")

	// Grant errors
	ErrGrantNotFound    = errors.New("vesting: grant not found")
	ErrCounterInvariant = errors.New("vesting: grant share counters violate invariant")

	// Schedule errors
	ErrScheduleNotFound = errors.New("vesting: schedule not found")
	ErrInvalidSchedule  = errors.New("vesting: invalid schedule definition")
	ErrNoScheduleRef    = errors.New("vesting: grant has no schedule reference")
	ErrScheduleExists   = errors.New("vesting: grant already has vesting events")

	// Event errors
	ErrEventNotFound   = errors.New("vesting: event not found")
	ErrEventTerminal   = errors.New("vesting: event already processed or cancelled")
	ErrTriggerMismatch = errors.New("vesting: event trigger does not match grant trigger kind")

	// Ledger errors
	ErrLedgerMismatch = errors.New("vesting: ledger snapshot mismatch")

	// Store errors
	ErrStoreNotReady     = errors.New("vesting: store not ready")
	ErrStoreClosed       = errors.New("vesting: store is closed")
	ErrTransactionFailed = errors.New("vesting: transaction failed")
	ErrLockUnavailable   = errors.New("vesting: grant lock unavailable")
	ErrMigrationFailed   = errors.New("vesting: migration failed")
)

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrGrantNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrEventNotFound)
}

// IsInvariant returns true if the error is an invariant violation:
// fatal, never retried automatically, requires operator investigation.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrCounterInvariant) ||
		errors.Is(err, ErrScheduleExists) ||
		errors.Is(err, ErrLedgerMismatch) ||
		errors.Is(err, ErrTriggerMismatch) ||
		errors.Is(err, ErrEventTerminal)
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried as a whole. Retrying a realization batch is safe because
// processed and cancelled events are excluded from future candidate sets.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrLockUnavailable)
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("vesting: validation failed for %s: %s", e.Field, e.Message)
}
