/*
errors.go - Error types for the commission engine

ERROR CATEGORIES:
  1. InvalidInput - malformed policy/grid/source record; skipped and counted
  2. NotFound - a referenced source entity does not exist
  3. Persistence - a commission record could not be written

  "No grid match" is NOT an error. It is a Result status so reports can
  count and filter on it.

USAGE:
  if errors.Is(err, commission.ErrInvalidInput) {
      // skip record, keep going
  }
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for records missing required fields or
	// carrying negative premiums/rates.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceNotFound is returned when a policy references an unknown source entity.
	ErrSourceNotFound = errors.New("source entity not found")

	// ErrPersistence is returned when a commission record cannot be written.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvariantViolated is returned when a result's allocations do not add up.
	ErrInvariantViolated = errors.New("allocation invariant violated")

	// ErrNotFound is returned by stores for missing rows.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidInputError names the offending record and field.
type InvalidInputError struct {
	Record string
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Record, e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// PersistenceError carries the policy whose record failed to sync.
type PersistenceError struct {
	PolicyID PolicyID
	Cause    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist commission record for %s: %v", e.PolicyID, e.Cause)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInvalidInput returns true if the error is due to a malformed record.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrSourceNotFound)
}

// IsRetryable returns true for failures that may succeed on a later sync.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) && !IsInvalidInput(err)
}
