/*
errors.go - Centralized error types for the generic layer

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Store errors - Missing capability, closed store
  3. Decode errors - Corrupt persisted values (recovered, never fatal)

USAGE:
  if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
      // already granted, safe to ignore
  }

SEE ALSO:
  - ledger.go: Uses these errors
  - decode.go: Produces DecodeError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrStoreRequired is returned when an operation requires a store
	// capability (such as the points ledger) the configured store lacks.
	ErrStoreRequired = errors.New("operation requires extended store interface")

	// ErrCorruptValue marks a persisted value that could not be decoded.
	ErrCorruptValue = errors.New("corrupt persisted value")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DecodeError describes a persisted value that failed to decode and was
// replaced by its default.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrCorruptValue, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsUnsupported returns true if the error is due to a missing store capability.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrStoreRequired)
}

// IsDuplicate returns true if the error signals an already-applied write.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}
