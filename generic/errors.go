/*
errors.go - Centralized error types for the arrears engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine itself never fails on domain data (it degrades to "unknown");
  these errors belong to the operations around it: progress transitions,
  record parsing and persistence.

ERROR CATEGORIES:
  1. Ordering errors - settle/unsettle outside the monotonic order
  2. Lookup errors - unknown auction or bidder
  3. Store errors - idempotency and record decoding

USAGE:
  Domain packages wrap these errors with additional context:

    if errors.Is(err, generic.ErrOutOfOrder) {
        // 409 Conflict
    }

SEE ALSO:
  - payment/progress.go: OrderError wraps ErrOutOfOrder
  - api/handlers.go: Maps categories to HTTP status codes
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOutOfOrder is returned when a unit is settled before the next due
	// unit, or unsettled while a later unit is still settled.
	ErrOutOfOrder = errors.New("payment unit toggled out of order")

	// ErrUnitOutOfRange is returned when a unit index is outside the plan.
	ErrUnitOutOfRange = errors.New("payment unit out of range")

	// ErrAuctionNotFound is returned when a referenced auction doesn't exist.
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrBidderNotFound is returned when a referenced bidder doesn't exist.
	ErrBidderNotFound = errors.New("bidder not found")

	// ErrDuplicateIdempotencyKey is returned when a write with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInvalidRecord is returned when an external record cannot be decoded.
	ErrInvalidRecord = errors.New("invalid record")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnitOutOfRange) ||
		errors.Is(err, ErrInvalidRecord)
}

// IsConflict returns true if the request conflicts with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOutOfOrder) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAuctionNotFound) ||
		errors.Is(err, ErrBidderNotFound)
}
