package entitlement

import "errors"

var (
	// ErrAuthenticationRequired is returned when an operation is invoked
	// without a resolved principal.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrQuotaExceeded is returned by TryConsume when the user has no
	// generations left in the current cycle.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrRecordNotFound is returned when no subscription record exists for
	// the given key.
	ErrRecordNotFound = errors.New("subscription record not found")

	// ErrLookupFailed wraps store or billing query failures during
	// reconciliation. The local record is left at its last known value.
	ErrLookupFailed = errors.New("lookup failed")

	// ErrUsageNotRecorded wraps a persistence failure during RecordUsage.
	// The generation already happened, so callers must surface this instead
	// of swallowing it.
	ErrUsageNotRecorded = errors.New("usage not recorded")
)
