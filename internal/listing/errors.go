package listing

import "errors"

var (
	// ErrNotFound is returned when a listing does not exist.
	ErrNotFound = errors.New("listing not found")

	// ErrInvalidStatus is returned for a status outside active/expired/claimed.
	ErrInvalidStatus = errors.New("invalid listing status")

	// ErrStoreUnavailable is returned when storage did not answer in time and
	// degraded responses are disabled.
	ErrStoreUnavailable = errors.New("listing storage unavailable")

	// errStoreTimeout is the internal signal that a raced store call lost.
	errStoreTimeout = errors.New("store call timed out")
)
