package feed

import (
	"errors"
	"fmt"

	"campusfeed_backend/store"
)

// Error taxonomy. Handlers map these to HTTP statuses; everything else is
// an internal error.
var (
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("not authorized")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrFetchInFlight    = errors.New("page fetch already in flight")
)

// ReasonCode renders an error as the stable machine-readable code returned
// in failure responses.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrForbidden):
		return "authorization_error"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit_exceeded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrFetchInFlight):
		return "fetch_in_flight"
	default:
		return "internal_error"
	}
}

// storeErr classifies a store failure: missing documents become ErrNotFound,
// anything else is surfaced as retryable.
func storeErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
