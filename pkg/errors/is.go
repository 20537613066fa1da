package errors

import "errors"

// IsTransient reports whether err is worth another connection attempt
func IsTransient(err error) bool {
	var target *TransientConnectionError
	return errors.As(err, &target)
}

// IsAuthorization reports whether err is a credential or 2FA failure
func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

// IsRateLimited reports whether err is an upstream throttling signal
func IsRateLimited(err error) bool {
	var target *RateLimitExceededError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsStoreUnavailable reports whether err comes from an unreachable store
func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}
