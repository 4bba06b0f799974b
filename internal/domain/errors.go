package domain

import (
	"errors"
	"fmt"
)

var (
	ErrListingNotFound       = errors.New("listing not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrStagingTokenNotFound  = errors.New("staging token not found")
	ErrDuplicateVehicle      = errors.New("duplicate vehicle: a listing with this license plate and state already exists")
	ErrIllegalTransition     = errors.New("illegal approval status transition")
	ErrForbidden             = errors.New("forbidden")
	ErrRateLimited           = errors.New("too many listing submissions; try again later")
	ErrBillingUnavailable    = errors.New("billing provider unavailable")
	ErrMissingModerationText = errors.New("a non-empty reason is required")
)

// ValidationError reports a bad field before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
