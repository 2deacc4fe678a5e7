package services

import (
	"errors"
	"fmt"

	"github.com/sawanruparel/web-presence/access-api/v1/database"
)

var (
	// ErrPolicyNotFound means no access rule exists for the requested content.
	// It is never coerced into an open or password policy.
	ErrPolicyNotFound = errors.New("content has no access policy")

	// ErrStoreUnavailable means the rule store or access log database failed or timed out
	ErrStoreUnavailable = errors.New("access store unavailable")

	// ErrValidation represents a validation error in the domain layer
	ErrValidation = errors.New("validation error")

	// ErrConflict is returned when creating a rule that already exists
	ErrConflict = errors.New("conflict")

	// ErrEmailNotFound is returned when removing an email that is not on the allowlist
	ErrEmailNotFound = errors.New("email not found")
)

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if an error means the rule or allowlist entry does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) || errors.Is(err, ErrEmailNotFound)
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeError translates repository errors into domain errors
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrRuleNotFound):
		return ErrPolicyNotFound
	case errors.Is(err, database.ErrEmailNotFound):
		return ErrEmailNotFound
	case errors.Is(err, database.ErrRuleExists):
		return fmt.Errorf("%w: access rule already exists", ErrConflict)
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
