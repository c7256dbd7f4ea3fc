package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session gateway
var (
	// Authentication errors
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrAuthentication      = errors.New("authentication failed")
	ErrTooManyAttempts     = errors.New("too many failed login attempts")
	ErrDecryption          = errors.New("decryption failed")
	ErrCSRFInvalid         = errors.New("csrf token invalid")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrAdminRequired       = errors.New("admin access required")
	ErrSecretMisconfigured = errors.New("secret not configured")

	// Session store errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrStoreUnavailable = errors.New("session store unavailable")

	// Tenant errors
	ErrNoTenantYet    = errors.New("no tenant provisioned yet")
	ErrTenantMismatch = errors.New("tenant mismatch")
	ErrTenantNotFound = errors.New("tenant not found")

	// Onboarding errors
	ErrInvalidOnboardingTransition = errors.New("invalid onboarding transition")
	ErrUnknownOnboardingState      = errors.New("unknown onboarding state")
	ErrBackendUnavailable          = errors.New("backend unavailable")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
