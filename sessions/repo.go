package sessions

import (
	"context"
	"time"
)

// Store is the contract of the authoritative session store. Every mutation is
// atomic at the store.
//
// Errors: ErrSessionNotFound when the session is unknown or expired,
// ErrStoreUnavailable for transient transport failures, ErrAuthentication when
// Create rejects the credentials, ErrInvalidOnboardingTransition when
// UpdateOnboarding loses a compare-and-set.
type Store interface {
	// Create exchanges login credentials for a new session. Never retried.
	Create(ctx context.Context, creds Credentials) (*Session, error)

	// Validate returns the current session record.
	Validate(ctx context.Context, sessionID string) (*Session, error)

	// Refresh extends ExpiresAt without rotating the session ID.
	Refresh(ctx context.Context, sessionID string, extendByHours int) (*Session, error)

	// Destroy removes the session. Destroying a missing session is not an error.
	Destroy(ctx context.Context, sessionID string) error

	// ListActiveForUser returns the user's unexpired sessions.
	ListActiveForUser(ctx context.Context, userID string) ([]Summary, error)

	// UpdateOnboarding moves the session owner's progress from one state to
	// another, failing if the current state is not from.
	UpdateOnboarding(ctx context.Context, sessionID string, from, to OnboardingState, tenantID string) (*Session, error)

	// ResetOnboarding is the administrative path that may move progress backward.
	ResetOnboarding(ctx context.Context, sessionID string, to OnboardingState) (*Session, error)
}

// Sweeper is implemented by stores that need expired sessions removed on a schedule.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}
