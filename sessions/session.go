package sessions

import (
	"time"
)

// ClientMeta describes the device a session was created from. It is only
// surfaced, masked, in the concurrent-session view.
type ClientMeta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Session is one authenticated browser/device context. The backend store is
// authoritative for every field.
type Session struct {
	ID              string          `json:"id"`                  // Opaque, server generated, >= 128 bits entropy
	UserID          string          `json:"user_id"`             // Identity provider subject
	Email           string          `json:"email"`               // Identity provider email claim
	AccessToken     string          `json:"-"`                   // Backend API credential, never serialised to clients
	RefreshToken    string          `json:"-"`                   // Backend API credential, never serialised to clients
	TenantID        string          `json:"tenant_id,omitempty"` // Empty until onboarding provisions a tenant
	OnboardingState OnboardingState `json:"onboarding_state"`
	CreatedAt       time.Time       `json:"created_at"`
	LastActivityAt  time.Time       `json:"last_activity_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	ClientMeta      ClientMeta      `json:"client_meta"`
}

// IsExpired reports whether the session is past its expiry. An expired
// session is treated as absent.
func (s *Session) IsExpired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// RemainingLifetime returns the time left before expiry, never negative.
func (s *Session) RemainingLifetime(now time.Time) time.Duration {
	if s.IsExpired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// Summary is the store's view of an active session for the concurrent-session list.
type Summary struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ClientMeta     ClientMeta `json:"client_meta"`
}

// Summarise returns the list view of a session.
func (s *Session) Summarise() Summary {
	return Summary{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		ClientMeta:     s.ClientMeta,
	}
}

// Credentials is what the identity provider produced for a login, exchanged
// with the store for a new Session.
type Credentials struct {
	UserID       string     `json:"user_id"`
	Email        string     `json:"email"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ClientMeta   ClientMeta `json:"client_meta"`
}
