package sessions

import "github.com/jrsteele09/go-session-gateway/internal/errors"

// Progress is a user's onboarding position. Stores keep it per user and
// project it onto every session the user holds.
type Progress struct {
	State    OnboardingState `json:"state"`
	TenantID string          `json:"tenant_id,omitempty"`
}

// CompareAndSet applies a from -> to move, enforcing the tenant invariant.
// Stores call it under their own atomicity guarantees.
func (p Progress) CompareAndSet(from, to OnboardingState, tenantID string) (Progress, error) {
	if p.State != from {
		return p, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "progress is %s, not %s", p.State, from)
	}
	if !to.Valid() || to <= from {
		return p, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "%s -> %s", from, to)
	}
	next := Progress{State: to, TenantID: p.TenantID}
	if tenantID != "" {
		if next.TenantID != "" && next.TenantID != tenantID {
			return p, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "tenant already assigned")
		}
		next.TenantID = tenantID
	}
	if to.HasTenant() != (next.TenantID != "") {
		return p, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "%s with tenant %q", to, next.TenantID)
	}
	return next, nil
}

// Reset is the administrative move to any state. Moving below Subscription
// detaches the tenant so the tenant invariant still holds.
func (p Progress) Reset(to OnboardingState) (Progress, error) {
	if !to.Valid() {
		return p, errors.Wrapf(errors.ErrUnknownOnboardingState, "%d", int(to))
	}
	if !to.HasTenant() {
		return Progress{State: to}, nil
	}
	if p.TenantID == "" {
		return p, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "cannot reset to %s without a tenant", to)
	}
	return Progress{State: to, TenantID: p.TenantID}, nil
}

// Apply copies the progress onto the session.
func (p Progress) Apply(s *Session) {
	s.OnboardingState = p.State
	s.TenantID = p.TenantID
}
