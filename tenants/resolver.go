package tenants

import (
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

// ResolveForSession returns the tenant the session is scoped to.
func ResolveForSession(session *sessions.Session) (string, error) {
	if session == nil || session.TenantID == "" {
		return "", errors.ErrNoTenantYet
	}
	return session.TenantID, nil
}

// AuthorizeTenantAccess reports whether the session may act on the claimed
// tenant. It is exact equality, and an empty ID on either side never matches.
func AuthorizeTenantAccess(session *sessions.Session, claimedTenantID string) bool {
	if session == nil || session.TenantID == "" || claimedTenantID == "" {
		return false
	}
	return session.TenantID == claimedTenantID
}

// Authorize is AuthorizeTenantAccess as an error.
func Authorize(session *sessions.Session, claimedTenantID string) error {
	if AuthorizeTenantAccess(session, claimedTenantID) {
		return nil
	}
	if session != nil && session.TenantID == "" {
		return errors.Wrapf(errors.ErrTenantMismatch, "%s", errors.ErrNoTenantYet)
	}
	return errors.ErrTenantMismatch
}
