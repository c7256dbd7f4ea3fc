package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/onboarding"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/jrsteele09/go-session-gateway/tenants"
	"github.com/rs/zerolog/hlog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the resolved *sessions.Session
	ContextKeySession ContextKey = "session"
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyTenantID stores the tenant ID, when one is provisioned
	ContextKeyTenantID ContextKey = "tenant_id"
	// ContextKeyAdminSubject stores the subject of a verified admin token
	ContextKeyAdminSubject ContextKey = "admin_subject"
)

const adminRole = "admin"

// SessionFromContext returns the session RequireSession resolved.
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	session, ok := ctx.Value(ContextKeySession).(*sessions.Session)
	return session, ok && session != nil
}

// RequireSession resolves the request's session and stores it in the
// context. A reissued cookie is written before the handler runs.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.sessions.Resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		res.Cookies.Apply(w)

		ctx := context.WithValue(r.Context(), ContextKeySession, res.Session)
		ctx = context.WithValue(ctx, ContextKeyUserID, res.Session.UserID)
		if res.Session.TenantID != "" {
			ctx = context.WithValue(ctx, ContextKeyTenantID, res.Session.TenantID)
		}
		next(w, r.WithContext(ctx))
	}
}

// RequireTenant rejects requests whose {tenantID} path value is not the
// session's tenant. It must follow RequireSession.
func (s *Server) RequireTenant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, errors.ErrUnauthenticated)
			return
		}
		if err := tenants.Authorize(session, r.PathValue(pathParamTenantID)); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("tenant access denied")
			writeError(w, err)
			return
		}
		next(w, r)
	}
}

// RequireOnboarded applies the onboarding gate to the request path,
// redirecting to the step the session is on. It must follow RequireSession.
func (s *Server) RequireOnboarded(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, errors.ErrUnauthenticated)
			return
		}
		decision := onboarding.Decide(session.OnboardingState, session.TenantID, r.URL.Path)
		switch {
		case decision.Allow:
			next(w, r)
		case decision.Redirect != "":
			redirectSuccess(w, r, decision.Redirect)
		default:
			writeError(w, errors.Wrapf(errors.ErrNoTenantYet, "onboarding complete without a tenant"))
		}
	}
}

// RequireAdmin accepts HS256 bearer tokens signed with the admin secret
// whose role claim is "admin". The routes are disabled when no secret is
// configured.
func (s *Server) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := s.verifyAdminToken(r)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("admin access denied")
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyAdminSubject, subject)
		next(w, r.WithContext(ctx))
	}
}

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Server) verifyAdminToken(r *http.Request) (string, error) {
	if len(s.adminSecret) == 0 {
		return "", errors.Wrapf(errors.ErrAdminRequired, "admin routes are disabled")
	}
	authHeader := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || raw == "" {
		return "", errors.Wrapf(errors.ErrAdminRequired, "missing bearer token")
	}

	claims := &adminClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.adminSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Wrapf(errors.ErrAdminRequired, "invalid token: %s", err)
	}
	if claims.Role != adminRole {
		return "", errors.Wrapf(errors.ErrAdminRequired, "role %q is not %s", claims.Role, adminRole)
	}
	return claims.Subject, nil
}

func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}
