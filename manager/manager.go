// Package manager establishes, resolves, refreshes and invalidates sessions
// on top of the authoritative store.
package manager

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jrsteele09/go-session-gateway/identity"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
	"github.com/jrsteele09/go-session-gateway/monitor"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Resolve outcomes, used as metric labels.
const (
	resultCache           = "cache"
	resultRevalidated     = "revalidated"
	resultFailOpen        = "fail_open"
	resultUnauthenticated = "unauthenticated"
	resultUnavailable     = "unavailable"
	resultError           = "error"
)

// Resolved is a request's session. Sessions served from the encrypted
// cookie (Revalidated false) carry no tokens.
type Resolved struct {
	Session     *sessions.Session
	Revalidated bool
	Cookies     CookieDirectives
}

type Manager struct {
	store   sessions.Store
	auth    identity.Authenticator
	opts    Options
	revoked *expirable.LRU[string, struct{}]
	group   singleflight.Group
}

func New(store sessions.Store, auth identity.Authenticator, opts Options) (*Manager, error) {
	if store == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "session store is required")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:   store,
		auth:    auth,
		opts:    opts,
		revoked: expirable.NewLRU[string, struct{}](opts.RevocationCacheSize, nil, opts.RevocationTTL),
	}, nil
}

// Establish authenticates req with the identity provider and creates a
// session. The store is called once and never retried.
func (m *Manager) Establish(r *http.Request, req identity.LoginRequest) (*sessions.Session, CookieDirectives, error) {
	ctx := r.Context()
	clientIP := ClientIP(r)

	if m.opts.Throttle != nil && !m.opts.Throttle.Allow(clientIP) {
		metrics.SessionsEstablished.WithLabelValues("throttled").Inc()
		return nil, nil, errors.ErrTooManyAttempts
	}
	if m.auth == nil {
		return nil, nil, errors.Wrapf(errors.ErrAuthentication, "no identity provider configured")
	}

	creds, err := m.auth.Authenticate(ctx, req)
	if err != nil {
		m.loginFailed(clientIP)
		return nil, nil, err
	}
	creds.ClientMeta = sessions.ClientMeta{IP: clientIP, UserAgent: r.UserAgent()}

	session, err := m.store.Create(ctx, creds)
	if err != nil {
		if errors.Is(err, errors.ErrAuthentication) {
			m.loginFailed(clientIP)
			return nil, nil, err
		}
		metrics.SessionsEstablished.WithLabelValues(resultError).Inc()
		return nil, nil, err
	}
	if m.opts.Throttle != nil {
		m.opts.Throttle.Success(clientIP)
	}

	cookie, err := m.sessionCookie(session)
	if err != nil {
		metrics.SessionsEstablished.WithLabelValues(resultError).Inc()
		return nil, nil, err
	}
	metrics.SessionsEstablished.WithLabelValues("ok").Inc()
	log.Info().Str("session", monitor.Handle(session.ID)).Str("user", session.UserID).Msg("session established")

	return session, append(CookieDirectives{cookie}, m.legacyCookies(r)...), nil
}

func (m *Manager) loginFailed(clientIP string) {
	metrics.SessionsEstablished.WithLabelValues("rejected").Inc()
	if m.opts.Throttle != nil {
		m.opts.Throttle.Failure(clientIP)
	}
}

// Resolve returns the request's session. Every reason for having none is
// ErrUnauthenticated. The store is asked when the cookie is opaque, the
// route is sensitive, or the cached payload is older than the cache max
// age. If the store is unreachable, sensitive routes fail with
// ErrStoreUnavailable while other routes fall back to the cached payload.
func (m *Manager) Resolve(r *http.Request) (*Resolved, error) {
	return m.resolve(r, false)
}

// ResolveFresh always asks the store and never falls back to the cookie.
func (m *Manager) ResolveFresh(r *http.Request) (*Resolved, error) {
	return m.resolve(r, true)
}

func (m *Manager) resolve(r *http.Request, fresh bool) (*Resolved, error) {
	res, result, err := m.doResolve(r, fresh)
	metrics.SessionResolves.WithLabelValues(result).Inc()
	return res, err
}

func (m *Manager) doResolve(r *http.Request, fresh bool) (*Resolved, string, error) {
	now := m.opts.Now()
	sessionID, cached, cachedAt, err := m.readCookie(r)
	if err != nil {
		return nil, resultUnauthenticated, err
	}
	if m.isRevoked(sessionID) {
		return nil, resultUnauthenticated, unauthenticated("revoked")
	}
	if cached != nil && cached.IsExpired(now) {
		return nil, resultUnauthenticated, unauthenticated("expired")
	}

	sensitive := fresh || m.IsSensitive(r.URL.Path)
	if cached != nil && !sensitive && now.Sub(cachedAt) <= m.opts.CacheMaxAge {
		return &Resolved{Session: cached}, resultCache, nil
	}

	session, err := m.validate(r.Context(), sessionID)
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrSessionNotFound):
		return nil, resultUnauthenticated, unauthenticated("not found")
	case errors.Is(err, errors.ErrStoreUnavailable):
		if cached != nil && !sensitive {
			log.Warn().Err(err).Str("session", monitor.Handle(sessionID)).Msg("session store unavailable, serving cached session")
			return &Resolved{Session: cached}, resultFailOpen, nil
		}
		return nil, resultUnavailable, err
	default:
		return nil, resultError, err
	}

	if session.IsExpired(now) {
		return nil, resultUnauthenticated, unauthenticated("expired")
	}
	// An invalidation may have landed while the store was consulted.
	if m.isRevoked(sessionID) {
		return nil, resultUnauthenticated, unauthenticated("revoked")
	}

	cookie, err := m.sessionCookie(session)
	if err != nil {
		return nil, resultError, err
	}
	return &Resolved{Session: session, Revalidated: true, Cookies: CookieDirectives{cookie}}, resultRevalidated, nil
}

// readCookie returns the session ID, and in encrypted mode the cached
// session and when it was cached.
func (m *Manager) readCookie(r *http.Request) (string, *sessions.Session, time.Time, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return "", nil, time.Time{}, unauthenticated("no cookie")
	}

	if m.opts.Mode == ModeOpaque {
		if !sessions.ValidID(c.Value) {
			return "", nil, time.Time{}, unauthenticated("malformed cookie")
		}
		return c.Value, nil, time.Time{}, nil
	}

	plain, err := m.opts.Codec.Decrypt(c.Value)
	if err != nil {
		return "", nil, time.Time{}, unauthenticated("undecryptable cookie")
	}
	var p payload
	if err := json.Unmarshal(plain, &p); err != nil || !sessions.ValidID(p.SID) {
		return "", nil, time.Time{}, unauthenticated("malformed payload")
	}
	return p.SID, p.session(), time.UnixMilli(p.CachedAt), nil
}

// validate collapses concurrent lookups of one session into a single store
// call. The shared call is bounded by StoreTimeout, not by whichever request
// happened to start it, and each caller gets its own copy.
func (m *Manager) validate(ctx context.Context, sessionID string) (*sessions.Session, error) {
	ch := m.group.DoChan(sessionID, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.StoreTimeout)
		defer cancel()
		return m.store.Validate(callCtx, sessionID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		session := *res.Val.(*sessions.Session)
		return &session, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "validate: %s", ctx.Err())
	}
}

// Refresh extends the session's expiry at the store without rotating its
// ID and reissues the cookie.
func (m *Manager) Refresh(r *http.Request) (*sessions.Session, CookieDirectives, error) {
	res, err := m.ResolveFresh(r)
	if err != nil {
		return nil, nil, err
	}
	session, err := m.store.Refresh(r.Context(), res.Session.ID, m.opts.RefreshExtendHours)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return nil, nil, unauthenticated("not found")
	}
	if err != nil {
		return nil, nil, err
	}
	cookie, err := m.sessionCookie(session)
	if err != nil {
		return nil, nil, err
	}
	return session, CookieDirectives{cookie}, nil
}

// Invalidate signs the request's session out. The session is revoked
// locally before the store is told, and cookies are cleared whatever the
// store answers.
func (m *Manager) Invalidate(r *http.Request) CookieDirectives {
	if sessionID, _, _, err := m.readCookie(r); err == nil {
		m.revokeAndDestroy(r.Context(), sessionID)
	}
	return m.ClearCookies()
}

// MarkInvalidAndPurge is the remediation for a session a downstream service
// has rejected. The caller must tell the client to authenticate again.
func (m *Manager) MarkInvalidAndPurge(ctx context.Context, sessionID string) CookieDirectives {
	if sessionID != "" {
		m.revokeAndDestroy(ctx, sessionID)
	}
	return m.ClearCookies()
}

// SessionIDFromRequest returns the session ID the request's cookie names,
// without consulting the store.
func (m *Manager) SessionIDFromRequest(r *http.Request) (string, bool) {
	sessionID, _, _, err := m.readCookie(r)
	return sessionID, err == nil
}

func (m *Manager) revokeAndDestroy(ctx context.Context, sessionID string) {
	m.revoked.Add(sessionID, struct{}{})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.StoreTimeout)
	defer cancel()
	if err := m.store.Destroy(ctx, sessionID); err != nil {
		log.Err(err).Str("session", monitor.Handle(sessionID)).Msg("failed to destroy session, revoked locally")
		return
	}
	log.Info().Str("session", monitor.Handle(sessionID)).Msg("session destroyed")
}

// Reissue returns a fresh cookie for s, e.g. after an onboarding change, so
// the cached payload never lags a change made through this process.
func (m *Manager) Reissue(s *sessions.Session) (*http.Cookie, error) {
	return m.sessionCookie(s)
}

// IsSensitive reports whether requests to path must see fresh store state.
func (m *Manager) IsSensitive(path string) bool {
	for _, prefix := range m.opts.SensitiveRoutes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *Manager) isRevoked(sessionID string) bool {
	return m.revoked.Contains(sessionID)
}

// ClientIP is the request's peer address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func unauthenticated(reason string) error {
	return errors.Wrapf(errors.ErrUnauthenticated, "%s", reason)
}
