package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-gateway/csrf"
	"github.com/jrsteele09/go-session-gateway/identity"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/internal/utils"
	"github.com/jrsteele09/go-session-gateway/onboarding"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/rs/zerolog/hlog"
)

type sessionResponse struct {
	Authenticated   bool       `json:"authenticated"`
	OnboardingState string     `json:"onboardingState"`
	TenantID        string     `json:"tenantId,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	Redirect        string     `json:"redirect,omitempty"`
}

func newSessionResponse(session *sessions.Session) sessionResponse {
	return sessionResponse{
		Authenticated:   true,
		OnboardingState: session.OnboardingState.String(),
		TenantID:        session.TenantID,
		ExpiresAt:       utils.Ptr(session.ExpiresAt),
	}
}

// CSRFTokenHandler issues a token in both the response body and the
// script-readable CSRF cookie. Clients echo it in the X-CSRF-Token header.
func (s *Server) CSRFTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := s.csrf.Issue()
		if err != nil {
			writeError(w, err)
			return
		}
		maxAge := s.config.GetCSRFMaxAge()
		if maxAge <= 0 {
			maxAge = csrf.DefaultMaxAge
		}
		http.SetCookie(w, &http.Cookie{
			Name:     csrf.CookieName,
			Value:    token,
			Path:     "/",
			Domain:   s.config.GetCookieDomain(),
			MaxAge:   int(maxAge.Seconds()),
			Secure:   !s.config.IsLocal(),
			HttpOnly: false,
			SameSite: s.config.GetCookieSameSite(),
		})
		noStore(w)
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
	}
}

// EstablishSessionHandler exchanges identity provider credentials for a session.
func (s *Server) EstablishSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identity.LoginRequest
		if err := s.decodeAndValidate(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		session, cookies, err := s.sessions.Establish(r, req)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("session not established")
			writeError(w, err)
			return
		}
		cookies.Apply(w)

		resp := newSessionResponse(session)
		resp.Redirect = onboarding.Decide(session.OnboardingState, session.TenantID, onboarding.PathDashboard).Redirect
		noStore(w)
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) GetSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.sessions.Resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		res.Cookies.Apply(w)
		noStore(w)
		writeJSON(w, http.StatusOK, newSessionResponse(res.Session))
	}
}

func (s *Server) RefreshSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, cookies, err := s.sessions.Refresh(r)
		if err != nil {
			writeError(w, err)
			return
		}
		cookies.Apply(w)
		noStore(w)
		writeJSON(w, http.StatusOK, newSessionResponse(session))
	}
}

// DestroySessionHandler signs out. Cookies are cleared even when the store
// could not be reached.
func (s *Server) DestroySessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.Invalidate(r).Apply(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ConcurrentSessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, errors.ErrUnauthenticated)
			return
		}
		report, err := s.monitor.ListMasked(r.Context(), session.UserID, session.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		noStore(w)
		writeJSON(w, http.StatusOK, report)
	}
}

// ClearInvalidSessionHandler is called by a client after a downstream
// service rejected its session. The session is purged and the client told
// to log in again.
func (s *Server) ClearInvalidSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, _ := s.sessions.SessionIDFromRequest(r)
		s.sessions.MarkInvalidAndPurge(r.Context(), sessionID).Apply(w)
		writeJSON(w, http.StatusOK, map[string]bool{"restartAuthentication": true})
	}
}

// RouteDecisionHandler answers where a frontend should send the user for ?path=.
func (s *Server) RouteDecisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requested := r.URL.Query().Get("path")
		if requested == "" {
			writeError(w, errors.Wrapf(errors.ErrInvalidRequest, "path is required"))
			return
		}
		res, err := s.sessions.Resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		res.Cookies.Apply(w)
		noStore(w)
		writeJSON(w, http.StatusOK, onboarding.Decide(res.Session.OnboardingState, res.Session.TenantID, requested))
	}
}
