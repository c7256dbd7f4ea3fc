package server

import (
	"crypto/rand"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-gateway/identity"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/onboarding"
	"github.com/jrsteele09/go-session-gateway/server/authflowrepo"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"
)

// authFlowCookieName binds a started login to the browser that started it.
const authFlowCookieName = "auth_flow"

// LoginHandler starts the authorization code flow with PKCE and sends the
// browser to the identity provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := rand.Text()
		flow := &authflowrepo.AuthFlowState{
			CodeVerifier: oauth2.GenerateVerifier(),
			Nonce:        rand.Text(),
			ReturnTo:     safeReturnTo(r.URL.Query().Get("returnTo")),
			CreatedAt:    time.Now(),
		}
		if err := s.flows.Upsert(state, flow); err != nil {
			writeError(w, err)
			return
		}
		authURL, err := s.login.AuthCodeURL(state, flow.CodeVerifier, flow.Nonce)
		if err != nil {
			writeError(w, err)
			return
		}

		s.setAuthFlowCookie(w, state, int(authflowrepo.DefaultTTL.Seconds()))
		noStore(w)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OAuthCallbackHandler completes a login started by LoginHandler and
// establishes the session.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		state := q.Get("state")
		code := q.Get("code")

		// Check for authorization errors
		if errorParam := q.Get("error"); errorParam != "" {
			hlog.FromRequest(r).Warn().Str("error", errorParam).Msg("authorization failed at the identity provider")
			writeError(w, errors.Wrapf(errors.ErrAuthentication, "authorization failed: %s", errorParam))
			return
		}
		if code == "" || state == "" {
			writeError(w, errors.Wrapf(errors.ErrInvalidRequest, "missing code or state parameter"))
			return
		}

		cookie, err := r.Cookie(authFlowCookieName)
		s.setAuthFlowCookie(w, "", -1) // Clean up the flow cookie whatever happens next
		if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
			writeError(w, errors.Wrapf(errors.ErrAuthentication, "state does not belong to this browser"))
			return
		}
		flow, err := s.flows.Take(state)
		if err != nil {
			writeError(w, errors.Wrapf(errors.ErrAuthentication, "unknown or expired state"))
			return
		}

		session, cookies, err := s.sessions.Establish(r, identity.LoginRequest{
			Code:         code,
			CodeVerifier: flow.CodeVerifier,
			Nonce:        flow.Nonce,
		})
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("session not established")
			writeError(w, err)
			return
		}
		cookies.Apply(w)

		// Redirect to original destination or dashboard, through the onboarding gate
		returnTo := flow.ReturnTo
		if returnTo == "" {
			returnTo = onboarding.PathDashboard
		}
		if decision := onboarding.Decide(session.OnboardingState, session.TenantID, returnTo); decision.Redirect != "" {
			returnTo = decision.Redirect
		}
		redirectSuccess(w, r, returnTo)
	}
}

func (s *Server) setAuthFlowCookie(w http.ResponseWriter, state string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     authFlowCookieName,
		Value:    state,
		Path:     RouteSession,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !s.config.IsLocal(),
		SameSite: http.SameSiteLaxMode, // Sent on the top-level redirect back from the identity provider
	})
}

// safeReturnTo keeps only same-origin absolute paths so the callback can
// not be used as an open redirect.
func safeReturnTo(returnTo string) string {
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.ContainsAny(returnTo, "\\\r\n") {
		return ""
	}
	return returnTo
}
