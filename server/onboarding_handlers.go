package server

import (
	"net/http"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/onboarding"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/rs/zerolog/hlog"
)

type onboardingResponse struct {
	OnboardingState string `json:"onboardingState"`
	TenantID        string `json:"tenantId,omitempty"`
	Next            string `json:"next"`
}

// nextPath is where the client goes once a step is done.
func nextPath(session *sessions.Session) string {
	if session.OnboardingState == sessions.Complete {
		return onboarding.DashboardPath(session.TenantID)
	}
	return onboarding.StepPath(session.OnboardingState)
}

type onboardingStep func(w http.ResponseWriter, r *http.Request, session *sessions.Session) (*sessions.Session, error)

// onboardingStepHandler runs step against the resolved session. Whatever
// state the step reached, also on failure, is written back into the cookie
// so the cached payload follows the store.
func (s *Server) onboardingStepHandler(step onboardingStep) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, errors.ErrUnauthenticated)
			return
		}

		updated, err := step(w, r, session)
		if updated != nil && updated != session {
			cookie, cookieErr := s.sessions.Reissue(updated)
			if cookieErr != nil {
				hlog.FromRequest(r).Err(cookieErr).Msg("failed to reissue session cookie")
			} else {
				http.SetCookie(w, cookie)
			}
		}
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("state", session.OnboardingState.String()).Msg("onboarding step failed")
			writeError(w, err)
			return
		}

		noStore(w)
		writeJSON(w, http.StatusOK, onboardingResponse{
			OnboardingState: updated.OnboardingState.String(),
			TenantID:        updated.TenantID,
			Next:            nextPath(updated),
		})
	}
}

func (s *Server) BusinessInfoHandler() http.HandlerFunc {
	return s.onboardingStepHandler(func(w http.ResponseWriter, r *http.Request, session *sessions.Session) (*sessions.Session, error) {
		var info onboarding.BusinessInfo
		if err := s.decodeAndValidate(w, r, &info); err != nil {
			return nil, err
		}
		return s.onboarding.SubmitBusinessInfo(r.Context(), session, info)
	})
}

func (s *Server) SubscriptionHandler() http.HandlerFunc {
	return s.onboardingStepHandler(func(w http.ResponseWriter, r *http.Request, session *sessions.Session) (*sessions.Session, error) {
		var req onboarding.PlanSelection
		if err := s.decodeAndValidate(w, r, &req); err != nil {
			return nil, err
		}
		return s.onboarding.SelectPlan(r.Context(), session, req.PlanID)
	})
}

func (s *Server) PaymentHandler() http.HandlerFunc {
	return s.onboardingStepHandler(func(w http.ResponseWriter, r *http.Request, session *sessions.Session) (*sessions.Session, error) {
		var req onboarding.PaymentConfirmation
		if err := s.decodeAndValidate(w, r, &req); err != nil {
			return nil, err
		}
		return s.onboarding.ConfirmPayment(r.Context(), session, req.PaymentMethodID)
	})
}

// SetupHandler polls the provisioning job. It answers with the SETUP state
// until the job is done.
func (s *Server) SetupHandler() http.HandlerFunc {
	return s.onboardingStepHandler(func(w http.ResponseWriter, r *http.Request, session *sessions.Session) (*sessions.Session, error) {
		return s.onboarding.CheckSetup(r.Context(), session)
	})
}

// DashboardHandler sends an onboarded user to their tenant's dashboard.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, errors.ErrUnauthenticated)
			return
		}
		redirectSuccess(w, r, onboarding.DashboardPath(session.TenantID))
	}
}

func (s *Server) TenantDashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, errors.ErrUnauthenticated)
			return
		}
		noStore(w)
		writeJSON(w, http.StatusOK, map[string]string{
			"tenantId": session.TenantID,
			"userId":   session.UserID,
			"email":    session.Email,
		})
	}
}
