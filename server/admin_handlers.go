package server

import (
	"net/http"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/internal/utils"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/rs/zerolog/hlog"
)

type resetOnboardingRequest struct {
	State *sessions.OnboardingState `json:"state" validate:"required"`
}

// ResetOnboardingHandler moves a session's onboarding progress to any
// state, backward included. The user's cookie picks the change up on its
// next revalidation.
func (s *Server) ResetOnboardingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue(pathParamSessionID)
		if !sessions.ValidID(sessionID) {
			writeError(w, errors.Wrapf(errors.ErrInvalidRequest, "malformed session id"))
			return
		}
		var req resetOnboardingRequest
		if err := s.decodeAndValidate(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		to := utils.Value(req.State)
		session, err := s.onboarding.Reset(r.Context(), sessionID, to)
		if errors.Is(err, errors.ErrSessionNotFound) {
			err = errors.Wrapf(errors.ErrNotFound, "session")
		}
		if err != nil {
			writeError(w, err)
			return
		}

		admin, _ := r.Context().Value(ContextKeyAdminSubject).(string)
		hlog.FromRequest(r).Info().Str("admin", admin).Str("to", to.String()).Msg("onboarding reset by admin")
		writeJSON(w, http.StatusOK, onboardingResponse{
			OnboardingState: session.OnboardingState.String(),
			TenantID:        session.TenantID,
			Next:            nextPath(session),
		})
	}
}
