package onboarding

import (
	"context"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
	"github.com/jrsteele09/go-session-gateway/monitor"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/jrsteele09/go-session-gateway/tenants"
	"github.com/rs/zerolog/log"
)

// ProgressStore is the part of sessions.Store the workflow writes through.
type ProgressStore interface {
	UpdateOnboarding(ctx context.Context, sessionID string, from, to sessions.OnboardingState, tenantID string) (*sessions.Session, error)
	ResetOnboarding(ctx context.Context, sessionID string, to sessions.OnboardingState) (*sessions.Session, error)
}

// Service runs the wizard steps. Each step checks the session's current
// state, calls the backend, then moves the state with a compare-and-set so
// concurrent submissions can not both advance.
type Service struct {
	store      ProgressStore
	backend    Backend
	freePlanID string
}

func NewService(store ProgressStore, backend Backend, freePlanID string) *Service {
	return &Service{store: store, backend: backend, freePlanID: freePlanID}
}

// SubmitBusinessInfo records business info and provisions the tenant. If
// provisioning fails the session is left in BUSINESS_INFO, from where the
// submission can be retried. The returned session reflects whatever state
// was reached, also on error.
func (s *Service) SubmitBusinessInfo(ctx context.Context, session *sessions.Session, info BusinessInfo) (*sessions.Session, error) {
	current := session
	if current.OnboardingState == sessions.NotStarted {
		next, err := s.advance(ctx, current, sessions.BusinessInfo, TransitionContext{})
		if err != nil {
			return session, err
		}
		current = next
	}
	if current.OnboardingState != sessions.BusinessInfo {
		return current, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "business info already submitted")
	}

	tenantID, err := s.backend.ProvisionTenant(ctx, current.UserID, info)
	if err != nil {
		log.Warn().Err(err).Str("session", monitor.Handle(current.ID)).Msg("tenant provisioning failed, staying in BUSINESS_INFO")
		return current, err
	}
	return s.advance(ctx, current, sessions.Subscription, TransitionContext{TenantID: tenantID})
}

// SelectPlan moves SUBSCRIPTION to PAYMENT, or straight to SETUP for the free plan.
func (s *Service) SelectPlan(ctx context.Context, session *sessions.Session, planID string) (*sessions.Session, error) {
	if session.OnboardingState != sessions.Subscription {
		return session, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "plan selection from %s", session.OnboardingState)
	}
	tenantID, err := tenants.ResolveForSession(session)
	if err != nil {
		return session, err
	}
	if err := s.backend.SelectPlan(ctx, tenantID, planID); err != nil {
		return session, err
	}

	free := planID == s.freePlanID
	tc := TransitionContext{TenantID: tenantID, FreePlan: free}
	if !free {
		return s.advance(ctx, session, sessions.Payment, tc)
	}
	if err := ValidateTransition(session.OnboardingState, sessions.Setup, tc); err != nil {
		return session, err
	}
	if err := s.backend.StartSetup(ctx, tenantID); err != nil {
		return session, err
	}
	return s.advance(ctx, session, sessions.Setup, tc)
}

// ConfirmPayment moves PAYMENT to SETUP once the processor accepts the method.
func (s *Service) ConfirmPayment(ctx context.Context, session *sessions.Session, paymentMethodID string) (*sessions.Session, error) {
	if session.OnboardingState != sessions.Payment {
		return session, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "payment confirmation from %s", session.OnboardingState)
	}
	tenantID, err := tenants.ResolveForSession(session)
	if err != nil {
		return session, err
	}
	if err := s.backend.ConfirmPaymentMethod(ctx, tenantID, paymentMethodID); err != nil {
		return session, err
	}
	if err := s.backend.StartSetup(ctx, tenantID); err != nil {
		return session, err
	}
	return s.advance(ctx, session, sessions.Setup, TransitionContext{TenantID: tenantID})
}

// CheckSetup completes onboarding when the setup job reports done. While
// the job runs the session is returned unchanged.
func (s *Service) CheckSetup(ctx context.Context, session *sessions.Session) (*sessions.Session, error) {
	if session.OnboardingState != sessions.Setup {
		return session, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "setup check from %s", session.OnboardingState)
	}
	tenantID, err := tenants.ResolveForSession(session)
	if err != nil {
		return session, err
	}
	done, err := s.backend.SetupStatus(ctx, tenantID)
	if err != nil {
		return session, err
	}
	if !done {
		return session, nil
	}
	return s.advance(ctx, session, sessions.Complete, TransitionContext{TenantID: tenantID})
}

// Reset is the administrative path and may move progress backward.
func (s *Service) Reset(ctx context.Context, sessionID string, to sessions.OnboardingState) (*sessions.Session, error) {
	if !to.Valid() {
		return nil, errors.Wrapf(errors.ErrUnknownOnboardingState, "%d", int(to))
	}
	session, err := s.store.ResetOnboarding(ctx, sessionID, to)
	if err != nil {
		return nil, err
	}
	log.Info().Str("session", monitor.Handle(sessionID)).Str("to", to.String()).Msg("onboarding reset")
	metrics.OnboardingTransitions.WithLabelValues(to.String()).Inc()
	return session, nil
}

func (s *Service) advance(ctx context.Context, session *sessions.Session, to sessions.OnboardingState, tc TransitionContext) (*sessions.Session, error) {
	from := session.OnboardingState
	if err := ValidateTransition(from, to, tc); err != nil {
		return session, err
	}
	next, err := s.store.UpdateOnboarding(ctx, session.ID, from, to, tc.TenantID)
	if err != nil {
		return session, err
	}
	log.Info().Str("session", monitor.Handle(session.ID)).Str("from", from.String()).Str("to", to.String()).Msg("onboarding advanced")
	metrics.OnboardingTransitions.WithLabelValues(to.String()).Inc()
	return next, nil
}
