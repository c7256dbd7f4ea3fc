// Package onboarding gates protected routes on a user's onboarding progress
// and drives the steps that move it forward.
package onboarding

import (
	"path"
	"strings"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

// Step paths
const (
	PathBusinessInfo = "/onboarding/business-info"
	PathSubscription = "/onboarding/subscription"
	PathPayment      = "/onboarding/payment"
	PathSetup        = "/onboarding/setup"
	PathDashboard    = "/dashboard"

	onboardingPrefix = "/onboarding/"
)

// Decision reasons
const (
	ReasonPublic               = "public"
	ReasonCurrentStep          = "current_step"
	ReasonOnboardingIncomplete = "onboarding_incomplete"
	ReasonWrongStep            = "wrong_step"
	ReasonOnboardingComplete   = "onboarding_complete"
	ReasonNoTenant             = "no_tenant"
	ReasonAllowed              = "allowed"
)

var publicPrefixes = []string{"/session", "/healthz", "/metrics"}

// Decision is the routing outcome for one request. When Allow is false and
// Redirect is empty the request can not be served at all.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
	Reason   string `json:"reason"`
}

// StepPath returns the onboarding page for state, or "" once complete.
func StepPath(state sessions.OnboardingState) string {
	switch state {
	case sessions.NotStarted, sessions.BusinessInfo:
		return PathBusinessInfo
	case sessions.Subscription:
		return PathSubscription
	case sessions.Payment:
		return PathPayment
	case sessions.Setup:
		return PathSetup
	}
	return ""
}

func DashboardPath(tenantID string) string {
	return "/t/" + tenantID + "/dashboard"
}

// IsPublic reports whether requestedPath is reachable without finishing onboarding.
func IsPublic(requestedPath string) bool {
	p := clean(requestedPath)
	for _, prefix := range publicPrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

func isOnboardingPath(p string) bool {
	return strings.HasPrefix(p, onboardingPrefix)
}

// Decide routes a request. Until onboarding is complete every protected path
// leads to the current step, so no step is ever skipped. Once complete,
// onboarding paths lead to the tenant dashboard.
func Decide(state sessions.OnboardingState, tenantID, requestedPath string) Decision {
	p := clean(requestedPath)
	if IsPublic(p) {
		return Decision{Allow: true, Reason: ReasonPublic}
	}
	if !state.Valid() {
		state = sessions.NotStarted
	}

	if state != sessions.Complete {
		step := StepPath(state)
		if p == step {
			return Decision{Allow: true, Reason: ReasonCurrentStep}
		}
		reason := ReasonOnboardingIncomplete
		if isOnboardingPath(p) {
			reason = ReasonWrongStep
		}
		return Decision{Redirect: step, Reason: reason}
	}

	if tenantID == "" {
		return Decision{Reason: ReasonNoTenant}
	}
	if isOnboardingPath(p) || p == PathDashboard {
		return Decision{Redirect: DashboardPath(tenantID), Reason: ReasonOnboardingComplete}
	}
	return Decision{Allow: true, Reason: ReasonAllowed}
}

// TransitionContext carries what a transition gate depends on.
type TransitionContext struct {
	TenantID string
	FreePlan bool
}

// ValidateTransition accepts only adjacent forward moves, plus
// SUBSCRIPTION -> SETUP for the free plan. Leaving BUSINESS_INFO needs a
// provisioned tenant.
func ValidateTransition(from, to sessions.OnboardingState, tc TransitionContext) error {
	if !from.Valid() || !to.Valid() {
		return errors.Wrapf(errors.ErrUnknownOnboardingState, "%d -> %d", int(from), int(to))
	}
	switch {
	case to == from+1:
		if from == sessions.BusinessInfo && tc.TenantID == "" {
			return errors.Wrapf(errors.ErrInvalidOnboardingTransition, "%s -> %s without a tenant", from, to)
		}
		return nil
	case from == sessions.Subscription && to == sessions.Setup && tc.FreePlan:
		return nil
	}
	return errors.Wrapf(errors.ErrInvalidOnboardingTransition, "%s -> %s", from, to)
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
