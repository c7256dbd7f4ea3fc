package server

import "github.com/jrsteele09/go-session-gateway/onboarding"

// Session routes
const (
	RouteSession             = "/session"
	RouteSessionCSRF         = "/session/csrf"
	RouteSessionRefresh      = "/session/refresh"
	RouteSessionConcurrent   = "/session/concurrent"
	RouteSessionClearInvalid = "/session/clear-invalid"
	RouteSessionRoute        = "/session/route"
	RouteSessionLogin        = "/session/login"
	RouteSessionCallback     = "/session/callback"
)

// Onboarding routes
const (
	RouteOnboardingBusinessInfo = onboarding.PathBusinessInfo
	RouteOnboardingSubscription = onboarding.PathSubscription
	RouteOnboardingPayment      = onboarding.PathPayment
	RouteOnboardingSetup        = onboarding.PathSetup
)

// Protected application routes
const (
	RouteDashboard       = onboarding.PathDashboard
	RouteTenantDashboard = "/t/{tenantID}/dashboard"
)

// Admin routes
const (
	RouteAdminOnboardingReset = "/admin/sessions/{sessionID}/onboarding/reset"
)

// Operational routes
const (
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

const (
	pathParamTenantID  = "tenantID"
	pathParamSessionID = "sessionID"
)
