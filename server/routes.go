package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// OPERATIONAL
	s.RegisterRouteFunc("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
	s.RegisterRouteFunc("OPTIONS /", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	// SESSION
	s.RegisterRouteFunc("GET "+RouteSessionCSRF, ChainMiddleware(s.CSRFTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteSession, ChainMiddleware(s.EstablishSessionHandler(), s.APIMiddleware(s.CSRFMiddleware)...))
	s.RegisterRouteFunc("GET "+RouteSession, ChainMiddleware(s.GetSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("DELETE "+RouteSession, ChainMiddleware(s.DestroySessionHandler(), s.APIMiddleware(s.CSRFMiddleware)...))
	s.RegisterRouteFunc("POST "+RouteSessionRefresh, ChainMiddleware(s.RefreshSessionHandler(), s.APIMiddleware(s.CSRFMiddleware)...))
	s.RegisterRouteFunc("GET "+RouteSessionConcurrent, ChainMiddleware(s.ConcurrentSessionsHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("POST "+RouteSessionClearInvalid, ChainMiddleware(s.ClearInvalidSessionHandler(), s.APIMiddleware(s.CSRFMiddleware)...))
	s.RegisterRouteFunc("GET "+RouteSessionRoute, ChainMiddleware(s.RouteDecisionHandler(), s.APIMiddleware()...))

	// BROWSER LOGIN (authorization code + PKCE), when an identity provider is configured
	if s.login != nil {
		s.RegisterRouteFunc("GET "+RouteSessionLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
		s.RegisterRouteFunc("GET "+RouteSessionCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.APIMiddleware()...))
	}

	// ONBOARDING (each step is only reachable from its own state)
	onboardingChain := s.APIMiddleware(s.CSRFMiddleware, s.RequireSession, s.RequireOnboarded)
	s.RegisterRouteFunc("POST "+RouteOnboardingBusinessInfo, ChainMiddleware(s.BusinessInfoHandler(), onboardingChain...))
	s.RegisterRouteFunc("POST "+RouteOnboardingSubscription, ChainMiddleware(s.SubscriptionHandler(), onboardingChain...))
	s.RegisterRouteFunc("POST "+RouteOnboardingPayment, ChainMiddleware(s.PaymentHandler(), onboardingChain...))
	s.RegisterRouteFunc("POST "+RouteOnboardingSetup, ChainMiddleware(s.SetupHandler(), onboardingChain...))

	// PROTECTED
	s.RegisterRouteFunc("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.APIMiddleware(s.RequireSession, s.RequireOnboarded)...))
	s.RegisterRouteFunc("GET "+RouteTenantDashboard, ChainMiddleware(s.TenantDashboardHandler(), s.APIMiddleware(s.RequireSession, s.RequireTenant, s.RequireOnboarded)...))

	// ADMIN (bearer token, no cookies, so no CSRF check)
	s.RegisterRouteFunc("POST "+RouteAdminOnboardingReset, ChainMiddleware(s.ResetOnboardingHandler(), s.APIMiddleware(s.RequireAdmin)...))
}
