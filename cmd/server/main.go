package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-session-gateway/codec"
	"github.com/jrsteele09/go-session-gateway/csrf"
	"github.com/jrsteele09/go-session-gateway/identity"
	"github.com/jrsteele09/go-session-gateway/internal/apiclient"
	"github.com/jrsteele09/go-session-gateway/internal/config"
	"github.com/jrsteele09/go-session-gateway/internal/logging"
	"github.com/jrsteele09/go-session-gateway/manager"
	"github.com/jrsteele09/go-session-gateway/monitor"
	"github.com/jrsteele09/go-session-gateway/onboarding"
	"github.com/jrsteele09/go-session-gateway/onboarding/backendclient"
	"github.com/jrsteele09/go-session-gateway/onboarding/backendfakes"
	"github.com/jrsteele09/go-session-gateway/server"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/jrsteele09/go-session-gateway/sessions/redisstore"
	fakesessionstore "github.com/jrsteele09/go-session-gateway/sessions/repofakes"
	"github.com/jrsteele09/go-session-gateway/sessions/storeclient"
	"github.com/jrsteele09/go-session-gateway/sessions/sweeper"
	tenantrepofakes "github.com/jrsteele09/go-session-gateway/tenants/repofakes"
	"github.com/jrsteele09/go-session-gateway/throttle"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	// A .env file is optional, real environment variables win
	envErr := godotenv.Load()

	c := config.New()
	logging.Setup(os.Stdout, c.IsLocal(), c.GetLogLevel())
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}
	if err := config.Validate(c); err != nil {
		// Misconfiguration does not heal by restarting
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	displayAppname(c.GetAppName())

	ctx := context.Background()
	store, closeStore, err := newSessionStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := newIdentityProvider(ctx, c)
	if err != nil {
		return err
	}

	sessionManager, err := newSessionManager(c, store, provider)
	if err != nil {
		return err
	}
	csrfService, err := csrf.New(c.GetCSRFSecret())
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		Sessions:   sessionManager,
		CSRF:       csrfService,
		Onboarding: onboarding.NewService(store, newOnboardingBackend(c), c.GetFreePlanID()),
		Monitor:    monitor.New(store, c.GetConcurrentSessionThreshold()),
	}
	if provider != nil {
		deps.Login = provider
	}
	handler, err := server.New(c, deps)
	if err != nil {
		return err
	}

	if sw, ok := store.(sessions.Sweeper); ok {
		scheduler, err := sweeper.New(sw, c.GetSweepSchedule())
		if err != nil {
			return fmt.Errorf("sweeper.New: %w", err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func newSessionStore(ctx context.Context, c config.Config) (sessions.Store, func(), error) {
	switch c.GetStoreBackend() {
	case config.StoreBackendHTTP:
		api := apiclient.New(c.GetStoreBaseURL(), c.GetStoreTimeout(), apiclient.WithServiceCredentials(serviceCredentials(c)))
		log.Info().Str("url", c.GetStoreBaseURL()).Msg("using http session store")
		return storeclient.New(api), func() {}, nil
	case config.StoreBackendRedis:
		client, err := redisstore.NewClient(ctx, c.GetRedisAddr(), c.GetRedisPassword())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("using redis session store")
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Err(err).Msg("failed to close redis client")
			}
		}
		return redisstore.New(client, c.GetSessionLifetime()), closeClient, nil
	default:
		log.Warn().Msg("using in-memory session store, sessions are lost on restart")
		return fakesessionstore.NewFakeSessionStore(c.GetSessionLifetime()), func() {}, nil
	}
}

// newIdentityProvider returns nil when no issuer is configured. Logins are
// then rejected.
func newIdentityProvider(ctx context.Context, c config.Config) (*identity.Provider, error) {
	if c.GetOIDCIssuer() == "" {
		log.Warn().Msg("OIDC_ISSUER not set, logins will be rejected")
		return nil, nil
	}
	discoveryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	provider, err := identity.New(discoveryCtx, c.GetOIDCIssuer(), c.GetOIDCClientID(), c.GetOIDCClientSecret(), c.GetOIDCRedirectURL())
	if err != nil {
		return nil, fmt.Errorf("identity.New: %w", err)
	}
	return provider, nil
}

func newSessionManager(c config.Config, store sessions.Store, provider *identity.Provider) (*manager.Manager, error) {
	loginThrottle, err := throttle.New(c.GetLoginAttemptsPerMinute(), c.GetThrottleCacheSize())
	if err != nil {
		return nil, err
	}
	opts := manager.Options{
		Mode:                manager.ModeOpaque,
		Throttle:            loginThrottle,
		CookieName:          c.GetSessionCookieName(),
		CookieDomain:        c.GetCookieDomain(),
		SameSite:            c.GetCookieSameSite(),
		Secure:              !c.IsLocal(),
		CacheMaxAge:         c.GetSessionCacheMaxAge(),
		SensitiveRoutes:     c.GetSensitiveRoutes(),
		RefreshExtendHours:  c.GetRefreshExtendHours(),
		RevocationCacheSize: c.GetRevocationCacheSize(),
		RevocationTTL:       c.GetSessionLifetime(),
		StoreTimeout:        c.GetStoreTimeout(),
	}
	if c.GetSessionCookieMode() == config.CookieModeEncrypted {
		cookieCodec, err := codec.New(c.GetSessionSecret())
		if err != nil {
			return nil, err
		}
		opts.Mode = manager.ModeEncrypted
		opts.Codec = cookieCodec
	}

	var auth identity.Authenticator
	if provider != nil {
		auth = provider
	}
	return manager.New(store, auth, opts)
}

func newOnboardingBackend(c config.Config) onboarding.Backend {
	if c.GetBackendBaseURL() == "" {
		log.Warn().Msg("BACKEND_BASE_URL not set, using in-memory onboarding backend")
		return backendfakes.NewFakeBackend(tenantrepofakes.NewFakeTenantRepo(), backendfakes.WithAutoComplete())
	}
	api := apiclient.New(c.GetBackendBaseURL(), c.GetStoreTimeout(), apiclient.WithServiceCredentials(serviceCredentials(c)))
	return backendclient.New(api)
}

func serviceCredentials(c config.Config) apiclient.ServiceCredentials {
	return apiclient.ServiceCredentials{
		ClientID:     c.GetStoreClientID(),
		ClientSecret: c.GetStoreClientSecret(),
		TokenURL:     c.GetStoreTokenURL(),
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
