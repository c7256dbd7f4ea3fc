package config

import (
	"fmt"
	"time"
)

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	SecurityConfig
	StoreConfig
	IdentityConfig
	OnboardingConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
	IsLocal() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Security
	Store
	Identity
	Onboarding
}

func New() Config {
	return mainConfig{}
}

const minSecretLength = 32

// Validate checks the settings the process cannot start without.
func Validate(c Config) error {
	if len(c.GetSessionSecret()) < minSecretLength {
		return fmt.Errorf("%s must be set to at least %d characters", sessionSecretVar, minSecretLength)
	}
	if len(c.GetCSRFSecret()) < minSecretLength {
		return fmt.Errorf("%s must be set to at least %d characters", csrfSecretVar, minSecretLength)
	}
	switch c.GetSessionCookieMode() {
	case CookieModeOpaque, CookieModeEncrypted:
	default:
		return fmt.Errorf("unsupported %s %q", cookieModeVar, c.GetSessionCookieMode())
	}
	switch c.GetStoreBackend() {
	case StoreBackendHTTP:
		if c.GetStoreBaseURL() == "" {
			return fmt.Errorf("%s is required for the http store backend", storeBaseURLVar)
		}
	case StoreBackendRedis, StoreBackendMemory:
	default:
		return fmt.Errorf("unsupported %s %q", storeBackendVar, c.GetStoreBackend())
	}
	if c.GetStoreTimeout() <= 0 || c.GetStoreTimeout() > time.Minute {
		return fmt.Errorf("%s must be between 0 and 1m", storeTimeoutVar)
	}
	return nil
}
