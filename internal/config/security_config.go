package config

import "time"

const (
	sessionSecretVar    = "SESSION_SECRET"
	csrfSecretVar       = "CSRF_SECRET"
	csrfMaxAgeVar       = "CSRF_MAX_AGE"
	loginAttemptsVar    = "LOGIN_ATTEMPTS_PER_MINUTE"
	throttleCacheVar    = "THROTTLE_CACHE_SIZE"
	adminJWTSecretVar   = "ADMIN_JWT_SECRET"
	revocationCacheVar  = "REVOCATION_CACHE_SIZE"
	monitorThresholdVar = "CONCURRENT_SESSION_THRESHOLD"
)

type SecurityConfig interface {
	GetSessionSecret() string
	GetCSRFSecret() string
	GetCSRFMaxAge() time.Duration
	GetLoginAttemptsPerMinute() int
	GetThrottleCacheSize() int
	GetAdminJWTSecret() string
	GetRevocationCacheSize() int
	GetConcurrentSessionThreshold() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSecret is the secret the cookie encryption key is derived from.
func (Security) GetSessionSecret() string {
	return GetEnv(sessionSecretVar, "")
}

func (Security) GetCSRFSecret() string {
	return GetEnv(csrfSecretVar, "")
}

func (Security) GetCSRFMaxAge() time.Duration {
	return GetEnvDuration(csrfMaxAgeVar, time.Hour)
}

func (Security) GetLoginAttemptsPerMinute() int {
	return GetEnvInt(loginAttemptsVar, 10)
}

func (Security) GetThrottleCacheSize() int {
	return GetEnvInt(throttleCacheVar, 10_000)
}

// GetAdminJWTSecret signs the bearer tokens accepted by the admin routes.
// An empty secret disables the admin routes.
func (Security) GetAdminJWTSecret() string {
	return GetEnv(adminJWTSecretVar, "")
}

func (Security) GetRevocationCacheSize() int {
	return GetEnvInt(revocationCacheVar, 10_000)
}

func (Security) GetConcurrentSessionThreshold() int {
	return GetEnvInt(monitorThresholdVar, 5)
}
