package config

import (
	"net/http"
	"strings"
	"time"
)

const (
	cookieNameVar     = "SESSION_COOKIE_NAME"
	cookieDomainVar   = "COOKIE_DOMAIN"
	cookieSameSiteVar = "COOKIE_SAMESITE"
	cookieModeVar     = "SESSION_COOKIE_MODE"
	cacheMaxAgeVar    = "SESSION_CACHE_MAX_AGE"
	sensitiveRouteVar = "SENSITIVE_ROUTES"
	refreshHoursVar   = "SESSION_REFRESH_HOURS"
)

// Cookie payload modes
const (
	CookieModeOpaque    = "opaque"
	CookieModeEncrypted = "encrypted"
)

type SessionConfig interface {
	GetSessionCookieName() string
	GetCookieDomain() string
	GetCookieSameSite() http.SameSite
	GetSessionCookieMode() string
	GetSessionCacheMaxAge() time.Duration
	GetSensitiveRoutes() []string
	GetRefreshExtendHours() int
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionCookieName() string {
	return GetEnv(cookieNameVar, "sid")
}

// GetCookieDomain returns the apex domain cookies are scoped to. Empty means host-only.
func (Session) GetCookieDomain() string {
	return GetEnv(cookieDomainVar, "")
}

func (Session) GetCookieSameSite() http.SameSite {
	if strings.EqualFold(GetEnv(cookieSameSiteVar, "lax"), "strict") {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

func (Session) GetSessionCookieMode() string {
	return strings.ToLower(GetEnv(cookieModeVar, CookieModeEncrypted))
}

// GetSessionCacheMaxAge bounds how long a decrypted cookie payload is trusted
// before the session is revalidated against the store.
func (Session) GetSessionCacheMaxAge() time.Duration {
	return GetEnvDuration(cacheMaxAgeVar, 30*time.Second)
}

func (Session) GetSensitiveRoutes() []string {
	return GetEnvList(sensitiveRouteVar, []string{"/session/refresh", "/session/concurrent", "/onboarding/", "/admin/"})
}

func (Session) GetRefreshExtendHours() int {
	return GetEnvInt(refreshHoursVar, 12)
}
