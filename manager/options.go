package manager

import (
	"net/http"
	"slices"
	"time"

	"github.com/jrsteele09/go-session-gateway/codec"
	"github.com/jrsteele09/go-session-gateway/csrf"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/throttle"
)

type CookieMode string

const (
	// ModeOpaque stores only the session ID in the cookie. Every resolve asks the store.
	ModeOpaque CookieMode = "opaque"
	// ModeEncrypted stores an encrypted session summary that short-circuits
	// store round trips for non-sensitive routes.
	ModeEncrypted CookieMode = "encrypted"
)

// HistoricalCookieNames lists every session cookie name the system has used.
// All of them are expired on sign-out. Append only.
var HistoricalCookieNames = []string{"sid", "session_id", "loggedInSessionId", "auth_session_id", "sid_cache"}

// Defaults
const (
	DefaultCookieName          = "sid"
	DefaultCacheMaxAge         = 30 * time.Second
	DefaultRefreshExtendHours  = 12
	DefaultRevocationCacheSize = 10000
	DefaultRevocationTTL       = 24 * time.Hour
	DefaultStoreTimeout        = 5 * time.Second
)

// Options configures a Manager. New copies it, so later changes by the
// caller have no effect.
type Options struct {
	Mode     CookieMode
	Codec    *codec.Codec       // required for ModeEncrypted
	Throttle *throttle.Throttle // nil disables login throttling

	CookieName   string
	CookieDomain string // apex domain, "" for host-only cookies
	SameSite     http.SameSite
	Secure       bool

	// CacheMaxAge bounds how long an encrypted payload is trusted without
	// asking the store.
	CacheMaxAge time.Duration
	// SensitiveRoutes are path prefixes that always revalidate and fail closed.
	SensitiveRoutes    []string
	RefreshExtendHours int

	HistoricalCookieNames []string
	CSRFCookieName        string

	RevocationCacheSize int
	// RevocationTTL is how long a locally revoked ID stays rejected. It
	// should cover the session lifetime so a failed destroy can not be
	// bypassed by replaying the old cookie.
	RevocationTTL time.Duration
	StoreTimeout  time.Duration

	Now func() time.Time
}

func (o Options) withDefaults() (Options, error) {
	if o.Mode == "" {
		o.Mode = ModeEncrypted
	}
	switch o.Mode {
	case ModeOpaque:
	case ModeEncrypted:
		if o.Codec == nil {
			return o, errors.Wrapf(errors.ErrSecretMisconfigured, "encrypted cookie mode needs a codec")
		}
	default:
		return o, errors.Wrapf(errors.ErrInvalidRequest, "unknown cookie mode %q", o.Mode)
	}
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.SameSite == 0 || o.SameSite == http.SameSiteDefaultMode {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.CacheMaxAge <= 0 {
		o.CacheMaxAge = DefaultCacheMaxAge
	}
	if o.RefreshExtendHours <= 0 {
		o.RefreshExtendHours = DefaultRefreshExtendHours
	}
	if len(o.HistoricalCookieNames) == 0 {
		o.HistoricalCookieNames = HistoricalCookieNames
	}
	if o.CSRFCookieName == "" {
		o.CSRFCookieName = csrf.CookieName
	}
	if o.RevocationCacheSize <= 0 {
		o.RevocationCacheSize = DefaultRevocationCacheSize
	}
	if o.RevocationTTL <= 0 {
		o.RevocationTTL = DefaultRevocationTTL
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	o.SensitiveRoutes = slices.Clone(o.SensitiveRoutes)
	o.HistoricalCookieNames = slices.Clone(o.HistoricalCookieNames)
	return o, nil
}
