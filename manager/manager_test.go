package manager_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-gateway/codec"
	"github.com/jrsteele09/go-session-gateway/identity"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/manager"
	"github.com/jrsteele09/go-session-gateway/sessions"
	fakesessionstore "github.com/jrsteele09/go-session-gateway/sessions/repofakes"
	"github.com/jrsteele09/go-session-gateway/throttle"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeAuthenticator struct{}

func (fakeAuthenticator) Authenticate(_ context.Context, req identity.LoginRequest) (sessions.Credentials, error) {
	if req.IDToken != "good" {
		return sessions.Credentials{}, errors.ErrAuthentication
	}
	return sessions.Credentials{UserID: "user-1", Email: "user@example.com", AccessToken: req.AccessToken}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store *fakesessionstore.FakeSessionStore
	mgr   *manager.Manager
	clock *clock
}

func newFixture(t *testing.T, mutate func(*manager.Options)) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := fakesessionstore.NewFakeSessionStore(24 * time.Hour)
	store.SetClock(c.Now)

	cd, err := codec.New(testSecret)
	require.NoError(t, err)
	opts := manager.Options{
		Mode:            manager.ModeEncrypted,
		Codec:           cd,
		CookieDomain:    "example.com",
		Secure:          true,
		CacheMaxAge:     30 * time.Second,
		SensitiveRoutes: []string{"/session/refresh", "/onboarding/"},
		Now:             c.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	mgr, err := manager.New(store, fakeAuthenticator{}, opts)
	require.NoError(t, err)
	return &fixture{store: store, mgr: mgr, clock: c}
}

func loginRequest() *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/session", nil)
	r.Header.Set("User-Agent", "test-agent")
	return r
}

func (f *fixture) establish(t *testing.T) (*sessions.Session, *http.Cookie) {
	t.Helper()
	session, directives, err := f.mgr.Establish(loginRequest(), identity.LoginRequest{IDToken: "good", AccessToken: "access"})
	require.NoError(t, err)
	require.Len(t, directives, 1)
	return session, directives[0]
}

func requestWith(path string, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}

func TestEstablish_CookieAttributes(t *testing.T) {
	f := newFixture(t, nil)
	session, cookie := f.establish(t)

	require.Equal(t, "sid", cookie.Name)
	require.True(t, cookie.HttpOnly)
	require.True(t, cookie.Secure)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, "example.com", cookie.Domain)
	require.Equal(t, "/", cookie.Path)
	require.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)
	require.NotContains(t, cookie.Value, session.ID, "encrypted cookies do not expose the ID")
	require.NotContains(t, cookie.Value, "access")

	require.Equal(t, "192.0.2.1", session.ClientMeta.IP)
	require.Equal(t, "test-agent", session.ClientMeta.UserAgent)
}

func TestEstablish_RejectedAndThrottled(t *testing.T) {
	th, err := throttle.New(2, 100)
	require.NoError(t, err)
	f := newFixture(t, func(o *manager.Options) { o.Throttle = th })

	for i := 0; i < 2; i++ {
		_, _, err := f.mgr.Establish(loginRequest(), identity.LoginRequest{IDToken: "bad"})
		require.ErrorIs(t, err, errors.ErrAuthentication)
	}
	_, _, err = f.mgr.Establish(loginRequest(), identity.LoginRequest{IDToken: "good", AccessToken: "access"})
	require.ErrorIs(t, err, errors.ErrTooManyAttempts)
	require.Equal(t, 0, f.store.Len(), "store is never called for throttled logins")
}

func TestEstablish_StoreUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.store.FailWith("create", errors.ErrStoreUnavailable)
	_, _, err := f.mgr.Establish(loginRequest(), identity.LoginRequest{IDToken: "good", AccessToken: "access"})
	require.ErrorIs(t, err, errors.ErrStoreUnavailable)
}

func TestEstablish_ExpiresLegacyCookies(t *testing.T) {
	f := newFixture(t, nil)
	r := loginRequest()
	r.AddCookie(&http.Cookie{Name: "loggedInSessionId", Value: "old"})

	_, directives, err := f.mgr.Establish(r, identity.LoginRequest{IDToken: "good", AccessToken: "access"})
	require.NoError(t, err)
	require.Len(t, directives, 3)
	for _, c := range directives[1:] {
		require.Equal(t, "loggedInSessionId", c.Name)
		require.Equal(t, -1, c.MaxAge)
	}
}

// Scenario A: a fresh login resolves with no progress and no tenant.
func TestResolve_FreshLogin(t *testing.T) {
	f := newFixture(t, nil)
	session, cookie := f.establish(t)

	res, err := f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.NoError(t, err)
	require.False(t, res.Revalidated, "served from the cookie")
	require.Equal(t, session.ID, res.Session.ID)
	require.Equal(t, sessions.NotStarted, res.Session.OnboardingState)
	require.Empty(t, res.Session.TenantID)
	require.Empty(t, res.Session.AccessToken, "cached sessions carry no tokens")
}

func TestResolve_Unauthenticated(t *testing.T) {
	f := newFixture(t, nil)
	_, cookie := f.establish(t)

	other, err := codec.New("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	foreign, err := other.Encrypt([]byte(`{"sid":"c2Vzc2lvbi1pZC1mb3ItdGVzdHM","uid":"x","exp":9999999999999,"cat":9999999999999}`))
	require.NoError(t, err)

	tests := map[string]*http.Request{
		"no cookie":      requestWith("/dashboard"),
		"garbage":        requestWith("/dashboard", &http.Cookie{Name: "sid", Value: "garbage"}),
		"other key":      requestWith("/dashboard", &http.Cookie{Name: "sid", Value: foreign}),
		"wrong name":     requestWith("/dashboard", &http.Cookie{Name: "session_id", Value: cookie.Value}),
		"empty value":    requestWith("/dashboard", &http.Cookie{Name: "sid", Value: ""}),
		"truncated":      requestWith("/dashboard", &http.Cookie{Name: "sid", Value: cookie.Value[:len(cookie.Value)/2]}),
		"sensitive path": requestWith("/onboarding/payment", &http.Cookie{Name: "sid", Value: "garbage"}),
	}
	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.mgr.Resolve(r)
			require.ErrorIs(t, err, errors.ErrUnauthenticated)
		})
	}
}

// Scenario C: a flipped ciphertext byte is Unauthenticated, never another session.
func TestResolve_TamperedCookie(t *testing.T) {
	f := newFixture(t, nil)
	_, cookie := f.establish(t)

	value := []byte(cookie.Value)
	for i := range value {
		tampered := append([]byte(nil), value...)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}
		_, err := f.mgr.Resolve(requestWith("/dashboard", &http.Cookie{Name: "sid", Value: string(tampered)}))
		require.ErrorIs(t, err, errors.ErrUnauthenticated, "byte %d", i)
	}
}

func TestResolve_Expired(t *testing.T) {
	f := newFixture(t, nil)
	_, cookie := f.establish(t)

	f.clock.Advance(24 * time.Hour)
	_, err := f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestResolve_RevalidatesStaleCacheAndSensitiveRoutes(t *testing.T) {
	f := newFixture(t, nil)
	session, cookie := f.establish(t)

	res, err := f.mgr.Resolve(requestWith("/onboarding/business-info", cookie))
	require.NoError(t, err)
	require.True(t, res.Revalidated)
	require.Equal(t, "access", res.Session.AccessToken)
	require.Len(t, res.Cookies, 1, "revalidation reissues the cookie")

	// Progress changed elsewhere; the cache is trusted until it is stale.
	_, err = f.store.UpdateOnboarding(context.Background(), session.ID, sessions.NotStarted, sessions.BusinessInfo, "")
	require.NoError(t, err)

	res, err = f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.NoError(t, err)
	require.False(t, res.Revalidated)
	require.Equal(t, sessions.NotStarted, res.Session.OnboardingState)

	f.clock.Advance(31 * time.Second)
	res, err = f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.NoError(t, err)
	require.True(t, res.Revalidated)
	require.Equal(t, sessions.BusinessInfo, res.Session.OnboardingState)

	// The reissued cookie carries the new state and a new cache time.
	res, err = f.mgr.Resolve(requestWith("/dashboard", res.Cookies[0]))
	require.NoError(t, err)
	require.False(t, res.Revalidated)
	require.Equal(t, sessions.BusinessInfo, res.Session.OnboardingState)
}

func TestResolve_StoreUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	_, cookie := f.establish(t)
	f.clock.Advance(time.Minute)
	f.store.FailWith("validate", errors.ErrStoreUnavailable)

	// Non-sensitive routes fail open to the cached payload.
	res, err := f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.NoError(t, err)
	require.False(t, res.Revalidated)

	// Sensitive routes fail closed.
	_, err = f.mgr.Resolve(requestWith("/onboarding/payment", cookie))
	require.ErrorIs(t, err, errors.ErrStoreUnavailable)

	_, err = f.mgr.ResolveFresh(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrStoreUnavailable)
}

func TestResolve_OpaqueMode(t *testing.T) {
	f := newFixture(t, func(o *manager.Options) {
		o.Mode = manager.ModeOpaque
		o.Codec = nil
	})
	session, cookie := f.establish(t)
	require.Equal(t, session.ID, cookie.Value)

	res, err := f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.NoError(t, err)
	require.True(t, res.Revalidated, "opaque cookies always ask the store")

	f.store.FailWith("validate", errors.ErrStoreUnavailable)
	_, err = f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrStoreUnavailable, "nothing to fall back to")

	f.store.FailWith("validate", nil)
	require.NoError(t, f.store.Destroy(context.Background(), session.ID))
	_, err = f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
}

// Scenario D: concurrent resolves of one session succeed; after destroy
// from either, a third is Unauthenticated.
func TestResolve_ConcurrentThenInvalidate(t *testing.T) {
	f := newFixture(t, nil)
	_, cookie := f.establish(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.mgr.ResolveFresh(requestWith("/session", cookie))
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	f.mgr.Invalidate(requestWith("/session", cookie))

	_, err := f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
	_, err = f.mgr.ResolveFresh(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestInvalidate_DestroyFailureStillSignsOut(t *testing.T) {
	f := newFixture(t, nil)
	session, cookie := f.establish(t)
	f.store.FailWith("destroy", errors.ErrStoreUnavailable)

	directives := f.mgr.Invalidate(requestWith("/session", cookie))

	names := map[string]int{}
	for _, c := range directives {
		require.Equal(t, -1, c.MaxAge)
		names[c.Name]++
	}
	for _, name := range append(manager.HistoricalCookieNames, "csrf_token") {
		require.Equal(t, 2, names[name], "%s cleared on domain and host-only", name)
	}

	// The store still has the session, yet the replayed cookie is rejected
	// on every path, also after the cache max age.
	_, err := f.store.Validate(context.Background(), session.ID)
	require.NoError(t, err)

	_, err = f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
	f.clock.Advance(time.Minute)
	_, err = f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestInvalidate_WithoutCookie(t *testing.T) {
	f := newFixture(t, func(o *manager.Options) { o.CookieDomain = "" })
	directives := f.mgr.Invalidate(requestWith("/session"))
	require.Len(t, directives, len(manager.HistoricalCookieNames)+1)
}

func TestMarkInvalidAndPurge(t *testing.T) {
	f := newFixture(t, nil)
	session, cookie := f.establish(t)

	directives := f.mgr.MarkInvalidAndPurge(context.Background(), session.ID)
	require.NotEmpty(t, directives)

	_, err := f.store.Validate(context.Background(), session.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, nil)
	session, cookie := f.establish(t)

	f.clock.Advance(20 * time.Hour)
	refreshed, directives, err := f.mgr.Refresh(requestWith("/session/refresh", cookie))
	require.NoError(t, err)
	require.Equal(t, session.ID, refreshed.ID, "refresh does not rotate the ID")
	require.Equal(t, f.clock.Now().Add(12*time.Hour), refreshed.ExpiresAt)
	require.Len(t, directives, 1)
	require.Equal(t, int((12 * time.Hour).Seconds()), directives[0].MaxAge)

	// Past the original expiry the refreshed cookie still works.
	f.clock.Advance(6 * time.Hour)
	_, err = f.mgr.Resolve(requestWith("/dashboard", directives[0]))
	require.NoError(t, err)
}

func TestReissue(t *testing.T) {
	f := newFixture(t, nil)
	session, _ := f.establish(t)

	session.OnboardingState = sessions.Subscription
	session.TenantID = "tenant-1"
	cookie, err := f.mgr.Reissue(session)
	require.NoError(t, err)

	res, err := f.mgr.Resolve(requestWith("/dashboard", cookie))
	require.NoError(t, err)
	require.Equal(t, "tenant-1", res.Session.TenantID)
	require.Equal(t, sessions.Subscription, res.Session.OnboardingState)

	id, ok := f.mgr.SessionIDFromRequest(requestWith("/", cookie))
	require.True(t, ok)
	require.Equal(t, session.ID, id)
}

func TestNew_RequiresCodecForEncryptedMode(t *testing.T) {
	_, err := manager.New(fakesessionstore.NewFakeSessionStore(time.Hour), nil, manager.Options{})
	require.ErrorIs(t, err, errors.ErrSecretMisconfigured)

	_, err = manager.New(nil, nil, manager.Options{Mode: manager.ModeOpaque})
	require.Error(t, err)
}
