package redisstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/jrsteele09/go-session-gateway/sessions/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

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

func newStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return redisstore.New(client, 2*time.Hour, redisstore.WithClock(c.Now)), mr, c
}

func creds(userID string) sessions.Credentials {
	return sessions.Credentials{
		UserID:      userID,
		Email:       userID + "@example.com",
		AccessToken: "access-" + userID,
		ClientMeta:  sessions.ClientMeta{IP: "192.168.1.10", UserAgent: "test-agent"},
	}
}

func TestStore_CreateValidate(t *testing.T) {
	ctx := context.Background()
	store, mr, _ := newStore(t)

	created, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)
	require.True(t, sessions.ValidID(created.ID))
	require.Equal(t, sessions.NotStarted, created.OnboardingState)
	require.Empty(t, created.TenantID)

	got, err := store.Validate(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "access-user-1", got.AccessToken)
	require.Equal(t, created.ExpiresAt, got.ExpiresAt)

	require.Equal(t, 2*time.Hour, mr.TTL("session:"+created.ID))

	_, err = store.Create(ctx, sessions.Credentials{UserID: "user-1"})
	require.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestStore_ValidateExpired(t *testing.T) {
	ctx := context.Background()
	store, mr, c := newStore(t)

	created, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)

	c.Advance(2 * time.Hour)
	_, err = store.Validate(ctx, created.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	mr.FastForward(2 * time.Hour)
	_, err = store.Validate(ctx, created.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestStore_Refresh(t *testing.T) {
	ctx := context.Background()
	store, mr, c := newStore(t)

	created, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)

	c.Advance(time.Hour)
	refreshed, err := store.Refresh(ctx, created.ID, 12)
	require.NoError(t, err)
	require.Equal(t, created.ID, refreshed.ID)
	require.Equal(t, c.Now().Add(12*time.Hour), refreshed.ExpiresAt)
	require.Equal(t, c.Now(), refreshed.LastActivityAt)
	require.Equal(t, 12*time.Hour, mr.TTL("session:"+created.ID))

	// A shorter extension never shortens the session.
	again, err := store.Refresh(ctx, created.ID, 1)
	require.NoError(t, err)
	require.Equal(t, refreshed.ExpiresAt, again.ExpiresAt)

	_, err = store.Refresh(ctx, "missing-session-identifier", 1)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestStore_DestroyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newStore(t)

	created, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)

	require.NoError(t, store.Destroy(ctx, created.ID))
	require.NoError(t, store.Destroy(ctx, created.ID))

	_, err = store.Validate(ctx, created.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	list, err := store.ListActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestStore_ListActiveForUser(t *testing.T) {
	ctx := context.Background()
	store, _, c := newStore(t)

	first, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)
	c.Advance(time.Minute)
	second, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)
	_, err = store.Create(ctx, creds("user-2"))
	require.NoError(t, err)

	list, err := store.ListActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)
	require.Equal(t, second.ID, list[1].ID)
	require.Equal(t, "192.168.1.10", list[0].ClientMeta.IP)
}

func TestStore_OnboardingProgress(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newStore(t)

	created, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)

	s, err := store.UpdateOnboarding(ctx, created.ID, sessions.NotStarted, sessions.BusinessInfo, "")
	require.NoError(t, err)
	require.Equal(t, sessions.BusinessInfo, s.OnboardingState)

	_, err = store.UpdateOnboarding(ctx, created.ID, sessions.BusinessInfo, sessions.Subscription, "")
	require.ErrorIs(t, err, errors.ErrInvalidOnboardingTransition, "subscription needs a tenant")

	s, err = store.UpdateOnboarding(ctx, created.ID, sessions.BusinessInfo, sessions.Subscription, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, "tenant-1", s.TenantID)

	// Stale compare-and-set loses.
	_, err = store.UpdateOnboarding(ctx, created.ID, sessions.BusinessInfo, sessions.Subscription, "tenant-2")
	require.ErrorIs(t, err, errors.ErrInvalidOnboardingTransition)

	// Progress belongs to the user, so a new login sees it.
	other, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)
	require.Equal(t, sessions.Subscription, other.OnboardingState)
	require.Equal(t, "tenant-1", other.TenantID)

	s, err = store.ResetOnboarding(ctx, other.ID, sessions.NotStarted)
	require.NoError(t, err)
	require.Equal(t, sessions.NotStarted, s.OnboardingState)
	require.Empty(t, s.TenantID)

	got, err := store.Validate(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, sessions.NotStarted, got.OnboardingState)
}

func TestStore_ConcurrentOnboardingUpdate(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newStore(t)

	created, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.UpdateOnboarding(ctx, created.ID, sessions.NotStarted, sessions.BusinessInfo, ""); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)
	require.Len(t, successes, 1)
}

func TestStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	store, mr, _ := newStore(t)

	_, err := store.Create(ctx, creds("user-1"))
	require.NoError(t, err)
	mr.FastForward(3 * time.Hour)

	swept, err := store.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	members, err := mr.SMembers("user:user-1:sessions")
	if err == nil {
		require.Empty(t, members)
	}
}

func TestStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.New(client, time.Hour)

	_, err := store.Validate(ctx, "c2Vzc2lvbi1pZC1mb3ItdGVzdHM")
	require.ErrorIs(t, err, errors.ErrStoreUnavailable)

	_, err = store.Create(ctx, creds("user-1"))
	require.ErrorIs(t, err, errors.ErrStoreUnavailable)
}
