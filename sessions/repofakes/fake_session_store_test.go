package fakesessionstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
	fakesessionstore "github.com/jrsteele09/go-session-gateway/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

func testCreds(userID string) sessions.Credentials {
	return sessions.Credentials{
		UserID:      userID,
		Email:       userID + "@example.com",
		AccessToken: "access-" + userID,
		ClientMeta:  sessions.ClientMeta{IP: "10.1.2.3", UserAgent: "test"},
	}
}

func TestFakeSessionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := fakesessionstore.NewFakeSessionStore(time.Hour)
	store.SetClock(func() time.Time { return now })

	s, err := store.Create(ctx, testCreds("user-1"))
	require.NoError(t, err)
	require.True(t, s.ExpiresAt.After(s.CreatedAt))
	require.Equal(t, sessions.NotStarted, s.OnboardingState)
	require.Empty(t, s.TenantID)

	got, err := store.Validate(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, s.ID, got.ID)
	require.Equal(t, "access-user-1", got.AccessToken)

	refreshed, err := store.Refresh(ctx, s.ID, 4)
	require.NoError(t, err)
	require.Equal(t, s.ID, refreshed.ID)
	require.Equal(t, now.Add(4*time.Hour), refreshed.ExpiresAt)

	require.NoError(t, store.Destroy(ctx, s.ID))
	require.NoError(t, store.Destroy(ctx, s.ID), "destroy is idempotent")

	_, err = store.Validate(ctx, s.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestFakeSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := fakesessionstore.NewFakeSessionStore(time.Minute)
	store.SetClock(func() time.Time { return now })

	s, err := store.Create(ctx, testCreds("user-1"))
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Validate(ctx, s.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	list, err := store.ListActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, list)

	swept, err := store.SweepExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, swept)
	require.Zero(t, store.Len())
}

func TestFakeSessionStore_ProgressIsPerUser(t *testing.T) {
	ctx := context.Background()
	store := fakesessionstore.NewFakeSessionStore(time.Hour)

	first, err := store.Create(ctx, testCreds("user-1"))
	require.NoError(t, err)
	_, err = store.UpdateOnboarding(ctx, first.ID, sessions.NotStarted, sessions.BusinessInfo, "")
	require.NoError(t, err)
	_, err = store.UpdateOnboarding(ctx, first.ID, sessions.BusinessInfo, sessions.Subscription, "tenant-1")
	require.NoError(t, err)

	second, err := store.Create(ctx, testCreds("user-1"))
	require.NoError(t, err)
	require.Equal(t, sessions.Subscription, second.OnboardingState)
	require.Equal(t, "tenant-1", second.TenantID)

	other, err := store.Create(ctx, testCreds("user-2"))
	require.NoError(t, err)
	require.Equal(t, sessions.NotStarted, other.OnboardingState)

	list, err := store.ListActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	t.Run("lost compare and set", func(t *testing.T) {
		_, err := store.UpdateOnboarding(ctx, second.ID, sessions.NotStarted, sessions.BusinessInfo, "")
		require.ErrorIs(t, err, errors.ErrInvalidOnboardingTransition)
	})

	t.Run("admin reset", func(t *testing.T) {
		reset, err := store.ResetOnboarding(ctx, first.ID, sessions.NotStarted)
		require.NoError(t, err)
		require.Equal(t, sessions.NotStarted, reset.OnboardingState)
		require.Empty(t, reset.TenantID)
	})
}

func TestFakeSessionStore_Failures(t *testing.T) {
	ctx := context.Background()
	store := fakesessionstore.NewFakeSessionStore(time.Hour)

	_, err := store.Create(ctx, sessions.Credentials{UserID: "user-1"})
	require.ErrorIs(t, err, errors.ErrAuthentication)

	s, err := store.Create(ctx, testCreds("user-1"))
	require.NoError(t, err)

	store.FailWith("destroy", errors.ErrStoreUnavailable)
	require.ErrorIs(t, store.Destroy(ctx, s.ID), errors.ErrStoreUnavailable)
	store.FailWith("destroy", nil)
	require.NoError(t, store.Destroy(ctx, s.ID))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Validate(cancelled, s.ID)
	require.ErrorIs(t, err, errors.ErrStoreUnavailable)
}
