package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-gateway/internal/apiclient"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"got": in["name"], "method": r.Method})
		case "/missing":
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL+"/", 100*time.Millisecond)
	ctx := context.Background()

	t.Run("json round trip", func(t *testing.T) {
		var out map[string]string
		err := c.Do(ctx, http.MethodPost, "/echo", map[string]string{"name": "x"}, &out)
		require.NoError(t, err)
		require.Equal(t, "x", out["got"])
		require.Equal(t, http.MethodPost, out["method"])
	})

	t.Run("status error", func(t *testing.T) {
		err := c.Do(ctx, http.MethodGet, "/missing", nil, nil)
		require.Error(t, err)
		require.Equal(t, http.StatusNotFound, apiclient.StatusCode(err))
		require.False(t, apiclient.IsTransient(err))
	})

	t.Run("5xx is transient", func(t *testing.T) {
		err := c.Do(ctx, http.MethodGet, "/broken", nil, nil)
		require.True(t, apiclient.IsTransient(err))
	})

	t.Run("timeout is transient", func(t *testing.T) {
		err := c.Do(ctx, http.MethodGet, "/slow", nil, nil)
		require.ErrorIs(t, err, errors.ErrBackendUnavailable)
		require.True(t, apiclient.IsTransient(err))
	})
}

func TestClient_ServiceCredentials(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			tokenCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"svc-token","token_type":"bearer","expires_in":3600}`))
		case "/whoami":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"auth": r.Header.Get("Authorization")})
		}
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL, time.Second, apiclient.WithServiceCredentials(apiclient.ServiceCredentials{
		ClientID:     "gateway",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/token",
	}))

	for i := 0; i < 2; i++ {
		var out map[string]string
		require.NoError(t, c.Do(context.Background(), http.MethodGet, "/whoami", nil, &out))
		require.Equal(t, "Bearer svc-token", out["auth"])
	}
	require.Equal(t, int32(1), tokenCalls.Load(), "token is cached until expiry")
}
