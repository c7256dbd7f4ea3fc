// Package storeclient talks to the backend's authoritative session API.
package storeclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/go-session-gateway/internal/apiclient"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

var _ sessions.Store = (*Client)(nil)

// validateTries is the first attempt plus one retry.
const validateTries = 2

// Client implements sessions.Store over HTTP. Validate is retried once on a
// transient failure; Create is never retried so a lost response can not
// leave two sessions behind.
type Client struct {
	api          *apiclient.Client
	retryInitial time.Duration
}

type Option func(*Client)

// WithRetryInterval sets the pause before the Validate retry.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.retryInitial = d
	}
}

func New(api *apiclient.Client, opts ...Option) *Client {
	c := &Client{api: api, retryInitial: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireSession is the backend representation, which carries the tokens.
type wireSession struct {
	ID              string                   `json:"id"`
	UserID          string                   `json:"user_id"`
	Email           string                   `json:"email"`
	AccessToken     string                   `json:"access_token"`
	RefreshToken    string                   `json:"refresh_token,omitempty"`
	TenantID        string                   `json:"tenant_id,omitempty"`
	OnboardingState sessions.OnboardingState `json:"onboarding_state"`
	CreatedAt       time.Time                `json:"created_at"`
	LastActivityAt  time.Time                `json:"last_activity_at"`
	ExpiresAt       time.Time                `json:"expires_at"`
	ClientMeta      sessions.ClientMeta      `json:"client_meta"`
}

func (w *wireSession) session() *sessions.Session {
	return &sessions.Session{
		ID:              w.ID,
		UserID:          w.UserID,
		Email:           w.Email,
		AccessToken:     w.AccessToken,
		RefreshToken:    w.RefreshToken,
		TenantID:        w.TenantID,
		OnboardingState: w.OnboardingState,
		CreatedAt:       w.CreatedAt,
		LastActivityAt:  w.LastActivityAt,
		ExpiresAt:       w.ExpiresAt,
		ClientMeta:      w.ClientMeta,
	}
}

type refreshRequest struct {
	ExtendByHours int `json:"extend_by_hours"`
}

type onboardingRequest struct {
	From     sessions.OnboardingState `json:"from"`
	To       sessions.OnboardingState `json:"to"`
	TenantID string                   `json:"tenant_id,omitempty"`
}

type resetRequest struct {
	To sessions.OnboardingState `json:"to"`
}

func (c *Client) Create(ctx context.Context, creds sessions.Credentials) (*sessions.Session, error) {
	var out wireSession
	err := c.call(ctx, "create", http.MethodPost, "/sessions", creds, &out)
	if err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *Client) Validate(ctx context.Context, sessionID string) (*sessions.Session, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.MaxInterval = 5 * c.retryInitial

	session, err := backoff.Retry(ctx, func() (*sessions.Session, error) {
		var out wireSession
		err := c.call(ctx, "validate", http.MethodGet, sessionPath(sessionID), nil, &out)
		if err == nil {
			return out.session(), nil
		}
		if errors.Is(err, errors.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(validateTries))
	if err != nil && ctx.Err() != nil && !errors.Is(err, errors.ErrStoreUnavailable) {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "validate: %s", err)
	}
	return session, err
}

func (c *Client) Refresh(ctx context.Context, sessionID string, extendByHours int) (*sessions.Session, error) {
	var out wireSession
	err := c.call(ctx, "refresh", http.MethodPost, sessionPath(sessionID)+"/refresh", refreshRequest{ExtendByHours: extendByHours}, &out)
	if err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *Client) Destroy(ctx context.Context, sessionID string) error {
	err := c.call(ctx, "destroy", http.MethodDelete, sessionPath(sessionID), nil, nil)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (c *Client) ListActiveForUser(ctx context.Context, userID string) ([]sessions.Summary, error) {
	var out []sessions.Summary
	err := c.call(ctx, "list", http.MethodGet, "/users/"+url.PathEscape(userID)+"/sessions", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateOnboarding(ctx context.Context, sessionID string, from, to sessions.OnboardingState, tenantID string) (*sessions.Session, error) {
	var out wireSession
	in := onboardingRequest{From: from, To: to, TenantID: tenantID}
	if err := c.call(ctx, "update_onboarding", http.MethodPost, sessionPath(sessionID)+"/onboarding", in, &out); err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *Client) ResetOnboarding(ctx context.Context, sessionID string, to sessions.OnboardingState) (*sessions.Session, error) {
	var out wireSession
	if err := c.call(ctx, "reset_onboarding", http.MethodPost, sessionPath(sessionID)+"/onboarding/reset", resetRequest{To: to}, &out); err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	err := mapError(op, c.api.Do(ctx, method, path, in, out))
	metrics.RecordStore(op, resultLabel(err), time.Since(start).Seconds())
	return err
}

func sessionPath(sessionID string) string {
	return "/sessions/" + url.PathEscape(sessionID)
}

// mapError converts transport outcomes into the store's error contract.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apiclient.IsTransient(err) {
		return errors.Wrapf(errors.ErrStoreUnavailable, "%s: %s", op, err)
	}
	switch apiclient.StatusCode(err) {
	case http.StatusNotFound, http.StatusGone:
		return errors.Wrapf(errors.ErrSessionNotFound, "%s", op)
	case http.StatusUnauthorized, http.StatusForbidden:
		if op == "create" {
			return errors.Wrapf(errors.ErrAuthentication, "%s", op)
		}
		return errors.Wrapf(errors.ErrSessionNotFound, "%s: session rejected", op)
	case http.StatusConflict:
		return errors.Wrapf(errors.ErrInvalidOnboardingTransition, "%s", op)
	case 0:
		// Context cancellation or an encoding failure before any response.
		return errors.Wrapf(errors.ErrStoreUnavailable, "%s: %s", op, err)
	}
	return errors.Wrapf(errors.ErrInvalidRequest, "%s: %s", op, err)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrStoreUnavailable):
		return "unavailable"
	}
	return "error"
}
