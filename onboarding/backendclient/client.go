// Package backendclient calls the business backend's onboarding API.
package backendclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-session-gateway/internal/apiclient"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/onboarding"
)

var _ onboarding.Backend = (*Client)(nil)

type Client struct {
	api *apiclient.Client
}

func New(api *apiclient.Client) *Client {
	return &Client{api: api}
}

type provisionRequest struct {
	OwnerUserID string `json:"owner_user_id"`
	Name        string `json:"name"`
	Country     string `json:"country,omitempty"`
}

type provisionResponse struct {
	ID string `json:"id"`
}

type planRequest struct {
	PlanID string `json:"plan_id"`
}

type paymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

type setupStatusResponse struct {
	Done bool `json:"done"`
}

func (c *Client) ProvisionTenant(ctx context.Context, userID string, info onboarding.BusinessInfo) (string, error) {
	var out provisionResponse
	in := provisionRequest{OwnerUserID: userID, Name: info.Name, Country: info.Country}
	if err := c.api.Do(ctx, http.MethodPost, "/tenants", in, &out); err != nil {
		return "", mapError("provision tenant", err)
	}
	if out.ID == "" {
		return "", errors.Wrapf(errors.ErrBackendUnavailable, "provision tenant: empty tenant id")
	}
	return out.ID, nil
}

func (c *Client) SelectPlan(ctx context.Context, tenantID, planID string) error {
	err := c.api.Do(ctx, http.MethodPut, tenantPath(tenantID)+"/plan", planRequest{PlanID: planID}, nil)
	return mapError("select plan", err)
}

func (c *Client) ConfirmPaymentMethod(ctx context.Context, tenantID, paymentMethodID string) error {
	err := c.api.Do(ctx, http.MethodPost, tenantPath(tenantID)+"/payment-methods", paymentMethodRequest{PaymentMethodID: paymentMethodID}, nil)
	return mapError("confirm payment method", err)
}

func (c *Client) StartSetup(ctx context.Context, tenantID string) error {
	return mapError("start setup", c.api.Do(ctx, http.MethodPost, tenantPath(tenantID)+"/setup", nil, nil))
}

func (c *Client) SetupStatus(ctx context.Context, tenantID string) (bool, error) {
	var out setupStatusResponse
	if err := c.api.Do(ctx, http.MethodGet, tenantPath(tenantID)+"/setup", nil, &out); err != nil {
		return false, mapError("setup status", err)
	}
	return out.Done, nil
}

func tenantPath(tenantID string) string {
	return "/tenants/" + url.PathEscape(tenantID)
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apiclient.IsTransient(err) {
		return errors.Wrapf(errors.ErrBackendUnavailable, "%s: %s", op, err)
	}
	switch apiclient.StatusCode(err) {
	case http.StatusNotFound:
		return errors.Wrapf(errors.ErrTenantNotFound, "%s", op)
	case http.StatusConflict:
		return errors.Wrapf(errors.ErrInvalidOnboardingTransition, "%s", op)
	case 0:
		return errors.Wrapf(errors.ErrBackendUnavailable, "%s: %s", op, err)
	}
	return errors.Wrapf(errors.ErrInvalidRequest, "%s: %s", op, err)
}
