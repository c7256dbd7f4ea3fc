// Package identity turns identity provider results into session credentials.
package identity

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"golang.org/x/oauth2"
)

// LoginRequest is the body of POST /session. A client either presents the
// tokens it already holds or an authorization code to exchange.
type LoginRequest struct {
	IDToken      string `json:"id_token" validate:"required_without=Code"`
	AccessToken  string `json:"access_token" validate:"required_with=IDToken"`
	RefreshToken string `json:"refresh_token"`
	Code         string `json:"code" validate:"required_without=IDToken"`
	CodeVerifier string `json:"code_verifier" validate:"required_with=Code"`
	Nonce        string `json:"nonce,omitempty"` // Checked against the ID token when set
}

type Authenticator interface {
	Authenticate(ctx context.Context, req LoginRequest) (sessions.Credentials, error)
}

// Redirector starts a browser authorization code flow.
type Redirector interface {
	AuthCodeURL(state, codeVerifier, nonce string) (string, error)
}

var (
	_ Authenticator = (*Provider)(nil)
	_ Redirector    = (*Provider)(nil)
)

// Provider verifies ID tokens against an OIDC issuer and exchanges
// authorization codes at its token endpoint.
type Provider struct {
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
}

// New runs OIDC discovery against issuer.
func New(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "oidc discovery for %s", issuer)
	}
	return NewWithVerifier(
		provider.Verifier(&oidc.Config{ClientID: clientID}),
		&oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
	), nil
}

// NewWithVerifier builds a Provider from parts, e.g. a verifier over a static key set.
func NewWithVerifier(verifier *oidc.IDTokenVerifier, oauth *oauth2.Config) *Provider {
	return &Provider{verifier: verifier, oauth: oauth}
}

// Authenticate verifies issuer, audience, expiry and signature of the ID
// token. Every verification failure is ErrAuthentication.
func (p *Provider) Authenticate(ctx context.Context, req LoginRequest) (sessions.Credentials, error) {
	if req.Code != "" {
		return p.exchange(ctx, req)
	}
	if req.IDToken == "" || req.AccessToken == "" {
		return sessions.Credentials{}, errors.Wrapf(errors.ErrAuthentication, "missing tokens")
	}
	return p.verify(ctx, req.IDToken, req.AccessToken, req.RefreshToken, req.Nonce)
}

// AuthCodeURL is the identity provider URL a browser is sent to. The PKCE
// challenge is derived from codeVerifier with S256.
func (p *Provider) AuthCodeURL(state, codeVerifier, nonce string) (string, error) {
	if p.oauth == nil {
		return "", errors.Wrapf(errors.ErrAuthentication, "authorization code flow not configured")
	}
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(codeVerifier), oidc.Nonce(nonce)), nil
}

func (p *Provider) exchange(ctx context.Context, req LoginRequest) (sessions.Credentials, error) {
	if p.oauth == nil {
		return sessions.Credentials{}, errors.Wrapf(errors.ErrAuthentication, "code exchange not configured")
	}
	token, err := p.oauth.Exchange(ctx, req.Code, oauth2.SetAuthURLParam("code_verifier", req.CodeVerifier))
	if err != nil {
		return sessions.Credentials{}, errors.Wrapf(errors.ErrAuthentication, "token exchange: %s", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return sessions.Credentials{}, errors.Wrapf(errors.ErrAuthentication, "no id token in response")
	}
	return p.verify(ctx, rawIDToken, token.AccessToken, token.RefreshToken, req.Nonce)
}

func (p *Provider) verify(ctx context.Context, rawIDToken, accessToken, refreshToken, nonce string) (sessions.Credentials, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return sessions.Credentials{}, errors.Wrapf(errors.ErrAuthentication, "id token: %s", err)
	}

	var claims struct {
		Nonce string `json:"nonce"`
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return sessions.Credentials{}, errors.Wrapf(errors.ErrAuthentication, "id token claims: %s", err)
	}
	if claims.Sub == "" {
		return sessions.Credentials{}, errors.Wrapf(errors.ErrAuthentication, "id token has no subject")
	}
	// Validate nonce to prevent replay attacks
	if nonce != "" && claims.Nonce != nonce {
		return sessions.Credentials{}, errors.Wrapf(errors.ErrAuthentication, "nonce mismatch")
	}

	return sessions.Credentials{
		UserID:       claims.Sub,
		Email:        claims.Email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
