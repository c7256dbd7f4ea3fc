package config

const (
	oidcIssuerVar       = "OIDC_ISSUER"
	oidcClientIDVar     = "OIDC_CLIENT_ID"
	oidcClientSecretVar = "OIDC_CLIENT_SECRET"
	oidcRedirectURLVar  = "OIDC_REDIRECT_URL"
)

type IdentityConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURL() string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetOIDCIssuer() string {
	return GetEnv(oidcIssuerVar, "")
}

func (Identity) GetOIDCClientID() string {
	return GetEnv(oidcClientIDVar, "")
}

func (Identity) GetOIDCClientSecret() string {
	return GetEnv(oidcClientSecretVar, "")
}

func (Identity) GetOIDCRedirectURL() string {
	return GetEnv(oidcRedirectURLVar, "http://localhost:8080/callback")
}
