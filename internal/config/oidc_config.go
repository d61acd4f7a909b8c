package config

const (
	oidcIssuerVar       = "OIDC_ISSUER"
	oidcClientIDVar     = "OIDC_CLIENT_ID"
	oidcClientSecretVar = "OIDC_CLIENT_SECRET"
	oidcRedirectURLVar  = "OIDC_REDIRECT_URL"
)

// OIDCConfig describes the optional external identity provider.
// When GetOIDCIssuer is empty only magic-link sign in is available.
type OIDCConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURL() string
	OIDCEnabled() bool
}

type OIDC struct {
	src *source
}

var _ OIDCConfig = OIDC{}

func (o OIDC) GetOIDCIssuer() string {
	return o.src.get(oidcIssuerVar, "")
}

func (o OIDC) GetOIDCClientID() string {
	return o.src.get(oidcClientIDVar, "")
}

func (o OIDC) GetOIDCClientSecret() string {
	return o.src.get(oidcClientSecretVar, "")
}

// GetOIDCRedirectURL defaults to the callback route under BASE_URL.
func (o OIDC) GetOIDCRedirectURL() string {
	return o.src.get(oidcRedirectURLVar, EnvVars{src: o.src}.GetBaseURL()+"/auth/oidc/callback")
}

func (o OIDC) OIDCEnabled() bool {
	return o.GetOIDCIssuer() != "" && o.GetOIDCClientID() != ""
}
