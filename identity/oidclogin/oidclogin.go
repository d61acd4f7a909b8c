// Package oidclogin signs users in through an external OpenID Connect provider
// using the authorization code flow with PKCE.
package oidclogin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/school-console/identity"
	"github.com/jrsteele09/school-console/internal/config"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultFlowTTL = 10 * time.Minute

// TokenIssuer issues session tokens for signed-in users.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// flowState is kept between the redirect to the provider and the callback.
type flowState struct {
	codeVerifier string
	nonce        string
	createdAt    time.Time
}

type Client struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	users    *users.Repo
	tokens   TokenIssuer
	flowTTL  time.Duration
	nowTime  func() time.Time
	log      zerolog.Logger

	mu    sync.Mutex
	flows map[string]flowState
}

type Option func(*Client)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// WithLogger sets the logger (defaults to the global logger)
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithFlowTTL bounds how long a started sign in may take.
func WithFlowTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.flowTTL = ttl
	}
}

// New discovers the provider named by cfg.
func New(ctx context.Context, cfg config.OIDCConfig, repo *users.Repo, tokens TokenIssuer, options ...Option) (*Client, error) {
	if !cfg.OIDCEnabled() {
		return nil, errors.New("[oidclogin.New] OIDC is not configured")
	}
	provider, err := oidc.NewProvider(ctx, cfg.GetOIDCIssuer())
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GetOIDCClientID(),
		ClientSecret: cfg.GetOIDCClientSecret(),
		RedirectURL:  cfg.GetOIDCRedirectURL(),
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email"},
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.GetOIDCClientID()})
	return NewWithVerifier(oauthCfg, verifier, repo, tokens, options...)
}

// NewWithVerifier builds a client from an explicit OAuth2 config and ID token verifier.
func NewWithVerifier(oauthCfg *oauth2.Config, verifier *oidc.IDTokenVerifier, repo *users.Repo, tokens TokenIssuer, options ...Option) (*Client, error) {
	if oauthCfg == nil || verifier == nil || repo == nil || tokens == nil {
		return nil, errors.New("[oidclogin.NewWithVerifier] oauth config, verifier, users and tokens are required")
	}
	c := &Client{
		oauth:    oauthCfg,
		verifier: verifier,
		users:    repo,
		tokens:   tokens,
		flowTTL:  defaultFlowTTL,
		nowTime:  time.Now,
		log:      log.Logger,
		flows:    make(map[string]flowState),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// AuthCodeURL starts a sign in and returns the provider URL to redirect to.
func (c *Client) AuthCodeURL() (string, error) {
	state, err := randomString()
	if err != nil {
		return "", err
	}
	nonce, err := randomString()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	c.mu.Lock()
	c.sweep()
	c.flows[state] = flowState{codeVerifier: verifier, nonce: nonce, createdAt: c.nowTime()}
	c.mu.Unlock()

	return c.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier), oidc.Nonce(nonce)), nil
}

// Exchange completes a sign in: it redeems code, verifies the ID token and its
// nonce, and issues a session token for the matching account.
func (c *Client) Exchange(ctx context.Context, state, code string) (*identity.Identity, error) {
	if state == "" || code == "" {
		return nil, apperrors.NewValidationError("missing code or state", "code", "state")
	}

	c.mu.Lock()
	flow, ok := c.flows[state]
	delete(c.flows, state)
	c.mu.Unlock()
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "unknown state")
	}
	if c.nowTime().Sub(flow.createdAt) > c.flowTTL {
		return nil, apperrors.Wrapf(apperrors.ErrTokenExpired, "sign in flow")
	}

	oauthToken, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(flow.codeVerifier))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "token exchange failed: %v", err)
	}
	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "no id_token in token response")
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "id token verification failed: %v", err)
	}

	var claims struct {
		Nonce         string `json:"nonce"`
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "failed to extract claims: %v", err)
	}
	if claims.Nonce != flow.nonce {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "invalid nonce")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "email not verified")
	}

	account, err := c.users.EnsureAccount(ctx, claims.Email)
	if err != nil {
		return nil, err
	}
	token, err := c.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("subject", idToken.Subject).Str("user_id", account.ID).Msg("oidc sign in")
	return &identity.Identity{UserID: account.ID, Email: account.Email, Token: token}, nil
}

// sweep drops abandoned flows. Callers hold c.mu.
func (c *Client) sweep() {
	now := c.nowTime()
	for state, flow := range c.flows {
		if now.Sub(flow.createdAt) > c.flowTTL {
			delete(c.flows, state)
		}
	}
}

func randomString() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random string: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
