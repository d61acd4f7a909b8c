package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jrsteele09/school-console/auth"
	"github.com/jrsteele09/school-console/identity/magiclink"
	"github.com/jrsteele09/school-console/identity/oidclogin"
	"github.com/jrsteele09/school-console/identity/sessiontoken"
	"github.com/jrsteele09/school-console/internal/config"
	"github.com/jrsteele09/school-console/server"
	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/store/bunstore"
	"github.com/jrsteele09/school-console/store/memstore"
	"github.com/jrsteele09/school-console/users"
	"github.com/rs/zerolog/log"
)

// stack is the set of collaborators the server is assembled from.
type stack struct {
	store    store.Store
	users    *users.Repo
	resolver *auth.Resolver
	tokens   *sessiontoken.Manager
	links    *magiclink.Service
	oidc     *oidclogin.Client
	close    func()
}

func openStore(ctx context.Context, c config.EnvConfig) (store.Store, func(), error) {
	dsn := c.GetDatabaseURL()
	if dsn == config.MemoryDatabaseURL {
		log.Warn().Msg("using the in-memory store, data is lost on exit")
		return memstore.New(), func() {}, nil
	}
	st, err := bunstore.Open(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Info().Str("type", string(bunstore.DetectDatabaseType(dsn))).Msg("connected to database")
	return st, func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}, nil
}

func sessionSecret(c config.Config) (string, error) {
	if secret := c.GetSessionSecret(); secret != "" {
		return secret, nil
	}
	if !c.IsDev() {
		return "", errors.New("SESSION_SECRET is required outside DEV")
	}
	b := make([]byte, sessiontoken.MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	log.Warn().Msg("SESSION_SECRET not set, using a random secret; sign-ins will not survive a restart")
	return hex.EncodeToString(b), nil
}

func buildStack(ctx context.Context, c config.Config) (*stack, error) {
	st, closeStore, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	s := &stack{store: st, users: users.NewRepo(st), close: closeStore}

	if s.resolver, err = auth.NewResolver(st); err != nil {
		closeStore()
		return nil, err
	}

	secret, err := sessionSecret(c)
	if err != nil {
		closeStore()
		return nil, err
	}
	if s.tokens, err = sessiontoken.NewManager(secret, c.GetAppName(), c.GetSessionMaxAge()); err != nil {
		closeStore()
		return nil, err
	}

	mailer := magiclink.LogMailer{Log: log.Logger}
	if !c.IsDev() {
		log.Warn().Msg("no mail transport configured, magic links are written to the log")
	}
	if s.links, err = magiclink.NewService(s.users, s.tokens, mailer, c.GetBaseURL()+"/verify", c.GetMagicLinkTTL()); err != nil {
		closeStore()
		return nil, err
	}

	if c.OIDCEnabled() {
		if s.oidc, err = oidclogin.New(ctx, c, s.users, s.tokens); err != nil {
			closeStore()
			return nil, err
		}
		log.Info().Str("issuer", c.GetOIDCIssuer()).Msg("OIDC sign in enabled")
	}
	return s, nil
}

func (s *stack) newServer(c config.Config) (*server.Server, error) {
	return server.New(c, server.Deps{
		Store:    s.store,
		Resolver: s.resolver,
		Tokens:   s.tokens,
		Links:    s.links,
		OIDC:     s.oidc,
	})
}

// ensureSuperAdmin grants the super admin role to email unless the account
// already has a profile.
func ensureSuperAdmin(ctx context.Context, repo *users.Repo, email string) error {
	if email == "" {
		return nil
	}
	account, err := repo.EnsureAccount(ctx, email)
	if err != nil {
		return fmt.Errorf("bootstrap super admin: %w", err)
	}
	profiles, err := repo.Profiles(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("bootstrap super admin: %w", err)
	}
	if len(profiles) > 0 {
		if !profiles[0].IsSuperAdmin() {
			log.Warn().Str("email", account.Email).Str("role", string(profiles[0].Role)).Msg("SUPER_ADMIN_EMAIL has another role, leaving it unchanged")
		}
		return nil
	}
	if _, err := repo.Grant(ctx, account.ID, users.RoleSuperAdmin, ""); err != nil {
		return fmt.Errorf("bootstrap super admin: %w", err)
	}
	log.Info().Str("email", account.Email).Msg("created super admin")
	return nil
}
