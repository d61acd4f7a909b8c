// Package auth resolves an authenticated identity to its role and tenant.
package auth

import (
	"context"

	"github.com/jrsteele09/school-console/identity"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/internal/utils"
	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/tenants"
	"github.com/jrsteele09/school-console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resolver maps identities to resolutions. It holds no per-identity state and
// is safe to call repeatedly and concurrently.
type Resolver struct {
	store store.Store
	users *users.Repo
	log   zerolog.Logger
}

type ResolverOption func(*Resolver)

// WithLogger sets the logger (defaults to the global logger)
func WithLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = l
	}
}

func NewResolver(st store.Store, options ...ResolverOption) (*Resolver, error) {
	if st == nil {
		return nil, errors.New("[NewResolver] store is required")
	}
	r := &Resolver{
		store: st,
		users: users.NewRepo(st),
		log:   log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Resolve looks up the identity's single user profile.
//
// A missing, duplicated or broken profile yields ErrUnresolved. A staff profile
// whose tenant is missing or inactive also yields ErrUnresolved. Lookup failures
// yield ErrResolutionFailed carrying the cause.
func (r *Resolver) Resolve(ctx context.Context, id *identity.Identity) (Resolution, error) {
	if id == nil || id.UserID == "" {
		return Resolution{}, apperrors.Wrapf(apperrors.ErrUnresolved, "no identity")
	}
	logger := r.log.With().Str("user_id", id.UserID).Logger()

	profiles, err := r.users.Profiles(ctx, id.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("profile lookup failed")
		return Resolution{}, apperrors.ResolutionFailed(errors.Wrap(err, "[Resolve] profile lookup"))
	}

	switch len(profiles) {
	case 0:
		logger.Warn().Msg("no user profile")
		return Resolution{}, apperrors.Wrapf(apperrors.ErrUnresolved, "no profile for user %s", id.UserID)
	case 1:
	default:
		logger.Error().Int("profiles", len(profiles)).Msg("duplicate user profiles")
		return Resolution{}, apperrors.Wrapf(apperrors.ErrUnresolved, "%d profiles for user %s", len(profiles), id.UserID)
	}
	profile := profiles[0]

	switch profile.Role {
	case users.RoleSuperAdmin:
		logger.Debug().Str("role", string(profile.Role)).Msg("identity resolved")
		return Resolution{UserID: id.UserID, role: users.RoleSuperAdmin}, nil

	case users.RoleStaff:
		tenantID := utils.Value(profile.TenantID)
		if tenantID == "" {
			logger.Error().Msg("staff profile without tenant")
			return Resolution{}, apperrors.Wrapf(apperrors.ErrUnresolved, "staff profile %s has no tenant", id.UserID)
		}
		if err := r.checkTenant(ctx, tenantID); err != nil {
			logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tenant check failed")
			return Resolution{}, err
		}
		logger.Debug().Str("role", string(profile.Role)).Str("tenant_id", tenantID).Msg("identity resolved")
		return Resolution{UserID: id.UserID, role: users.RoleStaff, tenantID: tenantID}, nil

	default:
		logger.Error().Str("role", string(profile.Role)).Msg("unknown role")
		return Resolution{}, apperrors.Wrapf(apperrors.ErrUnresolved, "unknown role %q", profile.Role)
	}
}

func (r *Resolver) checkTenant(ctx context.Context, tenantID string) error {
	rows, err := r.store.Find(ctx, tenants.Collection, store.Eq(store.FieldID, tenantID), store.Limit(1))
	if err != nil {
		return apperrors.ResolutionFailed(errors.Wrap(err, "[Resolve] tenant lookup"))
	}
	if len(rows) == 0 {
		return apperrors.Wrapf(apperrors.ErrUnresolved, "tenant %s does not exist", tenantID)
	}
	t, err := tenants.Decode(rows[0])
	if err != nil {
		return apperrors.ResolutionFailed(errors.Wrap(err, "[Resolve] tenant decode"))
	}
	if !t.Active {
		return apperrors.Wrapf(apperrors.ErrUnresolved, "tenant %s is inactive", tenantID)
	}
	return nil
}
