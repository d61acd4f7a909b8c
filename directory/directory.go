// Package directory is the super admin's gateway to the tenant directory.
package directory

import (
	"context"
	"strings"

	"github.com/jrsteele09/school-console/auth"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/tenants"
	"github.com/jrsteele09/school-console/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Gateway performs tenant directory operations on behalf of one caller. Every
// operation checks the caller's role before touching the store.
type Gateway struct {
	store  store.Store
	caller auth.Resolution
	log    zerolog.Logger
}

type Option func(*Gateway)

// WithLogger sets the logger (defaults to the global logger)
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = l
	}
}

func New(st store.Store, caller auth.Resolution, options ...Option) *Gateway {
	g := &Gateway{store: st, caller: caller, log: log.Logger}
	for _, opt := range options {
		opt(g)
	}
	g.log = g.log.With().Str("user_id", caller.UserID).Logger()
	return g
}

func (g *Gateway) authorize(op string) error {
	if g.caller.IsSuperAdmin() {
		return nil
	}
	g.log.Warn().Str("op", op).Str("role", string(g.caller.Role())).Msg("directory access denied")
	return apperrors.Wrapf(apperrors.ErrForbidden, "%s requires %s", op, users.RoleSuperAdmin)
}

// ListTenants returns every tenant, newest first.
func (g *Gateway) ListTenants(ctx context.Context) ([]tenants.Tenant, error) {
	if err := g.authorize("list tenants"); err != nil {
		return nil, err
	}
	rows, err := g.store.Find(ctx, tenants.Collection, nil, store.Newest())
	if err != nil {
		return nil, apperrors.Wrapf(err, "list tenants")
	}
	return tenants.DecodeAll(rows)
}

// GetTenant returns one tenant or ErrNotFound.
func (g *Gateway) GetTenant(ctx context.Context, tenantID string) (tenants.Tenant, error) {
	if err := g.authorize("get tenant"); err != nil {
		return tenants.Tenant{}, err
	}
	return g.get(ctx, tenantID)
}

func (g *Gateway) get(ctx context.Context, tenantID string) (tenants.Tenant, error) {
	if strings.TrimSpace(tenantID) == "" {
		return tenants.Tenant{}, apperrors.NewValidationError("required", "tenant_id")
	}
	rows, err := g.store.Find(ctx, tenants.Collection, store.Eq(store.FieldID, tenantID), store.Limit(1))
	if err != nil {
		return tenants.Tenant{}, apperrors.Wrapf(err, "get tenant")
	}
	if len(rows) == 0 {
		return tenants.Tenant{}, apperrors.Wrapf(apperrors.ErrNotFound, "tenant %s", tenantID)
	}
	return tenants.Decode(rows[0])
}

// CreateTenant creates an active tenant. Blank names are rejected before any
// store call.
func (g *Gateway) CreateTenant(ctx context.Context, name string) (tenants.Tenant, error) {
	if err := g.authorize("create tenant"); err != nil {
		return tenants.Tenant{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return tenants.Tenant{}, apperrors.NewValidationError("required", tenants.FieldName)
	}

	row, err := g.store.Insert(ctx, tenants.Collection, tenants.NewRow(name))
	if err != nil {
		g.log.Error().Err(err).Msg("create tenant failed")
		return tenants.Tenant{}, apperrors.WriteFailed(err)
	}
	t, err := tenants.Decode(row)
	if err != nil {
		return tenants.Tenant{}, apperrors.WriteFailed(err)
	}
	g.log.Info().Str("tenant_id", t.ID).Msg("tenant created")
	return t, nil
}

// ToggleTenantActive flips a tenant's active flag. The update is conditional on
// the value just read, so two concurrent toggles cannot both apply. Existing
// records and already-open sessions are not affected.
func (g *Gateway) ToggleTenantActive(ctx context.Context, tenantID string) (tenants.Tenant, error) {
	if err := g.authorize("toggle tenant"); err != nil {
		return tenants.Tenant{}, err
	}

	current, err := g.get(ctx, tenantID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrValidation) {
			return tenants.Tenant{}, err
		}
		return tenants.Tenant{}, apperrors.WriteFailed(err)
	}

	row, err := g.store.Update(ctx, tenants.Collection,
		store.Eq(store.FieldID, tenantID).And(tenants.FieldActive, current.Active),
		store.Row{tenants.FieldActive: !current.Active})
	if err != nil {
		g.log.Error().Err(err).Str("tenant_id", tenantID).Msg("toggle tenant failed")
		return tenants.Tenant{}, apperrors.WriteFailed(err)
	}
	t, err := tenants.Decode(row)
	if err != nil {
		return tenants.Tenant{}, apperrors.WriteFailed(err)
	}
	g.log.Info().Str("tenant_id", t.ID).Bool("active", t.Active).Msg("tenant toggled")
	return t, nil
}

// Select binds the caller to an existing tenant for a tenant view.
func (g *Gateway) Select(ctx context.Context, tenantID string) (auth.Binding, error) {
	if err := g.authorize("select tenant"); err != nil {
		return auth.Binding{}, err
	}
	t, err := g.get(ctx, tenantID)
	if err != nil {
		return auth.Binding{}, err
	}
	return auth.BindSelected(g.caller, t)
}
