// Package scoped is the single access path to tenant-owned data. A Gateway is
// bound to one tenant for its whole life and adds that tenant to every filter
// and every write.
package scoped

import (
	"context"

	"github.com/jrsteele09/school-console/auth"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/students"
	"github.com/jrsteele09/school-console/tenants"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Gateway struct {
	store    store.Store
	tenantID string
	log      zerolog.Logger
}

type Option func(*Gateway)

// WithLogger sets the logger (defaults to the global logger)
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = l
	}
}

// New binds a gateway to b. A zero binding is refused.
func New(st store.Store, b auth.Binding, options ...Option) (*Gateway, error) {
	if b.IsZero() {
		return nil, apperrors.ErrNoTenantBound
	}
	g := &Gateway{store: st, tenantID: b.TenantID(), log: log.Logger}
	for _, opt := range options {
		opt(g)
	}
	g.log = g.log.With().Str("tenant_id", g.tenantID).Logger()
	return g, nil
}

// TenantID returns the bound tenant.
func (g *Gateway) TenantID() string {
	return g.tenantID
}

// ListRecords returns the bound tenant's records, newest first. Each call is a
// fresh snapshot.
func (g *Gateway) ListRecords(ctx context.Context) ([]students.Record, error) {
	rows, err := g.store.Find(ctx, students.Collection,
		store.Eq(students.FieldTenantID, g.tenantID), store.Newest())
	if err != nil {
		return nil, apperrors.Wrapf(err, "list records")
	}
	records, err := students.DecodeAll(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.TenantID != g.tenantID {
			g.log.Error().Str("record_id", r.ID).Str("record_tenant_id", r.TenantID).Msg("store returned a foreign record")
			return nil, apperrors.Wrapf(apperrors.ErrForbidden, "record %s belongs to another tenant", r.ID)
		}
	}
	return records, nil
}

// CreateRecord validates fields and inserts a record owned by the bound tenant.
// Any tenant id in fields is ignored.
func (g *Gateway) CreateRecord(ctx context.Context, fields students.Fields) (students.Record, error) {
	if err := fields.Validate(); err != nil {
		return students.Record{}, err
	}
	if fields.TenantID != "" && fields.TenantID != g.tenantID {
		g.log.Warn().Str("requested_tenant_id", fields.TenantID).Msg("ignoring tenant id from record input")
	}

	row, err := g.store.Insert(ctx, students.Collection, fields.Row(g.tenantID))
	if err != nil {
		g.log.Error().Err(err).Msg("create record failed")
		return students.Record{}, apperrors.WriteFailed(err)
	}
	rec, err := students.Decode(row)
	if err != nil {
		return students.Record{}, apperrors.WriteFailed(err)
	}
	return rec, nil
}

// TenantProfile reads the bound tenant.
func (g *Gateway) TenantProfile(ctx context.Context) (tenants.Tenant, error) {
	rows, err := g.store.Find(ctx, tenants.Collection, store.Eq(store.FieldID, g.tenantID), store.Limit(1))
	if err != nil {
		return tenants.Tenant{}, apperrors.Wrapf(err, "read tenant profile")
	}
	if len(rows) == 0 {
		return tenants.Tenant{}, apperrors.Wrapf(apperrors.ErrNotFound, "tenant %s", g.tenantID)
	}
	return tenants.Decode(rows[0])
}

// UpdateTenantProfile replaces the bound tenant's institutional fields. It never
// changes the id or the active flag.
func (g *Gateway) UpdateTenantProfile(ctx context.Context, profile tenants.Profile) (tenants.Tenant, error) {
	profile = profile.Trimmed()
	if profile.Name == "" {
		return tenants.Tenant{}, apperrors.NewValidationError("required", tenants.FieldName)
	}

	row, err := g.store.Update(ctx, tenants.Collection, store.Eq(store.FieldID, g.tenantID), profile.Patch())
	if err != nil {
		g.log.Error().Err(err).Msg("update tenant profile failed")
		return tenants.Tenant{}, apperrors.WriteFailed(err)
	}
	t, err := tenants.Decode(row)
	if err != nil {
		return tenants.Tenant{}, apperrors.WriteFailed(err)
	}
	return t, nil
}
