package users

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/internal/utils"
	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/tenants"
)

// Repo reads and provisions accounts and profiles. Profiles are read-only to the
// console itself; Grant exists for the provisioning command.
type Repo struct {
	store store.Store
}

func NewRepo(st store.Store) *Repo {
	return &Repo{store: st}
}

// AccountByEmail returns the account for email or ErrNotFound.
func (r *Repo) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	email, ok := NormalizeEmail(email)
	if !ok {
		return nil, apperrors.NewValidationError("invalid email", FieldEmail)
	}
	rows, err := r.store.Find(ctx, AccountCollection, store.Eq(FieldEmail, email), store.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "account %s", email)
	}
	a, err := DecodeAccount(rows[0])
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// EnsureAccount returns the account for email, creating it on first use.
func (r *Repo) EnsureAccount(ctx context.Context, email string) (*Account, error) {
	a, err := r.AccountByEmail(ctx, email)
	if err == nil {
		return a, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	normalized, _ := NormalizeEmail(email)
	row, err := r.store.Insert(ctx, AccountCollection, store.Row{FieldEmail: normalized})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	created, err := DecodeAccount(row)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Profiles returns every profile row stored for userID. More than one is a
// data-integrity violation the caller must surface.
func (r *Repo) Profiles(ctx context.Context, userID string) ([]Profile, error) {
	rows, err := r.store.Find(ctx, ProfileCollection, store.Eq(store.FieldID, userID))
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(rows))
	for _, row := range rows {
		p, err := DecodeProfile(row)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Grant creates or replaces the profile for userID. Staff must name an existing
// tenant; super admins are never bound to one.
func (r *Repo) Grant(ctx context.Context, userID string, role RoleType, tenantID string) (*Profile, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required", store.FieldID)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown role %q", role), FieldRole)
	}

	var tenant *string
	switch role {
	case RoleStaff:
		if tenantID == "" {
			return nil, apperrors.NewValidationError("staff requires a tenant", FieldTenantID)
		}
		rows, err := r.store.Find(ctx, tenants.Collection, store.Eq(store.FieldID, tenantID), store.Limit(1))
		if err != nil {
			return nil, fmt.Errorf("find tenant: %w", err)
		}
		if len(rows) == 0 {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "tenant %s", tenantID)
		}
		tenant = utils.Ptr(tenantID)
	case RoleSuperAdmin:
		if tenantID != "" {
			return nil, apperrors.NewValidationError("super admin cannot be bound to a tenant", FieldTenantID)
		}
	}

	existing, err := r.Profiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}

	var row store.Row
	if len(existing) == 0 {
		row, err = r.store.Insert(ctx, ProfileCollection, store.Row{
			store.FieldID: userID,
			FieldRole:     string(role),
			FieldTenantID: store.NullString(tenant),
		})
	} else {
		row, err = r.store.Update(ctx, ProfileCollection, store.Eq(store.FieldID, userID), store.Row{
			FieldRole:     string(role),
			FieldTenantID: store.NullString(tenant),
		})
	}
	if err != nil {
		return nil, apperrors.WriteFailed(err)
	}
	p, err := DecodeProfile(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
