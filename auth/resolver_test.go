package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/school-console/auth"
	"github.com/jrsteele09/school-console/identity"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/store/memstore"
	"github.com/jrsteele09/school-console/store/storetest"
	"github.com/jrsteele09/school-console/tenants"
	"github.com/jrsteele09/school-console/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	store    *storetest.Spy
	resolver *auth.Resolver
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	spy := storetest.NewSpy(memstore.New())
	r, err := auth.NewResolver(spy, auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return &testFixture{store: spy, resolver: r}
}

func (f *testFixture) tenant(t *testing.T, name string, active bool) string {
	t.Helper()
	row := tenants.NewRow(name)
	row[tenants.FieldActive] = active
	created, err := f.store.Inner.Insert(context.Background(), tenants.Collection, row)
	require.NoError(t, err)
	return created[store.FieldID].(string)
}

func (f *testFixture) profile(t *testing.T, userID string, role users.RoleType, tenantID any) {
	t.Helper()
	_, err := f.store.Inner.Insert(context.Background(), users.ProfileCollection, store.Row{
		store.FieldID:       userID,
		users.FieldRole:     string(role),
		users.FieldTenantID: tenantID,
	})
	require.NoError(t, err)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("super admin", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profile(t, "admin", users.RoleSuperAdmin, nil)

		res, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "admin"})
		require.NoError(t, err)
		require.True(t, res.IsSuperAdmin())
		_, bound := res.TenantID()
		require.False(t, bound)
		_, ok := res.Binding()
		require.False(t, ok)
	})

	t.Run("staff", func(t *testing.T) {
		f := setupTestFixture(t)
		tenantID := f.tenant(t, "T1", true)
		f.profile(t, "staff", users.RoleStaff, tenantID)

		res, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "staff"})
		require.NoError(t, err)
		require.Equal(t, users.RoleStaff, res.Role())
		got, ok := res.TenantID()
		require.True(t, ok)
		require.Equal(t, tenantID, got)

		b, ok := res.Binding()
		require.True(t, ok)
		require.Equal(t, tenantID, b.TenantID())
	})

	t.Run("no profile is unresolved", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "nobody"})
		require.ErrorIs(t, err, apperrors.ErrUnresolved)
		require.False(t, errors.Is(err, apperrors.ErrResolutionFailed))
	})

	t.Run("staff without tenant is unresolved", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profile(t, "staff", users.RoleStaff, nil)
		_, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "staff"})
		require.ErrorIs(t, err, apperrors.ErrUnresolved)
	})

	t.Run("staff of missing tenant is unresolved", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profile(t, "staff", users.RoleStaff, "gone")
		_, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "staff"})
		require.ErrorIs(t, err, apperrors.ErrUnresolved)
	})

	t.Run("staff of inactive tenant is unresolved", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profile(t, "staff", users.RoleStaff, f.tenant(t, "T1", false))
		_, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "staff"})
		require.ErrorIs(t, err, apperrors.ErrUnresolved)
	})

	t.Run("unknown role is unresolved", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profile(t, "u", users.RoleType("owner"), nil)
		_, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "u"})
		require.ErrorIs(t, err, apperrors.ErrUnresolved)
	})

	t.Run("nil identity is unresolved", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.resolver.Resolve(ctx, nil)
		require.ErrorIs(t, err, apperrors.ErrUnresolved)
		require.Zero(t, f.store.Count(""))
	})

	t.Run("lookup failure is resolution failed", func(t *testing.T) {
		f := setupTestFixture(t)
		boom := errors.New("connection reset")
		f.store.FailFind(boom)

		_, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "admin"})
		require.ErrorIs(t, err, apperrors.ErrResolutionFailed)
		require.ErrorIs(t, err, boom)
		require.False(t, errors.Is(err, apperrors.ErrUnresolved))
	})

	t.Run("idempotent and per identity", func(t *testing.T) {
		f := setupTestFixture(t)
		tenantID := f.tenant(t, "T1", true)
		f.profile(t, "admin", users.RoleSuperAdmin, nil)
		f.profile(t, "staff", users.RoleStaff, tenantID)

		for i := 0; i < 2; i++ {
			a, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "admin"})
			require.NoError(t, err)
			require.True(t, a.IsSuperAdmin())

			s, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "staff"})
			require.NoError(t, err)
			require.Equal(t, users.RoleStaff, s.Role())
		}
	})

	t.Run("only reads", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profile(t, "admin", users.RoleSuperAdmin, nil)
		_, err := f.resolver.Resolve(ctx, &identity.Identity{UserID: "admin"})
		require.NoError(t, err)
		require.Zero(t, f.store.Count("insert"))
		require.Zero(t, f.store.Count("update"))
	})
}

func TestBindSelected(t *testing.T) {
	f := setupTestFixture(t)
	f.profile(t, "admin", users.RoleSuperAdmin, nil)
	tenantID := f.tenant(t, "T1", true)
	f.profile(t, "staff", users.RoleStaff, tenantID)

	admin, err := f.resolver.Resolve(context.Background(), &identity.Identity{UserID: "admin"})
	require.NoError(t, err)
	staff, err := f.resolver.Resolve(context.Background(), &identity.Identity{UserID: "staff"})
	require.NoError(t, err)

	b, err := auth.BindSelected(admin, tenants.Tenant{ID: tenantID})
	require.NoError(t, err)
	require.Equal(t, tenantID, b.TenantID())

	_, err = auth.BindSelected(staff, tenants.Tenant{ID: tenantID})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.True(t, auth.Binding{}.IsZero())
}

func TestResolutionRoles(t *testing.T) {
	op := auth.Operator("cli")
	require.True(t, op.IsSuperAdmin())
	require.Equal(t, users.RoleSuperAdmin, op.Role())
	_, ok := op.Binding()
	require.False(t, ok)

	var literal auth.Resolution
	literal.UserID = "someone"
	require.False(t, literal.IsSuperAdmin())
	require.Empty(t, literal.Role())
	_, err := auth.BindSelected(literal, tenants.Tenant{ID: "t1"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}
