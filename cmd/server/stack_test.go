package main

import (
	"context"
	"testing"

	"github.com/jrsteele09/school-console/identity/sessiontoken"
	"github.com/jrsteele09/school-console/internal/config"
	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/store/memstore"
	"github.com/jrsteele09/school-console/tenants"
	"github.com/jrsteele09/school-console/users"
	"github.com/stretchr/testify/require"
)

func TestEnsureSuperAdmin(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	repo := users.NewRepo(st)

	t.Run("no email is a no-op", func(t *testing.T) {
		require.NoError(t, ensureSuperAdmin(ctx, repo, ""))
		rows, err := st.Find(ctx, users.AccountCollection, nil)
		require.NoError(t, err)
		require.Empty(t, rows)
	})

	t.Run("creates and is idempotent", func(t *testing.T) {
		require.NoError(t, ensureSuperAdmin(ctx, repo, "Root@Console.test"))
		require.NoError(t, ensureSuperAdmin(ctx, repo, "root@console.test"))

		account, err := repo.AccountByEmail(ctx, "root@console.test")
		require.NoError(t, err)
		profiles, err := repo.Profiles(ctx, account.ID)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		require.True(t, profiles[0].IsSuperAdmin())
	})

	t.Run("leaves another role unchanged", func(t *testing.T) {
		row, err := st.Insert(ctx, tenants.Collection, tenants.NewRow("T1"))
		require.NoError(t, err)
		account, err := repo.EnsureAccount(ctx, "staff@t1.test")
		require.NoError(t, err)
		_, err = repo.Grant(ctx, account.ID, users.RoleStaff, row[store.FieldID].(string))
		require.NoError(t, err)

		require.NoError(t, ensureSuperAdmin(ctx, repo, "staff@t1.test"))
		profiles, err := repo.Profiles(ctx, account.ID)
		require.NoError(t, err)
		require.Equal(t, users.RoleStaff, profiles[0].Role)
	})
}

func TestSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	secret, err := sessionSecret(config.New(config.WithOverride("ENV", "DEV")))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(secret), sessiontoken.MinSecretLength)

	_, err = sessionSecret(config.New(config.WithOverride("ENV", "PROD")))
	require.Error(t, err)

	secret, err = sessionSecret(config.New(config.WithOverride("ENV", "PROD"), config.WithOverride("SESSION_SECRET", "0123456789abcdef0123456789abcdef")))
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef0123456789abcdef", secret)
}
