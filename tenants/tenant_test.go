package tenants_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/tenants"
	"github.com/stretchr/testify/require"
)

func TestProfilePatchNeverTouchesIdentityOrStatus(t *testing.T) {
	patch := tenants.Profile{Name: "Lincoln High", Phone: "555"}.Patch()
	require.NotContains(t, patch, store.FieldID)
	require.NotContains(t, patch, tenants.FieldActive)
	require.Equal(t, "Lincoln High", patch[tenants.FieldName])
}

func TestNewRowIsActive(t *testing.T) {
	row := tenants.NewRow("A")
	require.Equal(t, true, row[tenants.FieldActive])
	require.Equal(t, "A", row[tenants.FieldName])
}

func TestDecode(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tenant, err := tenants.Decode(store.Row{
		"id":            "t1",
		"name":          "Lincoln High",
		"active":        int64(0),
		"cnpj":          nil,
		"email_contact": "office@lincoln.example",
		"created_at":    created,
	})
	require.NoError(t, err)
	require.Equal(t, "t1", tenant.ID)
	require.Equal(t, "Lincoln High", tenant.Name)
	require.False(t, tenant.Active)
	require.Empty(t, tenant.CNPJ)
	require.Equal(t, "office@lincoln.example", tenant.EmailContact)
	require.True(t, created.Equal(tenant.CreatedAt))
}

func TestTrimmed(t *testing.T) {
	p := tenants.Profile{Name: "  A  ", Phone: " 1 "}.Trimmed()
	require.Equal(t, "A", p.Name)
	require.Equal(t, "1", p.Phone)
}
