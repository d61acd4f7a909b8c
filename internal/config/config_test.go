package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/school-console/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENV", "")
	t.Setenv("BASE_URL", "")
	t.Setenv("MAGIC_LINK_TTL", "")
	t.Setenv("OIDC_ISSUER", "")

	c := config.New()
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, config.MemoryDatabaseURL, c.GetDatabaseURL())
	require.True(t, c.IsDev())
	require.Equal(t, 15*time.Minute, c.GetMagicLinkTTL())
	require.Equal(t, "http://localhost:8080/auth/oidc/callback", c.GetOIDCRedirectURL())
	require.False(t, c.OIDCEnabled())
}

func TestEnvironmentAndOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "prod")
	t.Setenv("SESSION_MAX_AGE", "not-a-duration")
	t.Setenv("MAX_CONSOLE_SESSIONS", "16")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c := config.New(
		config.WithOverride("DATABASE_URL", "postgres://localhost/console"),
		config.WithOverride("PORT", ""),
	)
	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, "PROD", c.GetEnv())
	require.False(t, c.IsDev())
	require.Equal(t, "postgres://localhost/console", c.GetDatabaseURL())
	require.Equal(t, 8*time.Hour, c.GetSessionMaxAge())
	require.Equal(t, 16, c.GetMaxConsoleSessions())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example"))
	require.Equal(t, "https://a.example, https://b.example", c.GetAllowedOrigins().String())
}
