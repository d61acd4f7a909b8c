package sessiontoken_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/school-console/identity/sessiontoken"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestManager(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	m, err := sessiontoken.NewManager(secret, "school-console", time.Hour, sessiontoken.WithNowTime(clock))
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		raw, err := m.Issue("user-1", "ana@example.com")
		require.NoError(t, err)

		id, err := m.Verify(raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", id.UserID)
		require.Equal(t, "ana@example.com", id.Email)
		require.Equal(t, raw, id.Token)
	})

	t.Run("expired", func(t *testing.T) {
		raw, err := m.Issue("user-1", "ana@example.com")
		require.NoError(t, err)

		later, err := sessiontoken.NewManager(secret, "school-console", time.Hour,
			sessiontoken.WithNowTime(func() time.Time { return now.Add(2 * time.Hour) }))
		require.NoError(t, err)
		_, err = later.Verify(raw)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		raw, err := m.Issue("user-1", "ana@example.com")
		require.NoError(t, err)

		other, err := sessiontoken.NewManager("fedcba9876543210fedcba9876543210", "school-console", time.Hour, sessiontoken.WithNowTime(clock))
		require.NoError(t, err)
		_, err = other.Verify(raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := sessiontoken.NewManager(secret, "someone-else", time.Hour, sessiontoken.WithNowTime(clock))
		require.NoError(t, err)
		raw, err := other.Issue("user-1", "ana@example.com")
		require.NoError(t, err)

		_, err = m.Verify(raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("alg none rejected", func(t *testing.T) {
		claims := jwtlib.RegisteredClaims{
			Issuer:    "school-console",
			Subject:   "user-1",
			ExpiresAt: jwtlib.NewNumericDate(now.Add(time.Hour)),
		}
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Verify(raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-token")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}

func TestRevoke(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := sessiontoken.NewInMemoryRevokedTokenCache()
	m, err := sessiontoken.NewManager(secret, "school-console", time.Hour,
		sessiontoken.WithNowTime(func() time.Time { return now }),
		sessiontoken.WithRevokedTokenCache(cache))
	require.NoError(t, err)

	revoked, err := m.Issue("user-1", "ana@example.com")
	require.NoError(t, err)
	kept, err := m.Issue("user-1", "ana@example.com")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(revoked))
	_, err = m.Verify(revoked)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	_, err = m.Verify(kept)
	require.NoError(t, err)

	require.ErrorIs(t, m.Revoke("not-a-token"), apperrors.ErrInvalidToken)

	t.Run("expired entries are cleaned up", func(t *testing.T) {
		require.Equal(t, 1, cache.Len())
		cache.Cleanup(now.Add(2 * time.Hour))
		require.Zero(t, cache.Len())
	})
}

func TestNewManager_RejectsShortSecret(t *testing.T) {
	_, err := sessiontoken.NewManager("short", "school-console", time.Hour)
	require.Error(t, err)
}
