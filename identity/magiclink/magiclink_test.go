package magiclink_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/school-console/identity/magiclink"
	"github.com/jrsteele09/school-console/identity/sessiontoken"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/store/memstore"
	"github.com/jrsteele09/school-console/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
	err   error
}

func (m *captureMailer) SendLink(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.links == nil {
		m.links = make(map[string]string)
	}
	m.links[email] = link
	return nil
}

func (m *captureMailer) secret(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := url.Parse(m.links[email])
	require.NoError(t, err)
	require.Equal(t, email, u.Query().Get("email"))
	return u.Query().Get("token")
}

type testFixture struct {
	now     time.Time
	mailer  *captureMailer
	tokens  *sessiontoken.Manager
	repo    *users.Repo
	service *magiclink.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{now: time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC), mailer: &captureMailer{}}
	clock := func() time.Time { return f.now }

	var err error
	f.tokens, err = sessiontoken.NewManager("0123456789abcdef0123456789abcdef", "school-console", time.Hour, sessiontoken.WithNowTime(clock))
	require.NoError(t, err)
	f.repo = users.NewRepo(memstore.New())
	f.service, err = magiclink.NewService(f.repo, f.tokens, f.mailer, "http://localhost:8080/auth/verify", 15*time.Minute,
		magiclink.WithNowTime(clock), magiclink.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return f
}

func TestRequestAndRedeem(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.RequestLink(ctx, " Ana@Example.com "))
	secret := f.mailer.secret(t, "ana@example.com")
	require.NotEmpty(t, secret)

	id, err := f.service.Redeem(ctx, "ana@example.com", secret)
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", id.Email)
	require.NotEmpty(t, id.UserID)

	verified, err := f.tokens.Verify(id.Token)
	require.NoError(t, err)
	require.Equal(t, id.UserID, verified.UserID)

	account, err := f.repo.AccountByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, id.UserID, account.ID)

	t.Run("link is single use", func(t *testing.T) {
		_, err := f.service.Redeem(ctx, "ana@example.com", secret)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("same account on next sign in", func(t *testing.T) {
		require.NoError(t, f.service.RequestLink(ctx, "ana@example.com"))
		again, err := f.service.Redeem(ctx, "ana@example.com", f.mailer.secret(t, "ana@example.com"))
		require.NoError(t, err)
		require.Equal(t, id.UserID, again.UserID)
	})
}

func TestRedeemFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong secret leaves the link usable", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.RequestLink(ctx, "ana@example.com"))
		secret := f.mailer.secret(t, "ana@example.com")

		for i := 0; i < magiclink.MaxRedeemAttempts-1; i++ {
			_, err := f.service.Redeem(ctx, "ana@example.com", "guess")
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		}
		id, err := f.service.Redeem(ctx, "ana@example.com", secret)
		require.NoError(t, err)
		require.NotEmpty(t, id.Token)
	})

	t.Run("too many wrong secrets drop the link", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.RequestLink(ctx, "ana@example.com"))
		secret := f.mailer.secret(t, "ana@example.com")

		for i := 0; i < magiclink.MaxRedeemAttempts; i++ {
			_, err := f.service.Redeem(ctx, "ana@example.com", "guess")
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		}
		_, err := f.service.Redeem(ctx, "ana@example.com", secret)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.RequestLink(ctx, "ana@example.com"))
		secret := f.mailer.secret(t, "ana@example.com")

		f.now = f.now.Add(16 * time.Minute)
		_, err := f.service.Redeem(ctx, "ana@example.com", secret)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("newer request replaces older link", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.RequestLink(ctx, "ana@example.com"))
		first := f.mailer.secret(t, "ana@example.com")
		require.NoError(t, f.service.RequestLink(ctx, "ana@example.com"))

		_, err := f.service.Redeem(ctx, "ana@example.com", first)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("invalid email", func(t *testing.T) {
		f := setupTestFixture(t)
		require.ErrorIs(t, f.service.RequestLink(ctx, "nope"), apperrors.ErrValidation)
		_, err := f.service.Redeem(ctx, "nope", "x")
		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("mailer failure drops the link", func(t *testing.T) {
		f := setupTestFixture(t)
		f.mailer.err = errors.New("smtp down")
		require.Error(t, f.service.RequestLink(ctx, "ana@example.com"))
		_, err := f.service.Redeem(ctx, "ana@example.com", "anything")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}
