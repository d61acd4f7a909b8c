// Package sessiontoken issues and verifies the HS256 tokens that carry an
// authenticated identity between HTTP requests.
package sessiontoken

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/school-console/identity"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 32

// Claims are the session token claims. Role and tenant are not carried; they
// are resolved from the user profile on every sign in.
type Claims struct {
	Email string `json:"email"`
	jwtlib.RegisteredClaims
}

// Manager handles session token creation and verification
type Manager struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	nowTime func() time.Time
	revoked RevokedTokenCache
}

type Option func(*Manager)

// WithRevokedTokenCache sets where revoked token ids are kept (defaults to
// an in-memory cache).
func WithRevokedTokenCache(c RevokedTokenCache) Option {
	return func(m *Manager) {
		m.revoked = c
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager creates a token manager. The secret must be at least MinSecretLength bytes.
func NewManager(secret, issuer string, ttl time.Duration, options ...Option) (*Manager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session token ttl must be positive")
	}
	m := &Manager{
		secret:  []byte(secret),
		issuer:  issuer,
		ttl:     ttl,
		nowTime: time.Now,
		revoked: NewInMemoryRevokedTokenCache(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// TTL returns how long issued tokens stay valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the user.
func (m *Manager) Issue(userID, email string) (string, error) {
	now := m.nowTime()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer, expiry and revocation and returns the
// identity.
func (m *Manager) Verify(raw string) (*identity.Identity, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return nil, err
	}
	if m.revoked.IsRevoked(claims.ID) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "session token revoked")
	}
	return &identity.Identity{UserID: claims.Subject, Email: claims.Email, Token: raw}, nil
}

// Revoke signs the token out: Verify rejects it from now on. Expired tokens
// need no revocation.
func (m *Manager) Revoke(raw string) error {
	claims, err := m.parse(raw)
	if errors.Is(err, apperrors.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	now := m.nowTime()
	m.revoked.Cleanup(now)
	m.revoked.Add(claims.ID, claims.ExpiresAt.Time)
	return nil
}

func (m *Manager) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(*jwtlib.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(m.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(m.nowTime),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, apperrors.Wrapf(apperrors.ErrTokenExpired, "session token")
		}
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "session token: %v", err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "session token without subject or id")
	}
	return claims, nil
}
