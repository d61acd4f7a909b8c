// Package magiclink signs users in with one-time links sent by email.
package magiclink

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/school-console/identity"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const secretLength = 32

// MaxRedeemAttempts is the number of wrong secrets after which a pending
// link is dropped.
const MaxRedeemAttempts = 5

// Mailer delivers sign-in links.
type Mailer interface {
	SendLink(ctx context.Context, email, link string) error
}

// LogMailer writes links to the log instead of sending them. DEV only.
type LogMailer struct {
	Log zerolog.Logger
}

func (m LogMailer) SendLink(_ context.Context, email, link string) error {
	m.Log.Info().Str("email", email).Str("link", link).Msg("magic link")
	return nil
}

// TokenIssuer issues session tokens for signed-in users.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

type pendingLink struct {
	hash     []byte
	expires  time.Time
	attempts int
}

// Service issues and redeems magic links. Pending links live in memory and
// only the bcrypt hash of each secret is kept.
type Service struct {
	users   *users.Repo
	tokens  TokenIssuer
	mailer  Mailer
	verify  string
	ttl     time.Duration
	nowTime func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingLink
}

type Option func(*Service)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithLogger sets the logger (defaults to the global logger)
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// NewService creates a link service. verifyURL is the absolute URL of the
// verification endpoint the link points at.
func NewService(repo *users.Repo, tokens TokenIssuer, mailer Mailer, verifyURL string, ttl time.Duration, options ...Option) (*Service, error) {
	if repo == nil || tokens == nil || mailer == nil {
		return nil, errors.New("[NewService] users, tokens and mailer are required")
	}
	if _, err := url.Parse(verifyURL); err != nil {
		return nil, fmt.Errorf("[NewService] invalid verify url: %w", err)
	}
	s := &Service{
		users:   repo,
		tokens:  tokens,
		mailer:  mailer,
		verify:  verifyURL,
		ttl:     ttl,
		nowTime: time.Now,
		log:     log.Logger,
		pending: make(map[string]*pendingLink),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// RequestLink creates a one-time link for email and mails it. A new request
// replaces any earlier pending link for the same address.
func (s *Service) RequestLink(ctx context.Context, email string) error {
	email, ok := users.NormalizeEmail(email)
	if !ok {
		return apperrors.NewValidationError("invalid email", users.FieldEmail)
	}

	secret, err := randomSecret()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash link secret: %w", err)
	}

	s.mu.Lock()
	s.sweep()
	s.pending[email] = &pendingLink{hash: hash, expires: s.nowTime().Add(s.ttl)}
	s.mu.Unlock()

	link, err := url.Parse(s.verify)
	if err != nil {
		return err
	}
	q := link.Query()
	q.Set("email", email)
	q.Set("token", secret)
	link.RawQuery = q.Encode()

	if err := s.mailer.SendLink(ctx, email, link.String()); err != nil {
		s.mu.Lock()
		delete(s.pending, email)
		s.mu.Unlock()
		return fmt.Errorf("send magic link: %w", err)
	}
	s.log.Debug().Str("email", email).Msg("magic link issued")
	return nil
}

// Redeem consumes the pending link for email when secret matches. A wrong
// secret counts against the link, which is dropped after MaxRedeemAttempts.
func (s *Service) Redeem(ctx context.Context, email, secret string) (*identity.Identity, error) {
	email, ok := users.NormalizeEmail(email)
	if !ok {
		return nil, apperrors.NewValidationError("invalid email", users.FieldEmail)
	}

	s.mu.Lock()
	link, found := s.pending[email]
	if found && !s.nowTime().Before(link.expires) {
		delete(s.pending, email)
		s.mu.Unlock()
		return nil, apperrors.Wrapf(apperrors.ErrTokenExpired, "magic link")
	}
	s.mu.Unlock()
	if !found {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "no pending link for %s", email)
	}

	matched := bcrypt.CompareHashAndPassword(link.hash, []byte(secret)) == nil

	s.mu.Lock()
	if s.pending[email] != link {
		// consumed or replaced while comparing
		s.mu.Unlock()
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "magic link")
	}
	if !matched {
		link.attempts++
		if link.attempts >= MaxRedeemAttempts {
			delete(s.pending, email)
		}
		attempts := link.attempts
		s.mu.Unlock()
		s.log.Warn().Str("email", email).Int("attempts", attempts).Msg("magic link mismatch")
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "magic link")
	}
	delete(s.pending, email)
	s.mu.Unlock()

	account, err := s.users.EnsureAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	return &identity.Identity{UserID: account.ID, Email: account.Email, Token: token}, nil
}

// sweep drops expired links. Callers hold s.mu.
func (s *Service) sweep() {
	now := s.nowTime()
	for email, link := range s.pending {
		if !now.Before(link.expires) {
			delete(s.pending, email)
		}
	}
}

func randomSecret() (string, error) {
	b := make([]byte, secretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate link secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
