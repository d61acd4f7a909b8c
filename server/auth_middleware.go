package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/school-console/identity"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyConsole stores the request's *consoleSession
	ContextKeyConsole ContextKey = "console"
)

// RequireConsoleSession attaches the caller's console session to the request.
// A Bearer session token selects (or restores) its own session; browsers use
// the console_session cookie and fall back to the console_token cookie when
// the session has been evicted. A session whose last resolution failed
// transiently is resolved again.
func (s *Server) RequireConsoleSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cs, err := s.consoleFor(w, r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyConsole, cs)
			next(w, r.WithContext(ctx))
		}
	}
}

func consoleFrom(r *http.Request) *consoleSession {
	cs, _ := r.Context().Value(ContextKeyConsole).(*consoleSession)
	return cs
}

func (s *Server) consoleFor(w http.ResponseWriter, r *http.Request) (*consoleSession, error) {
	if raw, ok := bearerToken(r); ok {
		key := bearerSessionID(raw)
		id, err := s.tokens.Verify(raw)
		if err != nil {
			s.consoles.remove(key)
			return nil, err
		}
		if cs, ok := s.consoles.get(key); ok {
			return cs, s.retryResolution(cs, id)
		}
		return s.consoles.open(key, id)
	}

	if c, err := r.Cookie(consoleSessionCookie); err == nil {
		if cs, ok := s.consoles.get(c.Value); ok {
			if err := s.revalidate(r.Context(), cs); err != nil {
				s.clearCookie(w, r, consoleSessionCookie)
				s.clearCookie(w, r, consoleTokenCookie)
				return nil, err
			}
			return cs, nil
		}
	}

	c, err := r.Cookie(consoleTokenCookie)
	if err != nil || c.Value == "" {
		return nil, apperrors.ErrNotSignedIn
	}
	id, err := s.tokens.Verify(c.Value)
	if err != nil {
		s.clearCookie(w, r, consoleTokenCookie)
		return nil, err
	}
	cs, err := s.consoles.open(uuid.NewString(), id)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("user_id", id.UserID).Msg("console session restored from token")
	s.setCookie(w, r, consoleSessionCookie, cs.id, s.tokens.TTL())
	return cs, nil
}

// revalidate re-checks the token a cookie session was signed in with, which
// may have been revoked or expired since, and retries a failed resolution.
func (s *Server) revalidate(ctx context.Context, cs *consoleSession) error {
	id := cs.hub.CurrentIdentity()
	if id == nil {
		return nil
	}
	if _, err := s.tokens.Verify(id.Token); err != nil {
		if serr := cs.hub.SignOut(ctx); serr != nil {
			s.log.Warn().Err(serr).Msg("sign out of stale console session")
		}
		s.consoles.remove(cs.id)
		return err
	}
	return s.retryResolution(cs, id)
}

// retryResolution publishes id again when the last resolution of the session
// failed transiently. Unresolved outcomes are final until the next sign in.
func (s *Server) retryResolution(cs *consoleSession, id *identity.Identity) error {
	c := cs.machine.Snapshot()
	if c.State() != sessions.Unauthenticated || !errors.Is(c.Err(), apperrors.ErrResolutionFailed) {
		return nil
	}
	s.log.Debug().Str("user_id", id.UserID).Msg("retrying identity resolution")
	return cs.hub.SignIn(*id)
}

// revoke signs a session token out. Tokens that are already invalid are ignored.
func (s *Server) revoke(raw string) {
	if raw == "" {
		return
	}
	if err := s.tokens.Revoke(raw); err != nil {
		s.log.Debug().Err(err).Msg("token not revoked")
	}
}

// existingConsole finds the caller's session without creating one.
func (s *Server) existingConsole(r *http.Request) (*consoleSession, bool) {
	if raw, ok := bearerToken(r); ok {
		return s.consoles.get(bearerSessionID(raw))
	}
	if c, err := r.Cookie(consoleSessionCookie); err == nil {
		return s.consoles.get(c.Value)
	}
	return nil, false
}

// signInConsole publishes id on the caller's existing session, or on a new
// one, and sets the session cookies.
func (s *Server) signInConsole(w http.ResponseWriter, r *http.Request, id *identity.Identity) (*consoleSession, error) {
	cs, ok := s.existingConsole(r)
	if ok {
		if err := cs.hub.SignIn(*id); err != nil {
			return nil, err
		}
	} else {
		var err error
		if cs, err = s.consoles.open(uuid.NewString(), id); err != nil {
			return nil, err
		}
	}
	s.setCookie(w, r, consoleSessionCookie, cs.id, s.tokens.TTL())
	s.setCookie(w, r, consoleTokenCookie, id.Token, s.tokens.TTL())
	return cs, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

func (s *Server) setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
