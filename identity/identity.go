// Package identity holds the authenticated identity the console core consumes and
// the authentication collaborator that announces it.
package identity

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/school-console/internal/errors"
)

// Identity is an authenticated user. The core treats it as opaque beyond the
// user id and email.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	// Token is the session token that proved this identity, if any.
	Token string `json:"-"`
}

// Listener receives identity changes. A nil identity means signed out.
type Listener func(*Identity)

// Authenticator is the authentication collaborator.
type Authenticator interface {
	CurrentIdentity() *Identity
	OnIdentityChange(listener Listener) (unsubscribe func())
	SignOut(ctx context.Context) error
}

var _ Authenticator = (*Hub)(nil)

type subscription struct {
	id       uint64
	listener Listener
}

// Hub is an in-process Authenticator. Sign-in flows call SignIn once the user is
// proven; listeners run synchronously, in subscription order, outside the lock.
type Hub struct {
	mu        sync.Mutex
	current   *Identity
	nextID    uint64
	listeners []subscription
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) CurrentIdentity() *Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copyIdentity(h.current)
}

func (h *Hub) OnIdentityChange(listener Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, subscription{id: id, listener: listener})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.listeners {
			if s.id == id {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// SignIn publishes a proven identity.
func (h *Hub) SignIn(id Identity) error {
	if id.UserID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidToken, "identity without user id")
	}
	h.publish(&id)
	return nil
}

func (h *Hub) SignOut(_ context.Context) error {
	h.publish(nil)
	return nil
}

func (h *Hub) publish(id *Identity) {
	h.mu.Lock()
	h.current = copyIdentity(id)
	listeners := make([]subscription, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, s := range listeners {
		s.listener(copyIdentity(id))
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
