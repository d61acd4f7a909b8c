package server

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jrsteele09/school-console/identity"
	"github.com/jrsteele09/school-console/sessions"
)

// consoleSession is one signed-in console: its authenticator and the state
// machine subscribed to it.
type consoleSession struct {
	id      string
	hub     *identity.Hub
	machine *sessions.Machine
}

// consoleRegistry holds live console sessions. Entries expire after the
// session max age and the least recently used entry is dropped once the
// registry is full; either way the machine is closed.
type consoleRegistry struct {
	mu         sync.Mutex // serializes creation
	cache      *expirable.LRU[string, *consoleSession]
	newMachine func() (*sessions.Machine, error)
}

func newConsoleRegistry(size int, ttl time.Duration, newMachine func() (*sessions.Machine, error)) *consoleRegistry {
	onEvict := func(_ string, cs *consoleSession) {
		cs.machine.Close()
	}
	return &consoleRegistry{
		cache:      expirable.NewLRU[string, *consoleSession](size, onEvict, ttl),
		newMachine: newMachine,
	}
}

func (r *consoleRegistry) get(id string) (*consoleSession, bool) {
	if id == "" {
		return nil, false
	}
	return r.cache.Get(id)
}

// open returns the session stored under id. A new session is created when
// there is none, and signed in as signIn if that is non-nil.
func (r *consoleRegistry) open(id string, signIn *identity.Identity) (*consoleSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.cache.Get(id); ok {
		return cs, nil
	}

	m, err := r.newMachine()
	if err != nil {
		return nil, err
	}
	cs := &consoleSession{id: id, hub: identity.NewHub(), machine: m}
	m.Attach(cs.hub)
	if signIn != nil {
		if err := cs.hub.SignIn(*signIn); err != nil {
			m.Close()
			return nil, err
		}
	}
	r.cache.Add(id, cs)
	return cs, nil
}

func (r *consoleRegistry) remove(id string) {
	r.cache.Remove(id)
}

func (r *consoleRegistry) len() int {
	return r.cache.Len()
}

// bearerSessionID keys the console session of a bearer-token client. The raw
// token is never stored.
func bearerSessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "bearer:" + hex.EncodeToString(sum[:])
}
