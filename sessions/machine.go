package sessions

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/school-console/auth"
	"github.com/jrsteele09/school-console/directory"
	"github.com/jrsteele09/school-console/identity"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/scoped"
	"github.com/jrsteele09/school-console/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IdentityResolver maps an identity to its role and tenant.
type IdentityResolver interface {
	Resolve(ctx context.Context, id *identity.Identity) (auth.Resolution, error)
}

// Machine drives one console session. Transitions are serialized; store calls
// (resolution, tenant selection) run outside the lock and their results are
// dropped when the epoch moved on meanwhile.
type Machine struct {
	mu       sync.Mutex
	current  Context
	ctx      context.Context
	cancel   context.CancelFunc
	scoped   *scoped.Gateway
	dir      *directory.Gateway
	detach   func()
	resolver IdentityResolver
	store    store.Store
	log      zerolog.Logger
}

type Option func(*Machine)

// WithLogger sets the logger (defaults to the global logger)
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

func NewMachine(resolver IdentityResolver, st store.Store, options ...Option) (*Machine, error) {
	if resolver == nil {
		return nil, errors.New("[NewMachine] resolver is required")
	}
	if st == nil {
		return nil, errors.New("[NewMachine] store is required")
	}
	m := &Machine{resolver: resolver, store: st, log: log.Logger}
	for _, opt := range options {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

// Attach subscribes to a, replacing any previous subscription, and processes
// a's current identity.
func (m *Machine) Attach(a identity.Authenticator) {
	unsubscribe := a.OnIdentityChange(m.HandleIdentity)
	m.mu.Lock()
	previous := m.detach
	m.detach = unsubscribe
	m.mu.Unlock()
	if previous != nil {
		previous()
	}

	if id := a.CurrentIdentity(); id != nil {
		m.HandleIdentity(id)
	}
}

// Close unsubscribes from the authenticator and ends the session.
func (m *Machine) Close() {
	m.mu.Lock()
	unsubscribe := m.detach
	m.detach = nil
	m.advance(m.current.SignOut())
	m.cancel()
	m.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// HandleIdentity is the authenticator listener. A nil identity signs out;
// otherwise the identity is resolved and the outcome applied if still current.
func (m *Machine) HandleIdentity(id *identity.Identity) {
	if id == nil {
		m.SignOut()
		return
	}

	m.mu.Lock()
	resolving := m.current.SignIn(*id)
	ctx := m.advance(resolving)
	m.mu.Unlock()

	res, err := m.resolver.Resolve(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Epoch() != resolving.Epoch() {
		m.log.Debug().Str("user_id", id.UserID).Msg("discarding stale resolution")
		return
	}
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", id.UserID).Msg("resolution failed")
		next, terr := m.current.Failed(err)
		if terr == nil {
			m.advance(next)
		}
		return
	}
	next, terr := m.current.Resolved(res)
	if terr != nil {
		failed, _ := m.current.Failed(terr)
		m.advance(failed)
		return
	}
	m.advance(next)
}

// Snapshot returns the current context.
func (m *Machine) Snapshot() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SignOut moves to Unauthenticated and invalidates every outstanding Ticket.
func (m *Machine) SignOut() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance(m.current.SignOut())
	return m.current
}

// ChooseDirectory moves a super admin from AwaitingChoice to DirectoryView.
func (m *Machine) ChooseDirectory() (Context, error) {
	return m.transition(Context.ChooseDirectory)
}

// Back returns a super admin to AwaitingChoice.
func (m *Machine) Back() (Context, error) {
	return m.transition(Context.Back)
}

// SelectTenant binds a super admin in AwaitingChoice to an existing tenant and
// enters TenantView.
func (m *Machine) SelectTenant(ctx context.Context, tenantID string) (Context, error) {
	m.mu.Lock()
	start := m.current
	if start.State() != AwaitingChoice {
		m.mu.Unlock()
		return start, start.invalid("select tenant")
	}
	gw := directory.New(m.store, start.resolution, directory.WithLogger(m.log))
	m.mu.Unlock()

	b, err := gw.Select(ctx, tenantID)
	if err != nil {
		return start, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Epoch() != start.Epoch() {
		return m.current, apperrors.ErrSessionInvalidated
	}
	next, err := m.current.ChooseTenant(b)
	if err != nil {
		return m.current, err
	}
	m.advance(next)
	return m.current, nil
}

// Scoped returns the gateway bound for the current TenantView. The gateway is
// built once per epoch.
func (m *Machine) Scoped() (*scoped.Gateway, Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireResolved(); err != nil {
		return nil, Ticket{}, err
	}
	b, ok := m.current.Binding()
	if !ok {
		return nil, Ticket{}, apperrors.ErrNoTenantBound
	}
	if m.scoped == nil {
		gw, err := scoped.New(m.store, b, scoped.WithLogger(m.log))
		if err != nil {
			return nil, Ticket{}, err
		}
		m.scoped = gw
	}
	return m.scoped, m.ticket(), nil
}

// Directory returns the directory gateway for the caller. A super admin must be
// in DirectoryView; any other resolved caller gets a gateway that refuses every
// operation.
func (m *Machine) Directory() (*directory.Gateway, Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireResolved(); err != nil {
		return nil, Ticket{}, err
	}
	res, _ := m.current.Resolution()
	if res.IsSuperAdmin() && m.current.State() != DirectoryView {
		return nil, Ticket{}, m.current.invalid("directory access")
	}
	if m.dir == nil {
		m.dir = directory.New(m.store, res, directory.WithLogger(m.log))
	}
	return m.dir, m.ticket(), nil
}

func (m *Machine) requireResolved() error {
	if _, ok := m.current.Resolution(); !ok {
		if m.current.State() == Resolving {
			return apperrors.Wrapf(apperrors.ErrNotSignedIn, "session is still resolving")
		}
		return apperrors.ErrNotSignedIn
	}
	return nil
}

func (m *Machine) transition(fn func(Context) (Context, error)) (Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.current)
	if err != nil {
		return m.current, err
	}
	m.advance(next)
	return m.current, nil
}

// advance installs next, ends the previous epoch and returns the new epoch's
// context. Callers hold m.mu.
func (m *Machine) advance(next Context) context.Context {
	prev := m.current
	m.current = next
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.scoped = nil
	m.dir = nil

	m.log.Debug().
		Stringer("from", prev.State()).
		Stringer("to", next.State()).
		Uint64("epoch", next.Epoch()).
		Msg("session transition")
	return m.ctx
}

func (m *Machine) ticket() Ticket {
	return Ticket{m: m, epoch: m.current.Epoch(), ctx: m.ctx}
}

// Ticket ties an operation to the epoch it started in.
type Ticket struct {
	m     *Machine
	epoch uint64
	ctx   context.Context
}

// Context is cancelled when the epoch ends.
func (t Ticket) Context() context.Context {
	if t.ctx == nil {
		return context.Background()
	}
	return t.ctx
}

// Valid reports whether the session is still in the ticket's epoch.
func (t Ticket) Valid() bool {
	if t.m == nil {
		return false
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.current.Epoch() == t.epoch
}

// Apply runs fn only while the ticket is valid, holding the session lock so no
// transition interleaves. fn must not call back into the Machine.
func (t Ticket) Apply(fn func()) bool {
	if t.m == nil {
		return false
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.current.Epoch() != t.epoch {
		return false
	}
	fn()
	return true
}
