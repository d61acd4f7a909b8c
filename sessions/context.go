package sessions

import (
	"github.com/jrsteele09/school-console/auth"
	"github.com/jrsteele09/school-console/identity"
	apperrors "github.com/jrsteele09/school-console/internal/errors"
)

// Context is an immutable snapshot of a console session. Every transition
// returns a new Context with a higher epoch; the receiver is never modified.
type Context struct {
	state      State
	identity   *identity.Identity
	resolution auth.Resolution
	binding    auth.Binding
	epoch      uint64
	err        error
}

func (c Context) State() State {
	return c.state
}

// Identity returns a copy of the signed-in identity, or nil.
func (c Context) Identity() *identity.Identity {
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// Resolution is meaningful in AwaitingChoice, DirectoryView and TenantView.
func (c Context) Resolution() (auth.Resolution, bool) {
	switch c.state {
	case AwaitingChoice, DirectoryView, TenantView:
		return c.resolution, true
	}
	return auth.Resolution{}, false
}

// Binding returns the tenant binding of a TenantView.
func (c Context) Binding() (auth.Binding, bool) {
	if c.state != TenantView || c.binding.IsZero() {
		return auth.Binding{}, false
	}
	return c.binding, true
}

func (c Context) Epoch() uint64 {
	return c.epoch
}

// Err is the error that ended the last resolution, if any.
func (c Context) Err() error {
	return c.err
}

func (c Context) invalid(event string) error {
	return apperrors.Wrapf(apperrors.ErrInvalidTransition, "%s from %s", event, c.state)
}

// SignIn starts resolving id. Accepted from any state: a new identity always
// replaces the old session.
func (c Context) SignIn(id identity.Identity) Context {
	return Context{state: Resolving, identity: &id, epoch: c.epoch + 1}
}

// Resolved applies a successful resolution.
func (c Context) Resolved(res auth.Resolution) (Context, error) {
	if c.state != Resolving {
		return c, c.invalid("resolved")
	}
	next := Context{identity: c.identity, resolution: res, epoch: c.epoch + 1}
	switch {
	case res.IsSuperAdmin():
		next.state = AwaitingChoice
	default:
		b, ok := res.Binding()
		if !ok {
			return c, apperrors.Wrapf(apperrors.ErrUnresolved, "resolution for %s has no tenant", res.UserID)
		}
		next.state = TenantView
		next.binding = b
	}
	return next, nil
}

// Failed ends a resolution with err and returns to Unauthenticated.
func (c Context) Failed(err error) (Context, error) {
	if c.state != Resolving {
		return c, c.invalid("resolution failed")
	}
	return Context{state: Unauthenticated, epoch: c.epoch + 1, err: err}, nil
}

// ChooseDirectory enters the tenant directory.
func (c Context) ChooseDirectory() (Context, error) {
	if c.state != AwaitingChoice || !c.resolution.IsSuperAdmin() {
		return c, c.invalid("choose directory")
	}
	next := c.keep()
	next.state = DirectoryView
	return next, nil
}

// ChooseTenant enters a tenant view bound to b. A tenant view is never entered
// without a binding.
func (c Context) ChooseTenant(b auth.Binding) (Context, error) {
	if c.state != AwaitingChoice || !c.resolution.IsSuperAdmin() {
		return c, c.invalid("choose tenant")
	}
	if b.IsZero() {
		return c, apperrors.ErrNoTenantBound
	}
	next := c.keep()
	next.state = TenantView
	next.binding = b
	return next, nil
}

// Back returns a super admin to AwaitingChoice.
func (c Context) Back() (Context, error) {
	switch {
	case c.state == DirectoryView:
	case c.state == TenantView && c.resolution.IsSuperAdmin():
	default:
		return c, c.invalid("back")
	}
	next := c.keep()
	next.state = AwaitingChoice
	return next, nil
}

// SignOut returns to Unauthenticated from any state.
func (c Context) SignOut() Context {
	return Context{state: Unauthenticated, epoch: c.epoch + 1}
}

// keep copies identity and resolution into a new epoch, dropping binding and error.
func (c Context) keep() Context {
	return Context{identity: c.identity, resolution: c.resolution, epoch: c.epoch + 1}
}
