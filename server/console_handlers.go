package server

import (
	"context"
	"net/http"

	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/sessions"
	"github.com/jrsteele09/school-console/students"
	"github.com/jrsteele09/school-console/tenants"
	"github.com/jrsteele09/school-console/users"
)

const (
	viewDirectory = "directory"
	viewTenant    = "tenant"
)

type sessionView struct {
	State    sessions.State `json:"state"`
	Epoch    uint64         `json:"epoch"`
	UserID   string         `json:"user_id,omitempty"`
	Email    string         `json:"email,omitempty"`
	Role     users.RoleType `json:"role,omitempty"`
	TenantID string         `json:"tenant_id,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func newSessionView(c sessions.Context) sessionView {
	v := sessionView{State: c.State(), Epoch: c.Epoch()}
	if id := c.Identity(); id != nil {
		v.UserID, v.Email = id.UserID, id.Email
	}
	if res, ok := c.Resolution(); ok {
		v.Role = res.Role()
	}
	if b, ok := c.Binding(); ok {
		v.TenantID = b.TenantID()
	}
	if err := c.Err(); err != nil {
		v.Error = publicError(err).Error
	}
	return v
}

type chooseRequest struct {
	View     string `json:"view"`
	TenantID string `json:"tenant_id"`
}

// ticketContext is cancelled when either the request or the ticket's epoch ends.
func ticketContext(r *http.Request, t sessions.Ticket) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(t.Context())
	stop := context.AfterFunc(r.Context(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// deliver writes the outcome of an operation started under t. Outcomes from an
// epoch that has since ended are discarded.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, t sessions.Ticket, status int, v any, err error) {
	if !t.Valid() {
		s.log.Debug().Str("path", r.URL.Path).Msg("discarding result of an ended session epoch")
		s.writeError(w, r, apperrors.ErrSessionInvalidated)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs := consoleFrom(r)
		writeJSON(w, http.StatusOK, newSessionView(cs.machine.Snapshot()))
	}
}

// ChooseHandler moves a super admin out of AwaitingChoice, either into the
// directory or into a selected tenant.
func (s *Server) ChooseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs := consoleFrom(r)
		var req chooseRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		var (
			next sessions.Context
			err  error
		)
		switch req.View {
		case viewDirectory:
			next, err = cs.machine.ChooseDirectory()
		case viewTenant:
			if req.TenantID == "" {
				err = apperrors.NewValidationError("required", "tenant_id")
				break
			}
			next, err = cs.machine.SelectTenant(r.Context(), req.TenantID)
		default:
			err = apperrors.NewValidationError("expected directory or tenant", "view")
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(next))
	}
}

func (s *Server) BackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next, err := consoleFrom(r).machine.Back()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(next))
	}
}

func (s *Server) ListStudentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gw, ticket, err := consoleFrom(r).machine.Scoped()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx, cancel := ticketContext(r, ticket)
		defer cancel()

		records, err := gw.ListRecords(ctx)
		s.deliver(w, r, ticket, http.StatusOK, records, err)
	}
}

func (s *Server) CreateStudentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gw, ticket, err := consoleFrom(r).machine.Scoped()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var fields students.Fields
		if err := decodeJSON(w, r, &fields); err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx, cancel := ticketContext(r, ticket)
		defer cancel()

		record, err := gw.CreateRecord(ctx, fields)
		s.deliver(w, r, ticket, http.StatusCreated, record, err)
	}
}

func (s *Server) SchoolProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gw, ticket, err := consoleFrom(r).machine.Scoped()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx, cancel := ticketContext(r, ticket)
		defer cancel()

		t, err := gw.TenantProfile(ctx)
		s.deliver(w, r, ticket, http.StatusOK, t, err)
	}
}

func (s *Server) UpdateSchoolProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gw, ticket, err := consoleFrom(r).machine.Scoped()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var profile tenants.Profile
		if err := decodeJSON(w, r, &profile); err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx, cancel := ticketContext(r, ticket)
		defer cancel()

		t, err := gw.UpdateTenantProfile(ctx, profile)
		s.deliver(w, r, ticket, http.StatusOK, t, err)
	}
}

type createTenantRequest struct {
	Name string `json:"name"`
}

func (s *Server) ListTenantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gw, ticket, err := consoleFrom(r).machine.Directory()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx, cancel := ticketContext(r, ticket)
		defer cancel()

		list, err := gw.ListTenants(ctx)
		s.deliver(w, r, ticket, http.StatusOK, list, err)
	}
}

func (s *Server) CreateTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gw, ticket, err := consoleFrom(r).machine.Directory()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req createTenantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx, cancel := ticketContext(r, ticket)
		defer cancel()

		t, err := gw.CreateTenant(ctx, req.Name)
		s.deliver(w, r, ticket, http.StatusCreated, t, err)
	}
}

func (s *Server) ToggleTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gw, ticket, err := consoleFrom(r).machine.Directory()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx, cancel := ticketContext(r, ticket)
		defer cancel()

		t, err := gw.ToggleTenantActive(ctx, r.PathValue("id"))
		s.deliver(w, r, ticket, http.StatusOK, t, err)
	}
}
