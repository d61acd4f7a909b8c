package auth

import (
	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/tenants"
	"github.com/jrsteele09/school-console/users"
)

// Resolution is the role (and, for staff, tenant) an identity resolved to.
// Only the Resolver and Operator produce a Resolution with a role.
type Resolution struct {
	UserID   string
	role     users.RoleType
	tenantID string
}

// Operator is the super admin caller of local administration commands, which
// run with database access and no signed-in identity.
func Operator(name string) Resolution {
	return Resolution{UserID: name, role: users.RoleSuperAdmin}
}

// Role returns the resolved role.
func (r Resolution) Role() users.RoleType {
	return r.role
}

// TenantID returns the tenant a staff resolution is bound to.
func (r Resolution) TenantID() (string, bool) {
	return r.tenantID, r.tenantID != ""
}

// IsSuperAdmin returns true if the resolution carries super admin privileges
func (r Resolution) IsSuperAdmin() bool {
	return r.role == users.RoleSuperAdmin
}

// Binding returns the tenant binding of a staff resolution.
func (r Resolution) Binding() (Binding, bool) {
	if r.role != users.RoleStaff || r.tenantID == "" {
		return Binding{}, false
	}
	return Binding{tenantID: r.tenantID}, true
}

// Binding is the capability to act on one tenant's data. It can only be
// obtained from a staff Resolution or from a super admin's explicit selection
// of an existing tenant, never from request input.
type Binding struct {
	tenantID string
}

func (b Binding) TenantID() string {
	return b.tenantID
}

func (b Binding) IsZero() bool {
	return b.tenantID == ""
}

// BindSelected binds a super admin to the tenant they selected.
func BindSelected(r Resolution, t tenants.Tenant) (Binding, error) {
	if !r.IsSuperAdmin() {
		return Binding{}, apperrors.Wrapf(apperrors.ErrForbidden, "tenant selection requires %s", users.RoleSuperAdmin)
	}
	if t.ID == "" {
		return Binding{}, apperrors.Wrapf(apperrors.ErrNotFound, "tenant")
	}
	return Binding{tenantID: t.ID}, nil
}
