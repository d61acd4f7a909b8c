// Package users holds sign-in accounts and the user profiles that carry a
// user's role and tenant.
package users

import (
	"net/mail"
	"strings"
	"time"

	"github.com/jrsteele09/school-console/store"
)

// Backing-store collections.
const (
	ProfileCollection = "user_profiles"
	AccountCollection = "accounts"
)

// Column names.
const (
	FieldRole     = "role"
	FieldTenantID = "school_id"
	FieldEmail    = "email"
)

// RoleType represents a console role
type RoleType string

const (
	RoleSuperAdmin RoleType = "super_admin" // Manages the tenant directory, bound to no tenant
	RoleStaff      RoleType = "staff"       // Manages one tenant's records and profile
)

// Valid reports whether r is a known role.
func (r RoleType) Valid() bool {
	return r == RoleSuperAdmin || r == RoleStaff
}

// Profile maps a user to a role and, for staff, exactly one tenant.
// The id column is the user id.
type Profile struct {
	UserID    string    `json:"user_id" mapstructure:"id"`
	Role      RoleType  `json:"role" mapstructure:"role"`
	TenantID  *string   `json:"tenant_id,omitempty" mapstructure:"school_id"`
	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
}

// IsSuperAdmin returns true if the profile has super admin privileges
func (p *Profile) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// Account is a sign-in account keyed by email.
type Account struct {
	ID        string    `json:"id" mapstructure:"id"`
	Email     string    `json:"email" mapstructure:"email"`
	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
}

// NormalizeEmail trims, lowercases and validates an email address.
func NormalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}

// DecodeProfile converts a backing-store row into a Profile.
func DecodeProfile(row store.Row) (Profile, error) {
	var p Profile
	err := store.Decode(row, &p)
	return p, err
}

// DecodeAccount converts a backing-store row into an Account.
func DecodeAccount(row store.Row) (Account, error) {
	var a Account
	err := store.Decode(row, &a)
	return a, err
}
