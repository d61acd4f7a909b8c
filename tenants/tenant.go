// Package tenants holds the Tenant ("school") model and its row codec.
package tenants

import (
	"strings"
	"time"

	"github.com/jrsteele09/school-console/store"
)

// Collection is the backing-store collection holding tenants.
const Collection = "schools"

// Column names.
const (
	FieldName   = "name"
	FieldActive = "active"
)

// Profile holds a tenant's editable institutional fields.
type Profile struct {
	Name             string `json:"name" mapstructure:"name"`
	CNPJ             string `json:"cnpj" mapstructure:"cnpj"`
	LogoURL          string `json:"logo_url" mapstructure:"logo_url"`
	Address          string `json:"address" mapstructure:"address"`
	Phone            string `json:"phone" mapstructure:"phone"`
	EmailContact     string `json:"email_contact" mapstructure:"email_contact"`
	DirectorName     string `json:"director_name" mapstructure:"director_name"`
	ResponsibleStaff string `json:"responsible_staff" mapstructure:"responsible_staff"`
}

// Tenant represents an isolated organization (a school).
type Tenant struct {
	ID        string    `json:"id" mapstructure:"id"`
	Active    bool      `json:"active" mapstructure:"active"`
	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
	Profile   `mapstructure:",squash"`
}

// Trimmed returns the profile with surrounding whitespace removed from every field.
func (p Profile) Trimmed() Profile {
	return Profile{
		Name:             strings.TrimSpace(p.Name),
		CNPJ:             strings.TrimSpace(p.CNPJ),
		LogoURL:          strings.TrimSpace(p.LogoURL),
		Address:          strings.TrimSpace(p.Address),
		Phone:            strings.TrimSpace(p.Phone),
		EmailContact:     strings.TrimSpace(p.EmailContact),
		DirectorName:     strings.TrimSpace(p.DirectorName),
		ResponsibleStaff: strings.TrimSpace(p.ResponsibleStaff),
	}
}

// Patch returns the institutional columns as an update patch. It never
// contains the id or active columns.
func (p Profile) Patch() store.Row {
	return store.Row{
		FieldName:           p.Name,
		"cnpj":              p.CNPJ,
		"logo_url":          p.LogoURL,
		"address":           p.Address,
		"phone":             p.Phone,
		"email_contact":     p.EmailContact,
		"director_name":     p.DirectorName,
		"responsible_staff": p.ResponsibleStaff,
	}
}

// NewRow builds the insert row for a new tenant named name.
func NewRow(name string) store.Row {
	row := Profile{Name: name}.Patch()
	row[FieldActive] = true
	return row
}

// Decode converts a backing-store row into a Tenant.
func Decode(row store.Row) (Tenant, error) {
	var t Tenant
	if err := store.Decode(nullsToEmpty(row), &t); err != nil {
		return Tenant{}, err
	}
	return t, nil
}

// DecodeAll converts rows preserving order.
func DecodeAll(rows []store.Row) ([]Tenant, error) {
	out := make([]Tenant, 0, len(rows))
	for _, r := range rows {
		t, err := Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func nullsToEmpty(row store.Row) store.Row {
	out := row.Clone()
	for k, v := range out {
		if v == nil {
			delete(out, k)
		}
	}
	return out
}
