// Package students holds the tenant-owned Record ("student") model.
package students

import (
	"strings"
	"time"

	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/jrsteele09/school-console/internal/utils"
	"github.com/jrsteele09/school-console/store"
)

// Collection is the backing-store collection holding records.
const Collection = "students"

// Column names.
const (
	FieldTenantID     = "school_id"
	FieldName         = "name"
	FieldBoxNumber    = "box_number"
	FieldFolderNumber = "folder_number"
	FieldBirthDate    = "birth_date"
)

// BirthDateLayout is the calendar-date format of birth_date.
const BirthDateLayout = "2006-01-02"

// Record is a student archive record owned by exactly one tenant.
type Record struct {
	ID               string    `json:"id" mapstructure:"id"`
	TenantID         string    `json:"tenant_id" mapstructure:"school_id"`
	Name             string    `json:"name" mapstructure:"name"`
	MotherName       string    `json:"mother_name" mapstructure:"mother_name"`
	BirthDate        *string   `json:"birth_date" mapstructure:"birth_date"`
	CPF              string    `json:"cpf" mapstructure:"cpf"`
	BoxNumber        string    `json:"box_number" mapstructure:"box_number"`
	FolderNumber     string    `json:"folder_number" mapstructure:"folder_number"`
	OwesTranscript   bool      `json:"owes_transcript" mapstructure:"owes_transcript"`
	ReturnedToSchool bool      `json:"returned_to_school" mapstructure:"returned_to_school"`
	CreatedAt        time.Time `json:"created_at" mapstructure:"created_at"`
}

// Fields is the caller input for a new record. TenantID is accepted so that
// clients sending one decode cleanly, but it is never written.
type Fields struct {
	TenantID         string `json:"tenant_id,omitempty"`
	Name             string `json:"name"`
	MotherName       string `json:"mother_name"`
	BirthDate        string `json:"birth_date"`
	CPF              string `json:"cpf"`
	BoxNumber        string `json:"box_number"`
	FolderNumber     string `json:"folder_number"`
	OwesTranscript   bool   `json:"owes_transcript"`
	ReturnedToSchool bool   `json:"returned_to_school"`
}

// Validate checks required fields and the birth date format.
func (f Fields) Validate() error {
	var missing []string
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(f.BoxNumber) == "" {
		missing = append(missing, FieldBoxNumber)
	}
	if strings.TrimSpace(f.FolderNumber) == "" {
		missing = append(missing, FieldFolderNumber)
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("required", missing...)
	}

	if d := strings.TrimSpace(f.BirthDate); d != "" {
		if _, err := time.Parse(BirthDateLayout, d); err != nil {
			return apperrors.NewValidationError("expected YYYY-MM-DD", FieldBirthDate)
		}
	}
	return nil
}

// Row builds the insert row for tenantID. The tenant column always comes from
// the argument, never from f.TenantID.
func (f Fields) Row(tenantID string) store.Row {
	return store.Row{
		FieldTenantID:        tenantID,
		FieldName:            strings.TrimSpace(f.Name),
		"mother_name":        strings.TrimSpace(f.MotherName),
		FieldBirthDate:       store.NullString(utils.BlankToNil(f.BirthDate)),
		"cpf":                strings.TrimSpace(f.CPF),
		FieldBoxNumber:       strings.TrimSpace(f.BoxNumber),
		FieldFolderNumber:    strings.TrimSpace(f.FolderNumber),
		"owes_transcript":    f.OwesTranscript,
		"returned_to_school": f.ReturnedToSchool,
	}
}

// Decode converts a backing-store row into a Record.
func Decode(row store.Row) (Record, error) {
	var r Record
	clean := row.Clone()
	for k, v := range clean {
		if v == nil && k != FieldBirthDate {
			delete(clean, k)
		}
	}
	if err := store.Decode(clean, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// DecodeAll converts rows preserving order.
func DecodeAll(rows []store.Row) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r, err := Decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
