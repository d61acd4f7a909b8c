package bunstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type table struct {
	name    string
	columns string
}

func schema(timestamp string) []table {
	return []table{
		{
			name: "accounts",
			columns: `id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				created_at ` + timestamp + ` NOT NULL`,
		},
		{
			name: "schools",
			columns: `id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				cnpj TEXT,
				logo_url TEXT,
				address TEXT,
				phone TEXT,
				email_contact TEXT,
				director_name TEXT,
				responsible_staff TEXT,
				created_at ` + timestamp + ` NOT NULL`,
		},
		{
			name: "user_profiles",
			columns: `id TEXT PRIMARY KEY,
				role TEXT NOT NULL,
				school_id TEXT REFERENCES schools(id),
				created_at ` + timestamp + ` NOT NULL`,
		},
		{
			name: "students",
			columns: `id TEXT PRIMARY KEY,
				school_id TEXT NOT NULL REFERENCES schools(id),
				name TEXT NOT NULL,
				mother_name TEXT,
				birth_date TEXT,
				cpf TEXT,
				box_number TEXT NOT NULL,
				folder_number TEXT NOT NULL,
				owes_transcript BOOLEAN NOT NULL DEFAULT FALSE,
				returned_to_school BOOLEAN NOT NULL DEFAULT FALSE,
				created_at ` + timestamp + ` NOT NULL`,
		},
	}
}

// Migrate creates the console tables when they do not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	timestamp := "TIMESTAMP"
	if db.Dialect().Name() == dialect.PG {
		timestamp = "TIMESTAMPTZ"
	}

	for _, t := range schema(timestamp) {
		if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS ? ("+t.columns+")", bun.Ident(t.name)); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS students_school_created_idx ON students (school_id, created_at)"); err != nil {
		return fmt.Errorf("create students index: %w", err)
	}
	return nil
}
