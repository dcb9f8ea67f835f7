package repository

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates the schema for the connected driver. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	var file string
	switch db.DriverName() {
	case "postgres", "pgx":
		file = "migrations/postgres.sql"
	case "sqlite3":
		file = "migrations/sqlite.sql"
	default:
		return fmt.Errorf("no migrations for driver %q", db.DriverName())
	}

	schema, err := migrations.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply %s: %w", file, err)
	}
	return nil
}
