package database

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/datashare-api/pkg/config"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Open connects to the configured driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		return NewPostgres(cfg)
	case config.DriverSQLite:
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies the embedded schema for the connection's driver. The
// statements are idempotent.
func Migrate(db *sqlx.DB) error {
	var file string
	switch db.DriverName() {
	case config.DriverPostgres:
		file = "schema/postgres.sql"
	case config.DriverSQLite:
		file = "schema/sqlite.sql"
	default:
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	ddl, err := schemaFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.Exec(string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
