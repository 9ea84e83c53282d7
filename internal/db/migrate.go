package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/imagehoster/server/config"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrateUp applies all pending up migrations.
func MigrateUp(cfg config.DatabaseConfig) error {
	return runMigrations(cfg, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown reverts all applied migrations.
func MigrateDown(cfg config.DatabaseConfig) error {
	return runMigrations(cfg, func(m *migrate.Migrate) error { return m.Down() })
}

func runMigrations(cfg config.DatabaseConfig, run func(*migrate.Migrate) error) error {
	source, err := iofs.New(migrationsFS, "migrations/"+Driver(cfg))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, migrationURL(cfg))
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := run(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}

func migrationURL(cfg config.DatabaseConfig) string {
	if Driver(cfg) == DriverSQLite {
		return "sqlite://" + cfg.Path
	}
	return PostgresURL(cfg)
}
