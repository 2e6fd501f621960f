package db

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode switches getMigrationsFS to the on-disk migrations directory so
// schema work does not need a rebuild per edit.
var DevMode = false

// devMigrationsDir is where migrations live relative to the repo root.
const devMigrationsDir = "internal/db/migrations"

// getMigrationsFS returns the filesystem the migrate commands read, rooted
// so the migration files sit at its top level.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if _, err := os.Stat(devMigrationsDir); err != nil {
			return nil, fmt.Errorf("dev migrations directory: %w", err)
		}
		return os.DirFS(devMigrationsDir), nil
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return sub, nil
}
