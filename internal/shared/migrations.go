package shared

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed sql/sqlite3/*.sql sql/postgres/*.sql
var migrationFiles embed.FS

// MigrationResult describes a single applied or rolled back migration.
type MigrationResult struct {
	Version   int64
	Path      string
	Direction string
}

// newMigrationProvider builds a goose provider for the embedded migrations of the given driver.
func newMigrationProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	var dialect database.Dialect
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		dialect = database.DialectSQLite3
	case DriverPostgres:
		dialect = database.DialectPostgres
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, driver)
	}

	fsys, err := fs.Sub(migrationFiles, "sql/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	return goose.NewProvider(dialect, db, fsys)
}

// RunMigrations applies every pending migration and returns what was applied.
//
// goose records applied versions in its own goose_db_version table.
func RunMigrations(ctx context.Context, db *sql.DB, driver string) ([]MigrationResult, error) {
	provider, err := newMigrationProvider(db, driver)
	if err != nil {
		return nil, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	applied := make([]MigrationResult, 0, len(results))
	for _, r := range results {
		applied = append(applied, toMigrationResult(r))
	}
	return applied, nil
}

// RollbackMigration rolls back the most recent migration.
func RollbackMigration(ctx context.Context, db *sql.DB, driver string) (*MigrationResult, error) {
	provider, err := newMigrationProvider(db, driver)
	if err != nil {
		return nil, err
	}

	result, err := provider.Down(ctx)
	if err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil, fmt.Errorf("no migrations to rollback")
		}
		return nil, fmt.Errorf("failed to rollback migration: %w", err)
	}

	r := toMigrationResult(result)
	return &r, nil
}

// MigrationVersion returns the current schema version, 0 when nothing has been applied.
func MigrationVersion(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	provider, err := newMigrationProvider(db, driver)
	if err != nil {
		return 0, err
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

func toMigrationResult(r *goose.MigrationResult) MigrationResult {
	if r == nil || r.Source == nil {
		return MigrationResult{}
	}
	return MigrationResult{
		Version:   r.Source.Version,
		Path:      r.Source.Path,
		Direction: r.Direction,
	}
}
