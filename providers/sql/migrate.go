package sql

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/alecthomas/errors"
)

// Migrations is the filesystem of .sql migration files applied on connect
// when [Config].Migrate is set. Files apply in lexical order, each in its own
// transaction where the engine allows, and are recorded in a
// schema_migrations table so each runs exactly once.
//
//rig:external
type Migrations struct{ fs.FS }

func applyMigrations(ctx context.Context, db *sql.DB, driver Driver, logger *slog.Logger, migrations Migrations) error {
	if migrations.FS == nil {
		return nil
	}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name VARCHAR(255) NOT NULL PRIMARY KEY)`)
	if err != nil {
		return errors.Errorf("failed to create schema_migrations table: %w", err)
	}
	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return errors.Errorf("failed to list migrations: %w", err)
	}
	slices.Sort(names)
	for _, name := range names {
		applied, err := migrationApplied(ctx, db, driver, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		logger.Info("Applying migration", "name", name)
		if err := applyMigration(ctx, db, driver, migrations, name); err != nil {
			return errors.Errorf("migration %s failed: %w", name, err)
		}
	}
	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, driver Driver, name string) (bool, error) {
	row := db.QueryRowContext(ctx, driver.Denormalise(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`), name)
	count := 0
	if err := row.Scan(&count); err != nil {
		return false, errors.Errorf("failed to query schema_migrations: %w", err)
	}
	return count > 0, nil
}

func applyMigration(ctx context.Context, db *sql.DB, driver Driver, migrations Migrations, name string) error {
	content, err := fs.ReadFile(migrations, name)
	if err != nil {
		return errors.WithStack(err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return errors.WithStack(err)
	}
	if _, err := tx.ExecContext(ctx, driver.Denormalise(`INSERT INTO schema_migrations (name) VALUES (?)`), name); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(tx.Commit())
}
