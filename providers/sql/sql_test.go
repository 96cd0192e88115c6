package sql

import (
	"database/sql"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/psanford/memfs"

	"github.com/alecthomas/rig/providers/logging/loggingtest"
)

// testDB runs the common driver suite against dsn. Queries go through
// Denormalise so each engine's placeholder rewriting is exercised too.
func testDB(t *testing.T, dsn string) {
	t.Helper()
	fs := memfs.New()
	err := fs.WriteFile("000_init.sql", []byte(`
		CREATE TABLE jobs (
			id VARCHAR(32) NOT NULL PRIMARY KEY,
			state VARCHAR(16) NOT NULL
		);
	`), 0600)
	assert.NoError(t, err)

	logger := loggingtest.NewForTesting(t)
	config := Config{DSN: dsn, Create: true, Migrate: true}

	var db *sql.DB
	t.Run("RecreateConnect", func(t *testing.T) {
		db, err = New(t.Context(), config, logger, Migrations{fs})
		assert.NoError(t, err)
	})
	if db == nil {
		return
	}
	t.Cleanup(func() { _ = db.Close() })

	driver, err := DriverForConfig(config)
	assert.NoError(t, err)

	t.Run("Insert", func(t *testing.T) {
		_, err := db.ExecContext(t.Context(), driver.Denormalise(`INSERT INTO jobs (id, state) VALUES (?, ?)`), "job-1", "queued")
		assert.NoError(t, err)
	})

	t.Run("Select", func(t *testing.T) {
		state := ""
		row := db.QueryRowContext(t.Context(), driver.Denormalise(`SELECT state FROM jobs WHERE id = ?`), "job-1")
		assert.NoError(t, row.Scan(&state))
		assert.Equal(t, "queued", state)
	})

	t.Run("DuplicateInsert", func(t *testing.T) {
		_, err := db.ExecContext(t.Context(), driver.Denormalise(`INSERT INTO jobs (id, state) VALUES (?, ?)`), "job-1", "queued")
		assert.IsError(t, driver.TranslateError(err), ErrConstraint)
	})

	t.Run("MigrationsApplyOnce", func(t *testing.T) {
		err := applyMigrations(t.Context(), db, driver, logger, Migrations{fs})
		assert.NoError(t, err)
		count := 0
		row := db.QueryRowContext(t.Context(), `SELECT COUNT(*) FROM schema_migrations`)
		assert.NoError(t, row.Scan(&count))
		assert.Equal(t, 1, count)
	})
}

func TestDriverForConfig(t *testing.T) {
	driver, err := DriverForConfig(Config{DSN: "sqlite://file:test.db"})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite", driver.Name())

	driver, err = DriverForConfig(Config{DSN: "pgx://localhost:5432/db"})
	assert.NoError(t, err)
	assert.Equal(t, "postgres", driver.Name())

	_, err = DriverForConfig(Config{DSN: "oracle://localhost/db"})
	assert.EqualError(t, err, "unsupported SQL DSN scheme: oracle")

	_, err = DriverForConfig(Config{DSN: "file.db"})
	assert.EqualError(t, err, `DSN "file.db" has no scheme`)
}

func TestPostgresDenormalise(t *testing.T) {
	q := postgresDriver{}.Denormalise(`INSERT INTO jobs (id, state) VALUES (?, ?)`)
	assert.Equal(t, `INSERT INTO jobs (id, state) VALUES ($1, $2)`, q)
}
