package sql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/alecthomas/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func init() {
	// Both postgres:// and pgx:// select this driver.
	Register("postgres", postgresDriver{})
	Register("pgx", postgresDriver{})
}

type postgresDriver struct{}

var _ Driver = (*postgresDriver)(nil)

func (postgresDriver) Name() string { return "postgres" }

func (postgresDriver) Open(dsn string) (*sql.DB, error) {
	return errors.WithStack2(sql.Open("pgx", dsn))
}

// Denormalise numbers ? placeholders as $1, $2, ...
func (postgresDriver) Denormalise(query string) string {
	out := &strings.Builder{}
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			out.WriteString("$" + strconv.Itoa(n))
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

func (postgresDriver) TranslateError(err error) error {
	var perr *pgconn.PgError
	if !errors.As(err, &perr) || !pgerrcode.IsIntegrityConstraintViolation(perr.Code) {
		return err
	}
	return errors.Errorf("%w: %w", ErrConstraint, err)
}

func (postgresDriver) RecreateDatabase(ctx context.Context, dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return errors.Errorf("failed to parse DSN: %w", err)
	}
	name := strings.Trim(u.Path, "/")
	// Reconnect without a database so the target can be dropped.
	bare := *u
	bare.Path = ""
	db, err := sql.Open("pgx", bare.String())
	if err != nil {
		return errors.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()
	// Kill other connections to the target first, so the DROP doesn't block.
	_, err = db.ExecContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()`, name)
	if err != nil {
		return errors.Errorf("failed to kill existing backends: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %q", name)); err != nil { //nolint
		return errors.Errorf("failed to drop database: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %q", name)); err != nil { //nolint
		return errors.Errorf("failed to create database: %w", err)
	}
	return nil
}
