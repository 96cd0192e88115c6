package sql

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/alecthomas/errors"
	"modernc.org/sqlite"
)

func init() {
	Register("sqlite", sqliteDriver{})
}

// sqliteDriver stores its database in a single file, or in memory. DSNs look
// like "sqlite://file:rig.db" and everything after the scheme is handed to
// the driver untouched.
type sqliteDriver struct{}

var _ Driver = (*sqliteDriver)(nil)

func (sqliteDriver) Name() string { return "sqlite" }

func (sqliteDriver) Open(dsn string) (*sql.DB, error) {
	return errors.WithStack2(sql.Open("sqlite", sqliteDSN(dsn)))
}

// Placeholders are already ?, so queries pass through untouched.
func (sqliteDriver) Denormalise(query string) string { return query }

// SQLITE_CONSTRAINT plus the FOREIGNKEY, PRIMARYKEY and UNIQUE variants.
var sqliteConstraintCodes = map[int]bool{19: true, 787: true, 1555: true, 2067: true}

func (sqliteDriver) TranslateError(err error) error {
	var serr *sqlite.Error
	if !errors.As(err, &serr) || !sqliteConstraintCodes[serr.Code()] {
		return err
	}
	return errors.Errorf("%w: %w", ErrConstraint, err)
}

// RecreateDatabase removes the backing file. In-memory databases have nothing
// to remove.
func (sqliteDriver) RecreateDatabase(ctx context.Context, dsn string) error {
	if strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	err := os.Remove(strings.TrimPrefix(sqliteDSN(dsn), "file:"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.WithStack(err)
	}
	return nil
}

func sqliteDSN(dsn string) string {
	return strings.TrimPrefix(dsn, "sqlite://")
}
