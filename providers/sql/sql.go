// Package sql provides database/sql connections selected by DSN scheme, with
// optional database recreation and schema migration on connect.
package sql

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/alecthomas/errors"
	"github.com/jpillora/backoff"
)

// ErrConstraint is returned by [Driver.TranslateError] when the underlying
// error is a constraint violation, whatever the engine calls it.
var ErrConstraint = errors.New("constraint violation")

//rig:external
type Config struct {
	DSN     string        `help:"DSN for the SQL connection." default:"sqlite://file:rig.db"`
	Create  bool          `help:"Recreate the database on connect."`
	Migrate bool          `help:"Apply migrations on connect."`
	Wait    time.Duration `help:"How long to wait for the database to become reachable."`
}

// A Driver adapts one database engine to the common connection logic.
type Driver interface {
	// Name is the scheme the driver is registered under.
	Name() string
	Open(dsn string) (*sql.DB, error)
	// TranslateError maps engine specific errors onto common ones such as
	// [ErrConstraint]. Unrecognised errors are returned unchanged.
	TranslateError(err error) error
	// Denormalise rewrites ? placeholders into the engine's native form.
	Denormalise(query string) string
	// RecreateDatabase drops and recreates the database identified by dsn.
	RecreateDatabase(ctx context.Context, dsn string) error
}

var drivers = map[string]Driver{}

// Register a driver for a DSN scheme. The bundled drivers self-register from
// init.
func Register(scheme string, driver Driver) {
	drivers[scheme] = driver
}

// DriverForConfig returns the driver registered for the config's DSN scheme.
//
// The scheme is everything before "://", not url.Parse's idea of one,
// because MySQL DSNs are not URLs.
func DriverForConfig(config Config) (Driver, error) {
	scheme, _, ok := strings.Cut(config.DSN, "://")
	if !ok {
		return nil, errors.Errorf("DSN %q has no scheme", config.DSN)
	}
	driver, ok := drivers[scheme]
	if !ok {
		return nil, errors.Errorf("unsupported SQL DSN scheme: %s", scheme)
	}
	return driver, nil
}

// New opens a connection for the config's DSN, optionally recreating the
// database and applying migrations first.
//
//rig:provider weak
func New(ctx context.Context, config Config, logger *slog.Logger, migrations Migrations) (*sql.DB, error) {
	driver, err := DriverForConfig(config)
	if err != nil {
		return nil, err
	}
	if config.Create {
		logger.Debug("Recreating database", "driver", driver.Name())
		if err := driver.RecreateDatabase(ctx, config.DSN); err != nil {
			return nil, errors.Errorf("failed to recreate database: %w", err)
		}
	}
	db, err := driver.Open(config.DSN)
	if err != nil {
		return nil, errors.Errorf("failed to open database connection: %w", err)
	}
	if router, ok := driver.(logRouter); ok {
		router.RouteLogs(logger)
	}
	if config.Wait > 0 {
		if err := waitForDB(ctx, db, config.Wait); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if config.Migrate {
		if err := applyMigrations(ctx, db, driver, logger, migrations); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// logRouter is implemented by drivers whose engine logs through a global
// logger that should be routed to ours.
type logRouter interface {
	RouteLogs(logger *slog.Logger)
}

// waitForDB pings the database with backoff until it responds, the timeout
// expires or ctx is cancelled.
func waitForDB(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	retry := &backoff.Backoff{Min: time.Millisecond * 100, Max: time.Second * 2, Jitter: true}
	deadline := time.Now().Add(timeout)
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("database did not become reachable within %s: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(retry.Duration()):
		}
	}
}
