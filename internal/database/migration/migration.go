// Package migration applies the embedded PostgreSQL schema with golang-migrate.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// EnsureMigrated brings the schema to the latest embedded version. It is a no-op when the
// database is already current and fails on a dirty schema left by an earlier failed run.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger, dbHost string) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"), zap.String("db_host", dbHost))
	log.Info("db_migration_check", zap.String("status", "starting"))

	fail := func(err error) error {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		return fail(fmt.Errorf("ping before migration: %w", err))
	}

	m, err := newMigrate(ctx, db)
	if err != nil {
		return fail(err)
	}
	// Returns the dedicated connection to the pool; db itself stays open.
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("db_migration_close_failed", zap.NamedError("source_error", srcErr), zap.NamedError("db_error", dbErr))
		}
	}()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fail(fmt.Errorf("read schema version: %w", err))
	case dirty:
		return fail(fmt.Errorf("database is in dirty state at version %d (migration failed previously)", from))
	}

	latest, err := LatestVersion()
	if err != nil {
		return fail(err)
	}
	if from >= latest {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.Uint("version", from),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"), zap.Uint("from_version", from), zap.Uint("to_version", latest))
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fail(fmt.Errorf("migration failed: %w", err))
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Uint("version", latest),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// LatestVersion returns the highest migration version embedded in the binary.
func LatestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return 0, fmt.Errorf("read migration files: %w", err)
	}
	defer src.Close()
	return latestVersion(src)
}

// newMigrate binds the migrator to one pooled connection of db. postgres.WithInstance is not
// used because closing its driver closes the whole pool.
func newMigrate(ctx context.Context, db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("create source driver: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		conn.Close()
		src.Close()
		return nil, fmt.Errorf("create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		driver.Close()
		src.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			// Next fails once past the last migration.
			return version, nil
		}
		version = next
	}
}
