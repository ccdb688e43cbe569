// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the audit schema with golang-migrate.
//
// The .sql files ship embedded in the binary. Pointing MIGRATION_PATH at a
// directory replaces them, which lets an operator ship a hotfix without a
// rebuild.
package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Source selects where migrations come from. Path wins over Embedded.
type Source struct {
	Path     string
	Embedded fs.FS
	Dir      string
}

func (source Source) open(databaseURL string) (*migrate.Migrate, error) {
	switch {
	case source.Path != "":
		return migrate.New("file://"+source.Path, databaseURL)
	case source.Embedded != nil:
		driver, err := iofs.New(source.Embedded, source.Dir)
		if err != nil {
			return nil, err
		}
		return migrate.NewWithSourceInstance("iofs", driver, databaseURL)
	default:
		return nil, errors.New("no migration source configured")
	}
}

// RunUp brings the schema to the latest version. A dirty schema is reported
// and left alone.
func RunUp(dsn string, source Source, logger *slog.Logger) error {
	migrator, err := source.open(pgx5URL(dsn))
	if err != nil {
		return fmt.Errorf("migration_open: %w", err)
	}
	defer func() {
		if sourceErr, databaseErr := migrator.Close(); sourceErr != nil || databaseErr != nil {
			logger.Warn("migration_close_failed",
				slog.Any("source_error", sourceErr),
				slog.Any("database_error", databaseErr),
			)
		}
	}()
	migrator.Log = slogAdapter{logger: logger}

	from, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return fmt.Errorf("migration_version: %w", err)
	case dirty:
		return fmt.Errorf("migration_dirty: schema stuck at version %d", from)
	}

	err = migrator.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("migration_up_to_date", slog.Uint64("version", uint64(from)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration_up: %w", err)
	}

	to, _, _ := migrator.Version()
	logger.Info("migration_applied", slog.Uint64("from_version", uint64(from)), slog.Uint64("to_version", uint64(to)))
	return nil
}

// pgx5URL rewrites a postgres:// URL to the scheme the pgx v5 driver registers.
func pgx5URL(dsn string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

type slogAdapter struct {
	logger *slog.Logger
}

func (adapter slogAdapter) Printf(format string, args ...any) {
	adapter.logger.Debug("migration_step", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

func (adapter slogAdapter) Verbose() bool { return false }
