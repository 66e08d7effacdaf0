package migrations

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Runner applies the SQL files under dir in source to databaseURL.
type Runner struct {
	source      fs.FS
	dir         string
	databaseURL string
}

func NewRunner(source fs.FS, dir, databaseURL string) *Runner {
	return &Runner{source: source, dir: dir, databaseURL: databaseURL}
}

func (r *Runner) open() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(r.source, r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, r.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

func (r *Runner) Up() error {
	m, err := r.open()
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Migrations applied successfully")
	return nil
}

// Down rolls back one migration.
func (r *Runner) Down() error {
	m, err := r.open()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	slog.Info("Migration rolled back successfully")
	return nil
}

func (r *Runner) Force(version string) error {
	v, err := strconv.Atoi(version)
	if err != nil {
		return fmt.Errorf("invalid version format: %w", err)
	}

	m, err := r.open()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Force(v); err != nil {
		return fmt.Errorf("failed to force migration to version %d: %w", v, err)
	}

	slog.Info("Migration forced successfully", "version", v)
	return nil
}

func (r *Runner) Version() (uint, bool, error) {
	m, err := r.open()
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}
