package persistence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// RunMigrations brings the ledger schema up to the latest version found under
// migrationsPath and logs the resulting schema version. A database left dirty
// by an interrupted migration is reported instead of migrated.
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) (err error) {
	if migrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(sourceErr, dbErr)
		}
	}()

	before, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
	case verr != nil:
		return fmt.Errorf("failed to read schema version: %w", verr)
	case dirty:
		return fmt.Errorf("schema version %d is dirty, fix it manually before starting", before)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply migrations from %s: %w", migrationsPath, err)
		}
		logger.Info("Ledger schema is up to date", "version", before)
		return nil
	}

	after, _, verr := m.Version()
	if verr != nil {
		return fmt.Errorf("failed to read schema version: %w", verr)
	}
	logger.Info("Applied ledger migrations", "from_version", before, "to_version", after)
	return nil
}
