package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// MigrationRunner applies the warehouse schema: the classification_results
// table the repository re-materializes batches into, and the reviews table
// behind the Postgres review store. Migration files live under the
// configured migrations path, one numbered up/down SQL pair per change.
type MigrationRunner struct {
	migrate *migrate.Migrate
	source  string
	log     *logrus.Logger
}

// NewMigrationRunner builds a runner for the warehouse named by config,
// reading migration files from config.MigrationsPath.
func NewMigrationRunner(config *domain.DatabaseConfig, logger *logrus.Logger) (*MigrationRunner, error) {
	source := sourceURL(config.MigrationsPath)
	m, err := migrate.New(source, URL(config))
	if err != nil {
		return nil, fmt.Errorf("opening migration source %s: %w", source, err)
	}

	return &MigrationRunner{
		migrate: m,
		source:  source,
		log:     logger,
	}, nil
}

// sourceURL converts a migrations directory into a file source URL.
func sourceURL(migrationsPath string) string {
	return fmt.Sprintf("file://%s", migrationsPath)
}

// Up applies all pending schema migrations. Running against an up-to-date
// warehouse is a no-op.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	mr.log.WithField("source", mr.source).Info("Applying warehouse schema migrations")

	if err := mr.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Info("Warehouse schema already current")
			return nil
		}
		return fmt.Errorf("applying schema migrations: %w", err)
	}

	mr.logSchemaVersion("Warehouse schema migrated")
	return nil
}

// Down rolls back the most recent schema migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	mr.log.WithField("source", mr.source).Info("Rolling back one schema migration")

	if err := mr.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Info("No schema migration to roll back")
			return nil
		}
		return fmt.Errorf("rolling back schema migration: %w", err)
	}

	mr.logSchemaVersion("Warehouse schema rolled back")
	return nil
}

func (mr *MigrationRunner) logSchemaVersion(msg string) {
	version, dirty, err := mr.migrate.Version()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read warehouse schema version")
		return
	}
	mr.log.WithFields(logrus.Fields{
		"source":  mr.source,
		"version": version,
		"dirty":   dirty,
	}).Info(msg)
}

// Version reports the current warehouse schema version and dirty flag.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close releases the migration source and database handles.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database handle: %w", dbErr)
	}
	return nil
}
