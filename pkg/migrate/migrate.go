// Package migrate applies versioned SQL schema migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB represents either a database connection or transaction
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MigrationProvider defines how migrations are loaded and how the applied
// version is tracked
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	CreateMigrationTable(ctx context.Context, db DB) error
	GetCurrentVersion(ctx context.Context, db DB) (int, error)
	SetVersion(ctx context.Context, db DB, version int) error
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	onApply  func(m Migration, up bool)
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB, provider MigrationProvider) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
	}
}

// OnApply registers a callback invoked after each migration is committed.
func (m *Migrator) OnApply(fn func(m Migration, up bool)) {
	m.onApply = fn
}

// MigrateUp runs all pending migrations up to the latest version
func (m *Migrator) MigrateUp(ctx context.Context) error {
	return m.MigrateTo(ctx, -1)
}

// MigrateTo runs migrations up or down to reach targetVersion. A target of -1
// means the latest known migration.
func (m *Migrator) MigrateTo(ctx context.Context, targetVersion int) error {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return err
	}

	if targetVersion == -1 {
		targetVersion = 0
		if len(migrations) > 0 {
			targetVersion = migrations[len(migrations)-1].Version
		}
	}

	if targetVersion < current {
		return m.migrateDown(ctx, migrations, current, targetVersion)
	}

	for _, mig := range migrations {
		if mig.Version > current && mig.Version <= targetVersion {
			if err := m.execute(ctx, mig, true); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// MigrateDown reverts migrations until targetVersion is the applied version
func (m *Migrator) MigrateDown(ctx context.Context, targetVersion int) error {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return err
	}
	return m.migrateDown(ctx, migrations, current, targetVersion)
}

func (m *Migrator) migrateDown(ctx context.Context, migrations []Migration, current, target int) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.Version > target && mig.Version <= current {
			if err := m.execute(ctx, mig, false); err != nil {
				return fmt.Errorf("failed to rollback migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// GetCurrentVersion returns the applied migration version, creating the
// tracking table if needed
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int, error) {
	if err := m.provider.CreateMigrationTable(ctx, m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	v, err := m.provider.GetCurrentVersion(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (m *Migrator) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

func (m *Migrator) sortedMigrations() ([]Migration, error) {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// execute runs a single migration and records the new version in one transaction
func (m *Migrator) execute(ctx context.Context, mig Migration, up bool) error {
	stmt, newVersion, direction := mig.Up, mig.Version, "up"
	if !up {
		stmt, newVersion, direction = mig.Down, mig.Version-1, "down"
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", mig.Version, direction)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.provider.SetVersion(ctx, tx, newVersion); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	if m.onApply != nil {
		m.onApply(mig, up)
	}
	return nil
}
