package ingest

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/sensorpipe/internal/types"
	"github.com/chrissnell/sensorpipe/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// CheckpointMigrationTable records which checkpoint schema versions are applied.
const CheckpointMigrationTable = "checkpoint_schema_migrations"

// CheckpointMigrations returns the embedded checkpoint schema migrations.
func CheckpointMigrations(dbDriver string) *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", CheckpointMigrationTable, dbDriver)
}

// ProcessedFile is a checkpoint entry.
type ProcessedFile struct {
	Name        string    `db:"name" json:"name"`
	Rows        int       `db:"rows" json:"rows"`
	RunID       string    `db:"run_id" json:"run_id"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}

// Checkpoint records which source files have been processed so later runs
// skip them.
type Checkpoint struct {
	db *sqlx.DB
}

// OpenCheckpoint opens or creates the checkpoint database at path.
func OpenCheckpoint(ctx context.Context, path string) (*Checkpoint, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	migrator := migrate.NewMigrator(db.DB, CheckpointMigrations("sqlite"))
	if err := migrator.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate checkpoint schema: %w", err)
	}

	return &Checkpoint{db: db}, nil
}

// Processed returns the set of file names already committed.
func (c *Checkpoint) Processed(ctx context.Context) (map[string]bool, error) {
	var names []string
	if err := c.db.SelectContext(ctx, &names, `SELECT name FROM processed_files`); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	done := make(map[string]bool, len(names))
	for _, n := range names {
		done[n] = true
	}
	return done, nil
}

// Commit records every successfully ingested file of a run. Failed files are
// skipped so they are retried next time.
func (c *Checkpoint) Commit(ctx context.Context, runID string, files []types.FileStat) error {
	var entries []ProcessedFile
	now := time.Now().UTC()
	for _, f := range files {
		if f.Failed {
			continue
		}
		entries = append(entries, ProcessedFile{Name: f.Name, Rows: f.Rows, RunID: runID, ProcessedAt: now})
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.NamedExecContext(ctx, `
			INSERT OR REPLACE INTO processed_files (name, rows, run_id, processed_at)
			VALUES (:name, :rows, :run_id, :processed_at)`, e)
		if err != nil {
			return fmt.Errorf("failed to checkpoint %s: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

// List returns all checkpoint entries ordered by name.
func (c *Checkpoint) List(ctx context.Context) ([]ProcessedFile, error) {
	var files []ProcessedFile
	err := c.db.SelectContext(ctx, &files, `SELECT name, rows, run_id, processed_at FROM processed_files ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoint: %w", err)
	}
	return files, nil
}

// Close closes the checkpoint database.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}
