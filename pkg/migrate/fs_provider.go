package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// migrationFile matches 001_create_things.up.sql and 001_create_things.down.sql
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads migrations from a file system, typically an embed.FS
type FSProvider struct {
	fsys           fs.FS
	dir            string
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFSProvider creates a provider reading migrations from dir within fsys
func NewFSProvider(fsys fs.FS, dir, migrationTable, dbDriver string) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	if dbDriver == "" {
		dbDriver = "sqlite"
	}
	return &FSProvider{
		fsys:           fsys,
		dir:            dir,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// GetMigrations loads all migrations found in the directory
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", p.dir, err)
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationFile.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", e.Name(), err)
		}

		content, err := fs.ReadFile(p.fsys, path.Join(p.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = mig
		}
		if matches[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *FSProvider) CreateMigrationTable(ctx context.Context, db DB) error {
	tsType := "DATETIME"
	if p.dbDriver == "postgres" {
		tsType = "TIMESTAMP"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)`, p.migrationTable, tsType)

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *FSProvider) GetCurrentVersion(ctx context.Context, db DB) (int, error) {
	var version int
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as the applied version. Rolling back removes
// the rows above it.
func (p *FSProvider) SetVersion(ctx context.Context, db DB, version int) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version > %s", p.migrationTable, p.placeholder()), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}

	var query string
	if p.dbDriver == "postgres" {
		query = fmt.Sprintf(`
			INSERT INTO %s (version, applied_at)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP`, p.migrationTable)
	} else {
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (version, applied_at)
			VALUES (?, CURRENT_TIMESTAMP)`, p.migrationTable)
	}
	if _, err := db.ExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}

func (p *FSProvider) placeholder() string {
	if p.dbDriver == "postgres" {
		return "$1"
	}
	return "?"
}
