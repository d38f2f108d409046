package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/chrissnell/sensorpipe/pkg/migrate"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    action
		wantErr bool
	}{
		{"no command shows status", nil, action{verb: "status"}, false},
		{"up", []string{"up"}, action{verb: "up"}, false},
		{"down to zero", []string{"down", "0"}, action{verb: "down", target: 0}, false},
		{"to version", []string{"to", "3"}, action{verb: "to", target: 3}, false},
		{"down without version", []string{"down"}, action{}, true},
		{"negative version", []string{"to", "-1"}, action{}, true},
		{"extra argument", []string{"version", "2"}, action{}, true},
		{"unknown command", []string{"sideways"}, action{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAction(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseAction() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStoreMigrations(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_extra.up.sql"), []byte("CREATE TABLE extra (id INTEGER);"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "001_extra.down.sql"), []byte("DROP TABLE extra;"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		store     string
		driver    string
		dir       string
		wantName  string
		wantTable string
		wantErr   bool
	}{
		{"config built-in", "config", "sqlite", "", "initial_schema", "config_schema_migrations", false},
		{"checkpoint built-in", "checkpoint", "sqlite", "", "processed_files", "checkpoint_schema_migrations", false},
		{"checkpoint from disk", "checkpoint", "sqlite", dir, "extra", "checkpoint_schema_migrations", false},
		{"missing store", "", "sqlite", "", "", "", true},
		{"unknown store", "weather", "sqlite", "", "", "", true},
		{"unknown driver", "config", "mysql", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := storeMigrations(tt.store, tt.driver, tt.dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("storeMigrations() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			migrations, err := provider.GetMigrations()
			if err != nil {
				t.Fatal(err)
			}
			if len(migrations) != 1 || migrations[0].Version != 1 || migrations[0].Name != tt.wantName {
				t.Errorf("migrations = %+v, want version 1 %q", migrations, tt.wantName)
			}

			db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "store.db"))
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()

			if err := migrate.NewMigrator(db, provider).MigrateUp(context.Background()); err != nil {
				t.Fatalf("MigrateUp() error = %v", err)
			}
			var applied int
			if err := db.QueryRow("SELECT COUNT(*) FROM " + tt.wantTable).Scan(&applied); err != nil {
				t.Fatalf("version table %s: %v", tt.wantTable, err)
			}
			if applied != 1 {
				t.Errorf("%s has %d rows, want 1", tt.wantTable, applied)
			}
		})
	}
}
