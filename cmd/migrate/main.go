// Command migrate inspects and moves the schema version of sensorpipe's
// SQLite stores outside of the normal startup path.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/sensorpipe/internal/ingest"
	"github.com/chrissnell/sensorpipe/pkg/config"
	"github.com/chrissnell/sensorpipe/pkg/migrate"
)

// action is a parsed command line verb.
type action struct {
	verb   string
	target int
}

func main() {
	flag.Usage = usage
	var (
		store  = flag.String("store", "", "schema to manage: config or checkpoint")
		dbPath = flag.String("db", "", "path (sqlite) or connection string (postgres) of the store")
		driver = flag.String("driver", "sqlite", "database/sql driver: sqlite or postgres")
		dir    = flag.String("dir", "", "read migrations from this directory instead of the built-in set")
	)
	flag.Parse()

	act, err := parseAction(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n\n", err)
		usage()
		os.Exit(2)
	}

	provider, err := storeMigrations(*store, *driver, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n\n", err)
		usage()
		os.Exit(2)
	}

	if *dbPath == "" {
		*dbPath = defaultPath(*store)
	}

	ctx := context.Background()

	db, err := sql.Open(*driver, *dbPath)
	if err != nil {
		log.Fatalf("migrate: cannot open %s: %v", *dbPath, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("migrate: cannot reach %s: %v", *dbPath, err)
	}

	migrator := migrate.NewMigrator(db, provider)
	migrator.OnApply(func(m migrate.Migration, up bool) {
		arrow := "<-"
		if up {
			arrow = "->"
		}
		fmt.Printf("%s %03d %s\n", arrow, m.Version, m.Name)
	})

	switch act.verb {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "down":
		err = migrator.MigrateDown(ctx, act.target)
	case "to":
		err = migrator.MigrateTo(ctx, act.target)
	case "version":
		var v int
		v, err = migrator.GetCurrentVersion(ctx)
		if err == nil {
			fmt.Printf("%s schema at version %d\n", *store, v)
		}
	case "status":
		err = printStatus(ctx, *store, migrator)
	}

	if err != nil {
		log.Fatalf("migrate: %s %s: %v", *store, act.verb, err)
	}
}

// parseAction reads the verb and its optional version argument.
func parseAction(args []string) (action, error) {
	if len(args) == 0 {
		return action{verb: "status"}, nil
	}

	act := action{verb: args[0]}
	switch act.verb {
	case "up", "version", "status":
		if len(args) > 1 {
			return action{}, fmt.Errorf("%s takes no arguments", act.verb)
		}
	case "down", "to":
		if len(args) != 2 {
			return action{}, fmt.Errorf("%s needs exactly one version argument", act.verb)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return action{}, fmt.Errorf("bad version %q", args[1])
		}
		act.target = v
	default:
		return action{}, fmt.Errorf("unknown command %q", act.verb)
	}
	return act, nil
}

// storeMigrations picks the migration set for a store. dir overrides the
// embedded files but keeps the store's version table.
func storeMigrations(store, driver, dir string) (*migrate.FSProvider, error) {
	if driver != "sqlite" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	var table string
	switch store {
	case "config":
		if dir == "" {
			return config.Migrations(driver), nil
		}
		table = config.MigrationTable
	case "checkpoint":
		if dir == "" {
			return ingest.CheckpointMigrations(driver), nil
		}
		table = ingest.CheckpointMigrationTable
	case "":
		return nil, fmt.Errorf("-store is required")
	default:
		return nil, fmt.Errorf("unknown store %q", store)
	}
	return migrate.NewFSProvider(os.DirFS(dir), ".", table, driver), nil
}

func defaultPath(store string) string {
	if store == "checkpoint" {
		return config.DefaultCheckpointDB
	}
	return "config.db"
}

func printStatus(ctx context.Context, store string, migrator *migrate.Migrator) error {
	current, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}
	pending, err := migrator.GetPendingMigrations(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s schema at version %d, %d pending\n", store, current, len(pending))
	for _, m := range pending {
		fmt.Printf("   %03d %s\n", m.Version, m.Name)
	}
	return nil
}

func usage() {
	fmt.Fprint(flag.CommandLine.Output(), `usage: migrate -store config|checkpoint [-db path] [-driver sqlite|postgres] [-dir path] [command]

sensorpipe applies pending migrations on its own when it opens a store.
Use this tool to inspect a store or to roll it back by hand.

commands:
  status        list the applied version and pending migrations (default)
  version       print the applied version
  up            apply every pending migration
  down N        roll back until version N is the newest applied
  to N          move forward or back to version N

-db defaults to config.db for the config store and data/checkpoint.db
for the checkpoint store.

examples:
  migrate -store checkpoint
  migrate -store config -db /etc/sensorpipe/config.db up
  migrate -store checkpoint -db data/checkpoint.db down 0

flags:
`)
	flag.PrintDefaults()
}
