package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	_ "time/tzdata"

	"github.com/chrissnell/sensorpipe/internal/app"
	"github.com/chrissnell/sensorpipe/internal/constants"
	"github.com/chrissnell/sensorpipe/internal/engine"
	"github.com/chrissnell/sensorpipe/internal/log"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source:\n\t\t\t  YAML: config.yaml\n\t\t\t  SQLite: config.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	envFile := flag.String("env-file", ".env", "Optional file of environment overrides")
	mode := flag.String("mode", "run", "'run' processes new raw files once and exits, 'serve' starts the REST API and the schedule")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	logFile := flag.String("log-file", "", "Also write logs to this file, rotated by size")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", constants.AppName, constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug, *logFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Errorf("Failed to read environment file: %v", err)
		os.Exit(1)
	}

	cfgData, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	if err := run(cfgData, *mode); err != nil {
		log.Errorf("Application error: %v", err)
		log.Sync()
		os.Exit(exitCode(err))
	}
}

func run(cfgData *config.ConfigData, mode string) error {
	application, err := app.New(cfgData, log.GetSugaredLogger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Open(ctx); err != nil {
		return err
	}
	defer application.Close()

	switch mode {
	case "run":
		_, err = application.RunOnce(ctx)
		return err
	case "serve":
		return application.Serve(ctx)
	default:
		return fmt.Errorf("unknown mode %q. Use 'run' or 'serve'", mode)
	}
}

// exitCode separates bad input (2) from everything else (1)
func exitCode(err error) int {
	var schemaErr *engine.SchemaError
	var configErr *engine.ConfigError
	if errors.As(err, &schemaErr) || errors.As(err, &configErr) {
		return 2
	}
	return 1
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := config.Load(provider)
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cfgData, nil
}
