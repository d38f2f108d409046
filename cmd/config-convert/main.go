package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	_ "time/tzdata"

	"github.com/chrissnell/sensorpipe/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	fmt.Printf("Loading YAML configuration...\n")
	yamlProvider := config.NewYAMLProvider(*yamlFile)
	configData, err := yamlProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	// Defaults only fill what validation needs; the file is otherwise stored as written
	check := *configData
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration is invalid: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("  Loaded %d reading types, %d controllers\n", len(configData.ReadingTypes), len(configData.Controllers))

	if *dryRun {
		printConfigSummary(configData)
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Creating SQLite database...\n")
	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	// The provider applies the schema migrations when it opens the database
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	fmt.Printf("Loading configuration into SQLite database...\n")
	if err := sqliteProvider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		sqliteProvider.Close()
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func printConfigSummary(configData *config.ConfigData) {
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Time zone: %s\n", configData.Pipeline.Timezone)

	fmt.Printf("Reading types (%d):\n", len(configData.ReadingTypes))
	for _, rt := range configData.ReadingTypes {
		line := fmt.Sprintf("  - %s", rt.Name)
		if rt.Min != nil && rt.Max != nil {
			line += fmt.Sprintf(" [%g, %g]", *rt.Min, *rt.Max)
		}
		if rt.Calibration != nil {
			line += fmt.Sprintf(" scale=%g offset=%g", rt.Calibration.Scale, rt.Calibration.Offset)
		}
		fmt.Println(line)
	}

	fmt.Printf("\nStorage Backends:\n")
	s := configData.Storage
	if s.Partition != nil {
		fmt.Printf("  - Partition: %s\n", s.Partition.Backend)
	}
	if s.TimescaleDB != nil {
		fmt.Printf("  - TimescaleDB\n")
	}
	if s.InfluxDB != nil {
		fmt.Printf("  - InfluxDB: %s\n", s.InfluxDB.URL)
	}
	if s.Kafka != nil {
		fmt.Printf("  - Kafka: %s\n", s.Kafka.Topic)
	}
	if s.MQTT != nil {
		fmt.Printf("  - MQTT: %s\n", s.MQTT.Broker)
	}

	fmt.Printf("\nControllers (%d):\n", len(configData.Controllers))
	for _, controller := range configData.Controllers {
		fmt.Printf("  - %s\n", controller.Type)
	}
}
