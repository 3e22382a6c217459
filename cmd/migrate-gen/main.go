// Command migrate-gen generates SQL migration files for event tables.
//
// Use it when schema is managed by external tooling instead of the
// in-process bootstrap (stores built WithoutRunningMigrations):
//
//	go run github.com/eventlock/eventlock/cmd/migrate-gen -aggregate counter -output migrations
//
// Or with go generate:
//
//	//go:generate go run github.com/eventlock/eventlock/cmd/migrate-gen -aggregate counter -output migrations
//
// Generate migrations for different database dialects:
//
//	go run github.com/eventlock/eventlock/cmd/migrate-gen -aggregate counter -dialect postgres
//	go run github.com/eventlock/eventlock/cmd/migrate-gen -aggregate counter -dialect mysql
//	go run github.com/eventlock/eventlock/cmd/migrate-gen -aggregate counter -dialect sqlite
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/eventlock/eventlock/es/migrations"
)

func main() {
	var (
		aggregate      = flag.String("aggregate", "", "Aggregate name the event table belongs to (required)")
		dialect        = flag.String("dialect", "postgres", "SQL dialect: postgres, mysql, or sqlite")
		outputFolder   = flag.String("output", "migrations", "Output folder for migration file")
		outputFilename = flag.String("filename", "", "Output filename (default: timestamp-based)")
	)

	flag.Parse()

	if *aggregate == "" {
		fmt.Fprintln(os.Stderr, "Error: -aggregate is required")
		flag.Usage()
		os.Exit(1)
	}

	config := migrations.DefaultConfig(*aggregate)
	config.OutputFolder = *outputFolder
	config.Dialect = migrations.Dialect(*dialect)
	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	path, err := migrations.Generate(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s\n", *dialect, path)
}
