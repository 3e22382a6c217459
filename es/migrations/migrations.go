// Package migrations provides idempotent schema bootstrap for event tables.
package migrations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eventlock/eventlock/es"
)

// Dialect selects the SQL dialect to render DDL for.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// TableName returns the event table name for an aggregate, keyed by the
// aggregate's stable name.
func TableName(aggregateName string) string {
	return aggregateName + "_events"
}

// Statements returns the idempotent DDL ensuring the event table for one
// aggregate exists. Every statement is safe to run repeatedly.
//
// The schema is intentionally minimal: one table per aggregate with a
// unique event id and a unique (aggregate_id, sequence_number) pair. The
// pair uniqueness is the optimistic-concurrency arbiter; the stores rely
// on the constraint rather than on locks.
func Statements(dialect Dialect, table string) ([]string, error) {
	switch dialect {
	case Postgres:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id UUID PRIMARY KEY,
    aggregate_id UUID NOT NULL,
    payload BYTEA NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    sequence_number BIGINT NOT NULL
)`, table),
			fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_aggregate_id_sequence_number
    ON %s (aggregate_id, sequence_number)`, table, table),
		}, nil
	case MySQL:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id CHAR(36) NOT NULL PRIMARY KEY,
    aggregate_id CHAR(36) NOT NULL,
    payload BLOB NOT NULL,
    occurred_at TIMESTAMP(6) NOT NULL,
    sequence_number BIGINT NOT NULL,
    UNIQUE KEY %s_aggregate_id_sequence_number (aggregate_id, sequence_number)
)`, table, table),
		}, nil
	case SQLite:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT NOT NULL PRIMARY KEY,
    aggregate_id TEXT NOT NULL,
    payload BLOB NOT NULL,
    occurred_at TEXT NOT NULL,
    sequence_number INTEGER NOT NULL
)`, table),
			fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_aggregate_id_sequence_number
    ON %s (aggregate_id, sequence_number)`, table, table),
		}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
}

// Run executes the ensure-schema statements for one aggregate's event
// table. It is idempotent and intended to be invoked once per store
// construction; stores expose an opt-out for environments managing
// schema externally.
func Run(ctx context.Context, db es.DBTX, dialect Dialect, table string) error {
	stmts, err := Statements(dialect, table)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration for table %s: %w", table, err)
		}
	}
	return nil
}

// Config configures migration file generation.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// Dialect selects the SQL dialect to render
	Dialect Dialect

	// AggregateName is the aggregate the event table belongs to
	AggregateName string
}

// DefaultConfig returns the default configuration for an aggregate.
func DefaultConfig(aggregateName string) Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_create_%s.sql", timestamp, TableName(aggregateName)),
		Dialect:        Postgres,
		AggregateName:  aggregateName,
	}
}

// Generate writes the ensure-schema DDL to a migration file, for
// environments that manage schema with external tooling instead of the
// in-process bootstrap. Returns the path of the written file.
func Generate(config Config) (string, error) {
	stmts, err := Statements(config.Dialect, TableName(config.AggregateName))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := fmt.Sprintf("-- Event table for aggregate %q\n-- Generated: %s\n\n",
		config.AggregateName, time.Now().Format(time.RFC3339))
	for _, stmt := range stmts {
		sql += stmt + ";\n\n"
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return "", fmt.Errorf("failed to write migration file: %w", err)
	}
	return outputPath, nil
}
