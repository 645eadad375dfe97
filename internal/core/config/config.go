// Package config provides configuration management for the invoicer storage layer.
package config

import (
	"fmt"
	"time"
)

// Supported database engines. The selector is a configuration seam: sqlite is
// the fully supported embedded engine, postgres is recognized by the factory
// but carries no pragma tuning or online backup support.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// PoolConfig holds connection pool bounds.
// SQLite is effectively single-writer, so defaults are deliberately small.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DurabilityConfig holds engine consistency and durability knobs.
// Each non-default field contributes one clause to the SQLite DSN.
type DurabilityConfig struct {
	// WALMode enables Write-Ahead Logging for concurrent reads during writes.
	WALMode bool

	// JournalMode names an explicit journal mode when WALMode is false
	// (e.g. DELETE, TRUNCATE). Empty means the engine default.
	JournalMode string

	// Synchronous sets the durability level (OFF, NORMAL, FULL). Empty means default.
	Synchronous string

	// ForeignKeys enables foreign key enforcement.
	// SQLite disables it by default; the invoicing schema relies on it.
	ForeignKeys bool

	// BusyTimeout is the maximum wait for a database lock.
	BusyTimeout time.Duration

	// CacheShared enables shared-cache mode across connections.
	CacheShared bool
}

// MigrationConfig holds schema migration options.
type MigrationConfig struct {
	// Enabled gates RunMigrations; when false the runner is a no-op.
	Enabled bool

	// Dir is an on-disk migration script directory. Empty means the
	// migrations embedded in the binary.
	Dir string

	// Table is the tracking table name.
	Table string

	// BackupBeforeMigration takes an online backup before applying pending
	// migrations. Backup failure is a warning, never fatal.
	BackupBeforeMigration bool
}

// ImportConfig holds legacy flat-file import options.
type ImportConfig struct {
	// SourceDir contains the legacy JSON documents
	// (seller.json, customers.json, products.json, receipts.json).
	SourceDir string

	// BackupDir receives timestamped copies of the source files before import.
	BackupDir string
}

// DatabaseConfig holds everything needed to build and supervise a handle.
type DatabaseConfig struct {
	Engine     string
	Path       string // sqlite database file
	DSN        string // postgres connection string
	Pool       PoolConfig
	Durability DurabilityConfig
	Migration  MigrationConfig
	Import     ImportConfig
}

// Config is the top-level configuration object, loaded once at startup.
type Config struct {
	Database DatabaseConfig
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Engine: EngineSQLite,
			Path:   "./data/invoicer.db",
			Pool: PoolConfig{
				MaxOpenConns:    1,
				MaxIdleConns:    1,
				ConnMaxLifetime: time.Hour,
				ConnMaxIdleTime: 30 * time.Minute,
			},
			Durability: DurabilityConfig{
				WALMode:     true,
				Synchronous: "NORMAL",
				ForeignKeys: true,
				BusyTimeout: 5 * time.Second,
			},
			Migration: MigrationConfig{
				Enabled:               true,
				Table:                 "schema_migrations",
				BackupBeforeMigration: true,
			},
			Import: ImportConfig{
				SourceDir: "./data/legacy",
				BackupDir: "./data/legacy/backup",
			},
		},
	}
}

// Validate checks the configuration for values that would fail at first use.
// Engine validation is the one hard failure path mandated for the factory;
// checking here as well surfaces mistakes before any I/O.
func (c *Config) Validate() error {
	db := &c.Database

	switch db.Engine {
	case EngineSQLite:
		if db.Path == "" {
			return fmt.Errorf("database.path required for engine %q", EngineSQLite)
		}
	case EnginePostgres:
		if db.DSN == "" {
			return fmt.Errorf("database.dsn required for engine %q", EnginePostgres)
		}
	default:
		return fmt.Errorf("database.engine must be %q or %q, got %q", EngineSQLite, EnginePostgres, db.Engine)
	}

	if db.Pool.MaxOpenConns <= 0 {
		return fmt.Errorf("database.pool.max_open_conns must be positive, got %d", db.Pool.MaxOpenConns)
	}
	if db.Pool.MaxIdleConns < 0 {
		return fmt.Errorf("database.pool.max_idle_conns must not be negative, got %d", db.Pool.MaxIdleConns)
	}
	if db.Pool.MaxIdleConns > db.Pool.MaxOpenConns {
		return fmt.Errorf("database.pool.max_idle_conns (%d) exceeds max_open_conns (%d)",
			db.Pool.MaxIdleConns, db.Pool.MaxOpenConns)
	}
	if db.Durability.BusyTimeout < 0 {
		return fmt.Errorf("database.durability.busy_timeout must not be negative, got %v", db.Durability.BusyTimeout)
	}
	if db.Migration.Table == "" {
		return fmt.Errorf("database.migration.table must not be empty")
	}

	return nil
}
