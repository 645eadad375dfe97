package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// Environment > config file > defaults precedence; CLI flags override the
// result in the command layer.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	v.SetDefault("database.engine", EngineSQLite)
	v.SetDefault("database.path", "./data/invoicer.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime", "1h")
	v.SetDefault("database.pool.conn_max_idle_time", "30m")
	v.SetDefault("database.durability.wal_mode", true)
	v.SetDefault("database.durability.journal_mode", "")
	v.SetDefault("database.durability.synchronous", "NORMAL")
	v.SetDefault("database.durability.foreign_keys", true)
	v.SetDefault("database.durability.busy_timeout", "5s")
	v.SetDefault("database.durability.cache_shared", false)
	v.SetDefault("database.migration.enabled", true)
	v.SetDefault("database.migration.dir", "")
	v.SetDefault("database.migration.table", "schema_migrations")
	v.SetDefault("database.migration.backup_before_migration", true)
	v.SetDefault("database.import.source_dir", "./data/legacy")
	v.SetDefault("database.import.backup_dir", "./data/legacy/backup")

	// Bind environment variables with INVOICER_ prefix
	v.SetEnvPrefix("INVOICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Engine: v.GetString("database.engine"),
			Path:   v.GetString("database.path"),
			DSN:    v.GetString("database.dsn"),
			Pool: PoolConfig{
				MaxOpenConns:    v.GetInt("database.pool.max_open_conns"),
				MaxIdleConns:    v.GetInt("database.pool.max_idle_conns"),
				ConnMaxLifetime: v.GetDuration("database.pool.conn_max_lifetime"),
				ConnMaxIdleTime: v.GetDuration("database.pool.conn_max_idle_time"),
			},
			Durability: DurabilityConfig{
				WALMode:     v.GetBool("database.durability.wal_mode"),
				JournalMode: v.GetString("database.durability.journal_mode"),
				Synchronous: v.GetString("database.durability.synchronous"),
				ForeignKeys: v.GetBool("database.durability.foreign_keys"),
				BusyTimeout: v.GetDuration("database.durability.busy_timeout"),
				CacheShared: v.GetBool("database.durability.cache_shared"),
			},
			Migration: MigrationConfig{
				Enabled:               v.GetBool("database.migration.enabled"),
				Dir:                   v.GetString("database.migration.dir"),
				Table:                 v.GetString("database.migration.table"),
				BackupBeforeMigration: v.GetBool("database.migration.backup_before_migration"),
			},
			Import: ImportConfig{
				SourceDir: v.GetString("database.import.source_dir"),
				BackupDir: v.GetString("database.import.backup_dir"),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
