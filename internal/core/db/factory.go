// Package db provides database connection lifecycle, schema migration, and
// online backup support for the invoicer storage layer.
//
// SQLite is the fully supported embedded engine; PostgreSQL is recognized as
// a configuration seam via lib/pq. sqlx provides connection pooling and query
// helpers, dotsql provides named embedded queries for the legacy importer.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/mfrits/invoicer/internal/core/config"
	"github.com/mfrits/invoicer/internal/types"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"

	// dirPermissions is the permission mode for created database directories.
	dirPermissions = 0o750
)

// CreateConnection builds a live, validated handle from configuration.
//
// For sqlite it resolves the file path, creates parent directories, assembles
// the DSN with pragma clauses, pings the handle, applies best-effort tuning,
// and configures pool bounds. An unsupported engine selector is the only hard
// configuration failure.
func CreateConnection(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*sqlx.DB, error) {
	var driverName string
	var dataSource string

	switch cfg.Engine {
	case config.EngineSQLite:
		driverName = driverSQLite
		dsn, err := buildSQLiteDSN(cfg)
		if err != nil {
			return nil, err
		}
		dataSource = dsn
	case config.EnginePostgres:
		driverName = driverPostgres
		dataSource = cfg.DSN
	default:
		return nil, fmt.Errorf("%w: %q (expected %q or %q)",
			types.ErrUnsupportedEngine, cfg.Engine, config.EngineSQLite, config.EnginePostgres)
	}

	handle, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Tuning statements are best-effort: a failure is logged, never fatal.
	if cfg.Engine == config.EngineSQLite {
		applyTuning(ctx, handle, logger)
	}

	handle.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	handle.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	handle.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	handle.SetConnMaxIdleTime(cfg.Pool.ConnMaxIdleTime)

	return handle, nil
}

// buildSQLiteDSN assembles the sqlite connection string. Optional clauses are
// appended in a fixed order so the same configuration always yields the same
// DSN: cache sharing, journal mode, synchronous level, foreign keys, busy
// timeout. Each clause is present only when the field is non-default.
func buildSQLiteDSN(cfg config.DatabaseConfig) (string, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return "", fmt.Errorf("invalid database path %q: %w", cfg.Path, err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), dirPermissions); err != nil {
		return "", fmt.Errorf("creating database directory: %w", err)
	}

	dsn := "file:" + absPath
	var params []string

	if cfg.Durability.CacheShared {
		params = append(params, "cache=shared")
	}
	switch {
	case cfg.Durability.WALMode:
		params = append(params, "_journal_mode=WAL")
	case cfg.Durability.JournalMode != "":
		params = append(params, "_journal_mode="+cfg.Durability.JournalMode)
	}
	if cfg.Durability.Synchronous != "" {
		params = append(params, "_synchronous="+cfg.Durability.Synchronous)
	}
	if cfg.Durability.ForeignKeys {
		params = append(params, "_foreign_keys=on")
	}
	if cfg.Durability.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", cfg.Durability.BusyTimeout.Milliseconds()))
	}

	for i, p := range params {
		if i == 0 {
			dsn += "?" + p
		} else {
			dsn += "&" + p
		}
	}

	return dsn, nil
}

// tuningStatements are applied after open on sqlite handles.
// 64MB page cache, in-memory temp store, and the optimizer hint.
var tuningStatements = []string{
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA optimize",
}

// applyTuning executes each tuning pragma, logging failures at warn level.
// The error is intentionally discarded after logging: tuning is advisory and
// must never abort connection construction.
func applyTuning(ctx context.Context, handle *sqlx.DB, logger zerolog.Logger) {
	for _, stmt := range tuningStatements {
		if _, err := handle.ExecContext(ctx, stmt); err != nil {
			logger.Warn().Err(err).Str("statement", stmt).Msg("tuning pragma failed")
		}
	}
}
