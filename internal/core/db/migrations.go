package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mfrits/invoicer/internal/core/config"
	"github.com/mfrits/invoicer/internal/types"
)

// Migration is one versioned schema change: a forward script and an optional
// reverse script. Version tokens are lexically sortable strings; callers
// choose tokens (e.g. zero-padded sequence numbers) that sort correctly.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationStatus reports whether and when a discovered migration was applied.
type MigrationStatus struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// LoadMigrations builds the migration manifest from one directory of
// <version>_<name>.up.<ext> / <version>_<name>.down.<ext> script pairs.
//
// The manifest is constructed once and sorted lexically by version; files
// with no recognizable up/down suffix are ignored, and a version with only a
// reverse script is invalid and not loaded. Works for both embedded
// filesystems and os.DirFS over an on-disk directory.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migration directory %q: %w", dir, err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, up, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.UpSQL = string(content)
		} else {
			m.DownSQL = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		// A migration with no forward script must not be loaded.
		if m.UpSQL == "" {
			continue
		}
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFilename splits <version>_<name>.(up|down).<ext> on the first
// underscore. Returns ok=false for anything that doesn't match the convention.
func parseMigrationFilename(filename string) (version, name string, up, ok bool) {
	base := strings.TrimSuffix(filename, path.Ext(filename))

	switch {
	case strings.HasSuffix(base, ".up"):
		up = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", false, false
	}

	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false, false
	}

	return parts[0], parts[1], up, true
}

// Runner applies and rolls back schema migrations against the Manager's
// handle. The manifest is fixed at construction; the runner never re-scans.
type Runner struct {
	mgr        *Manager
	cfg        config.MigrationConfig
	migrations []Migration
	logger     zerolog.Logger
}

// NewRunner creates a migration runner over a fixed manifest.
func NewRunner(mgr *Manager, cfg config.MigrationConfig, migrations []Migration, logger zerolog.Logger) *Runner {
	return &Runner{
		mgr:        mgr,
		cfg:        cfg,
		migrations: migrations,
		logger:     logger.With().Str("component", "migrations").Logger(),
	}
}

// RunMigrations applies every pending migration in ascending version order,
// each inside its own transaction. Returns the number applied.
//
// Already-applied versions are skipped, so re-running after a mid-run failure
// resumes where it stopped. When configured, an online backup is taken before
// the first pending migration; backup failure is a warning, not fatal.
func (r *Runner) RunMigrations(ctx context.Context) (int, error) {
	if !r.cfg.Enabled {
		r.logger.Debug().Msg("migrations disabled, skipping")
		return 0, nil
	}

	handle, err := r.mgr.Handle()
	if err != nil {
		return 0, err
	}

	if err := r.ensureMigrationTable(ctx, handle); err != nil {
		return 0, fmt.Errorf("creating migration table %q: %w", r.cfg.Table, err)
	}

	applied, err := r.appliedSet(ctx, handle)
	if err != nil {
		return 0, fmt.Errorf("loading applied migrations: %w", err)
	}

	var pending []Migration
	for _, m := range r.migrations {
		if _, ok := applied[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if r.cfg.BackupBeforeMigration {
		dest := fmt.Sprintf("%s.pre-migration-%s", r.mgr.cfg.Path, time.Now().UTC().Format("20060102T150405"))
		if err := r.mgr.CreateBackup(ctx, dest); err != nil {
			r.logger.Warn().Err(err).Msg("pre-migration backup failed")
		}
	}

	count := 0
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := r.applyMigration(ctx, handle, m); err != nil {
			return count, fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
		count++
		r.logger.Info().Str("version", m.Version).Str("name", m.Name).Msg("migration applied")
	}

	return count, nil
}

// applyMigration executes the forward script and inserts the tracking row in
// one transaction. Failure aborts this migration and the whole run; earlier
// migrations remain committed.
func (r *Runner) applyMigration(ctx context.Context, handle handleExecer, m Migration) error {
	tx, err := handle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing forward script: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (version, name, applied_at) VALUES (?, ?, ?)", r.cfg.Table)
	if _, err := tx.ExecContext(ctx, insert, m.Version, m.Name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}

// RollbackMigration reverses a single applied migration: the reverse script
// runs and the tracking row is deleted, transactionally. The migration must
// exist, carry a reverse script, and currently be applied.
func (r *Runner) RollbackMigration(ctx context.Context, version string) error {
	var target *Migration
	for i := range r.migrations {
		if r.migrations[i].Version == version {
			target = &r.migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: version %s", types.ErrMigrationNotFound, version)
	}
	if target.DownSQL == "" {
		return fmt.Errorf("%w: version %s", types.ErrNoReverseScript, version)
	}

	handle, err := r.mgr.Handle()
	if err != nil {
		return err
	}

	if err := r.ensureMigrationTable(ctx, handle); err != nil {
		return fmt.Errorf("creating migration table %q: %w", r.cfg.Table, err)
	}

	applied, err := r.appliedSet(ctx, handle)
	if err != nil {
		return fmt.Errorf("loading applied migrations: %w", err)
	}
	if _, ok := applied[version]; !ok {
		return fmt.Errorf("%w: version %s", types.ErrMigrationNotApplied, version)
	}

	tx, err := handle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
		return fmt.Errorf("executing reverse script for %s: %w", version, err)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE version = ?", r.cfg.Table)
	if _, err := tx.ExecContext(ctx, del, version); err != nil {
		return fmt.Errorf("removing migration record %s: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rollback of %s: %w", version, err)
	}

	r.logger.Info().Str("version", version).Msg("migration rolled back")
	return nil
}

// GetStatus reports, for every migration in the manifest, whether and when it
// was applied. Read-only introspection.
func (r *Runner) GetStatus(ctx context.Context) ([]MigrationStatus, error) {
	handle, err := r.mgr.Handle()
	if err != nil {
		return nil, err
	}

	if err := r.ensureMigrationTable(ctx, handle); err != nil {
		return nil, fmt.Errorf("creating migration table %q: %w", r.cfg.Table, err)
	}

	applied, err := r.appliedSet(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("loading applied migrations: %w", err)
	}

	statuses := make([]MigrationStatus, 0, len(r.migrations))
	for _, m := range r.migrations {
		status := MigrationStatus{Version: m.Version, Name: m.Name}
		if at, ok := applied[m.Version]; ok {
			status.Applied = true
			status.AppliedAt = &at
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// handleExecer is the subset of sqlx.DB the runner needs; narrows the surface
// for tests.
type handleExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

func (r *Runner) ensureMigrationTable(ctx context.Context, handle handleExecer) error {
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`, r.cfg.Table)
	_, err := handle.ExecContext(ctx, create)
	return err
}

// appliedSet returns version -> applied-at for every tracking row.
func (r *Runner) appliedSet(ctx context.Context, handle handleExecer) (map[string]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", r.cfg.Table)
	rows, err := handle.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version, appliedAt string
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, err
		}
		at, _ := time.Parse(time.RFC3339, appliedAt) // format is controlled
		applied[version] = at
	}

	return applied, rows.Err()
}
