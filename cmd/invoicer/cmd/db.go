package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfrits/invoicer/internal/core/config"
	"github.com/mfrits/invoicer/internal/core/db"
	"github.com/mfrits/invoicer/internal/core/jsonmigrate"
	"github.com/mfrits/invoicer/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database lifecycle, migration, and import commands",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending schema migrations",
	RunE:  runMigrate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status and database health",
	RunE:  runStatus,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <version>",
	Short: "Roll back a single applied migration",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

var backupCmd = &cobra.Command{
	Use:   "backup <destination>",
	Short: "Create an online point-in-time backup of the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackup,
}

var importJSONCmd = &cobra.Command{
	Use:   "import-json",
	Short: "Import legacy flat-file records into the relational schema",
	RunE:  runImportJSON,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(migrateCmd, statusCmd, rollbackCmd, backupCmd, importJSONCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so blocking
// database operations abort instead of completing silently.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openManager loads configuration and connects. Callers own Disconnect.
func openManager(ctx context.Context) (*config.Config, *db.Manager, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	mgr := db.NewManager(cfg.Database, rootLogger)
	if err := mgr.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return cfg, mgr, nil
}

// buildRunner constructs the migration runner over the embedded manifest, or
// an on-disk directory when one is configured.
func buildRunner(cfg *config.Config, mgr *db.Manager) (*db.Runner, error) {
	var fsys fs.FS = migrations.SqliteMigrations
	dir := migrations.Dir
	if cfg.Database.Migration.Dir != "" {
		fsys = os.DirFS(cfg.Database.Migration.Dir)
		dir = "."
	}

	manifest, err := db.LoadMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return db.NewRunner(mgr, cfg.Database.Migration, manifest, rootLogger), nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, mgr, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer mgr.Disconnect()

	runner, err := buildRunner(cfg, mgr)
	if err != nil {
		return err
	}

	applied, err := runner.RunMigrations(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d migration(s)\n", applied)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, mgr, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer mgr.Disconnect()

	runner, err := buildRunner(cfg, mgr)
	if err != nil {
		return err
	}

	statuses, err := runner.GetStatus(ctx)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		mark := "pending"
		if s.Applied {
			mark = "applied " + s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Printf("%-8s %-32s %s\n", s.Version, s.Name, mark)
	}

	health := mgr.GetHealthStatus(ctx)
	fmt.Printf("healthy=%v latency=%v open=%d in_use=%d idle=%d\n",
		health.Healthy, health.Latency,
		health.Pool.OpenConnections, health.Pool.InUse, health.Pool.Idle)
	return nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, mgr, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer mgr.Disconnect()

	runner, err := buildRunner(cfg, mgr)
	if err != nil {
		return err
	}

	if err := runner.RollbackMigration(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("rolled back migration %s\n", args[0])
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	_, mgr, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer mgr.Disconnect()

	if err := mgr.CreateBackup(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("backup written to %s\n", args[0])
	return nil
}

func runImportJSON(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, mgr, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer mgr.Disconnect()

	// Schema must be converged before the data import.
	runner, err := buildRunner(cfg, mgr)
	if err != nil {
		return err
	}
	if _, err := runner.RunMigrations(ctx); err != nil {
		return err
	}

	handle, err := mgr.Handle()
	if err != nil {
		return err
	}
	queries, err := db.LoadQueries(handle)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	migrator := jsonmigrate.New(mgr, queries, cfg.Database.Import, rootLogger)
	report, err := migrator.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("import %s: processed=%d skipped=%d duration=%v\n",
		report.RunID, report.Processed, report.Skipped, report.Duration)
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	counts, err := migrator.ValidateMigration(ctx, report)
	if err != nil {
		return err
	}
	for table, n := range counts {
		fmt.Printf("  %s: %d row(s)\n", table, n)
	}
	return nil
}
