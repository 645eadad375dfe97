package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mfrits/invoicer/internal/types"
)

// openTestManager returns a connected Manager over a temp sqlite file.
func openTestManager(t *testing.T, ctx context.Context) *Manager {
	t.Helper()
	mgr := NewManager(testDatabaseConfig(t), zerolog.Nop())
	if err := mgr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { mgr.Disconnect() })
	return mgr
}

func TestManagerConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("connect transitions to connected", func(t *testing.T) {
		mgr := openTestManager(t, ctx)
		if got := mgr.State(); got != StateConnected {
			t.Errorf("State() = %v, want connected", got)
		}
		if _, err := mgr.Handle(); err != nil {
			t.Errorf("Handle() error = %v", err)
		}
	})

	t.Run("second connect rejected, handle untouched", func(t *testing.T) {
		mgr := openTestManager(t, ctx)

		before, _ := mgr.Stats()
		err := mgr.Connect(ctx)
		if !errors.Is(err, types.ErrAlreadyConnected) {
			t.Fatalf("Connect() error = %v, want ErrAlreadyConnected", err)
		}
		after, connected := mgr.Stats()
		if !connected {
			t.Fatal("Stats() connected = false after rejected Connect")
		}
		if before.MaxOpenConnections != after.MaxOpenConnections || before.OpenConnections != after.OpenConnections {
			t.Errorf("pool stats changed across rejected Connect: %+v vs %+v", before, after)
		}
	})

	t.Run("unsupported engine leaves manager disconnected", func(t *testing.T) {
		cfg := testDatabaseConfig(t)
		cfg.Engine = "cockroach"
		mgr := NewManager(cfg, zerolog.Nop())

		if err := mgr.Connect(ctx); !errors.Is(err, types.ErrUnsupportedEngine) {
			t.Fatalf("Connect() error = %v, want ErrUnsupportedEngine", err)
		}
		if got := mgr.State(); got != StateDisconnected {
			t.Errorf("State() = %v, want disconnected", got)
		}
	})
}

func TestManagerDisconnect(t *testing.T) {
	ctx := context.Background()
	mgr := openTestManager(t, ctx)

	if err := mgr.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	// Idempotent: second call is not an error.
	if err := mgr.Disconnect(); err != nil {
		t.Fatalf("second Disconnect() error = %v", err)
	}

	if _, err := mgr.Handle(); !errors.Is(err, types.ErrNotConnected) {
		t.Errorf("Handle() error = %v, want ErrNotConnected", err)
	}
	if _, ok := mgr.LastHealthStatus(); ok {
		t.Error("LastHealthStatus() present after Disconnect, want cleared")
	}
}

func TestManagerReconnect(t *testing.T) {
	ctx := context.Background()
	mgr := openTestManager(t, ctx)

	if err := mgr.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if got := mgr.State(); got != StateConnected {
		t.Errorf("State() after Reconnect = %v, want connected", got)
	}
	if err := mgr.CheckHealth(ctx); err != nil {
		t.Errorf("CheckHealth() after Reconnect error = %v", err)
	}
}

func TestManagerReconnect_CancelledDuringSettle(t *testing.T) {
	mgr := openTestManager(t, context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := mgr.Reconnect(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Reconnect() error = %v, want context.Canceled", err)
	}
	if got := mgr.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want disconnected after cancelled reconnect", got)
	}
}

func TestManagerHealth(t *testing.T) {
	ctx := context.Background()
	mgr := openTestManager(t, ctx)

	if err := mgr.CheckHealth(ctx); err != nil {
		t.Fatalf("CheckHealth() error = %v", err)
	}

	status := mgr.GetHealthStatus(ctx)
	if !status.Healthy {
		t.Errorf("GetHealthStatus() healthy = false: %s", status.Error)
	}
	if status.CheckedAt.IsZero() {
		t.Error("GetHealthStatus() CheckedAt is zero")
	}

	cached, ok := mgr.LastHealthStatus()
	if !ok || !cached.Healthy {
		t.Errorf("LastHealthStatus() = %+v, %v", cached, ok)
	}
}

// setupControlTable creates an unrelated table used to verify rollback leaves
// prior state intact.
func setupControlTable(t *testing.T, ctx context.Context, mgr *Manager) {
	t.Helper()
	handle, err := mgr.Handle()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := handle.ExecContext(ctx, "CREATE TABLE control (n INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := handle.ExecContext(ctx, "INSERT INTO control (n) VALUES (1), (2)"); err != nil {
		t.Fatal(err)
	}
}

func controlRows(t *testing.T, ctx context.Context, mgr *Manager) int {
	t.Helper()
	handle, err := mgr.Handle()
	if err != nil {
		t.Fatal(err)
	}
	var n int
	if err := handle.QueryRowContext(ctx, "SELECT COUNT(*) FROM control").Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestWithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		mgr := openTestManager(t, ctx)
		setupControlTable(t, ctx, mgr)

		err := mgr.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO control (n) VALUES (3)")
			return err
		})
		if err != nil {
			t.Fatalf("WithTransaction() error = %v", err)
		}
		if got := controlRows(t, ctx, mgr); got != 3 {
			t.Errorf("control rows = %d, want 3", got)
		}
	})

	t.Run("full rollback on error", func(t *testing.T) {
		mgr := openTestManager(t, ctx)
		setupControlTable(t, ctx, mgr)
		before := controlRows(t, ctx, mgr)

		wantErr := fmt.Errorf("boom")
		err := mgr.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO control (n) VALUES (99)"); err != nil {
				return err
			}
			return wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Fatalf("WithTransaction() error = %v, want boom", err)
		}
		if got := controlRows(t, ctx, mgr); got != before {
			t.Errorf("control rows = %d, want %d (full rollback)", got, before)
		}
	})

	t.Run("panic rolls back and re-raises", func(t *testing.T) {
		mgr := openTestManager(t, ctx)
		setupControlTable(t, ctx, mgr)
		before := controlRows(t, ctx, mgr)

		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Error("WithTransaction() swallowed the panic")
				}
			}()
			mgr.WithTransaction(ctx, func(tx *sqlx.Tx) error {
				tx.ExecContext(ctx, "INSERT INTO control (n) VALUES (99)")
				panic("mid-transaction failure")
			})
		}()

		if got := controlRows(t, ctx, mgr); got != before {
			t.Errorf("control rows = %d, want %d after panic rollback", got, before)
		}

		// No transaction left open: a fresh one must begin and commit.
		err := mgr.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO control (n) VALUES (5)")
			return err
		})
		if err != nil {
			t.Fatalf("WithTransaction() after panic error = %v", err)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		mgr := NewManager(testDatabaseConfig(t), zerolog.Nop())
		err := mgr.WithTransaction(ctx, func(tx *sqlx.Tx) error { return nil })
		if !errors.Is(err, types.ErrNotConnected) {
			t.Fatalf("WithTransaction() error = %v, want ErrNotConnected", err)
		}
	})
}

func TestCreateBackup(t *testing.T) {
	ctx := context.Background()

	t.Run("online copy is a usable database", func(t *testing.T) {
		mgr := openTestManager(t, ctx)
		setupControlTable(t, ctx, mgr)

		dest := filepath.Join(t.TempDir(), "backups", "copy.db")
		if err := mgr.CreateBackup(ctx, dest); err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}

		info, err := os.Stat(dest)
		if err != nil {
			t.Fatalf("backup file missing: %v", err)
		}
		if info.Size() == 0 {
			t.Error("backup file is empty")
		}

		// The copy must open and answer queries on its own.
		copyDB, err := sqlx.Open("sqlite3", "file:"+dest)
		if err != nil {
			t.Fatalf("open backup: %v", err)
		}
		defer copyDB.Close()
		var n int
		if err := copyDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM control").Scan(&n); err != nil {
			t.Fatalf("query backup: %v", err)
		}
		if n != 2 {
			t.Errorf("backup control rows = %d, want 2", n)
		}
	})

	t.Run("existing destination rejected", func(t *testing.T) {
		mgr := openTestManager(t, ctx)
		dest := filepath.Join(t.TempDir(), "copy.db")
		if err := os.WriteFile(dest, []byte("occupied"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := mgr.CreateBackup(ctx, dest); err == nil {
			t.Fatal("CreateBackup() expected error for existing destination")
		}
	})

	t.Run("unsupported for postgres engine", func(t *testing.T) {
		cfg := testDatabaseConfig(t)
		cfg.Engine = "postgres"
		cfg.DSN = "postgres://localhost/invoicer"
		mgr := NewManager(cfg, zerolog.Nop())

		err := mgr.CreateBackup(ctx, filepath.Join(t.TempDir(), "copy.db"))
		if !errors.Is(err, types.ErrBackupUnsupported) {
			t.Fatalf("CreateBackup() error = %v, want ErrBackupUnsupported", err)
		}
	})
}

func TestMonitors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mgr := openTestManager(t, context.Background())

	mgr.StartHealthCheckMonitor(ctx, 10*time.Millisecond)
	mgr.StartStatsLogger(ctx, 10*time.Millisecond)

	// Let both loops tick at least once, including against a disconnected
	// manager: failures must be recorded, never crash the loop.
	time.Sleep(35 * time.Millisecond)
	mgr.Disconnect()
	time.Sleep(35 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
}
