package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mfrits/invoicer/internal/core/config"
	"github.com/mfrits/invoicer/internal/types"
)

// State is the Manager connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// reconnectSettleDelay is the pause between Disconnect and Connect during
// Reconnect, to avoid hammering a possibly-recovering backend.
const reconnectSettleDelay = 500 * time.Millisecond

// Manager owns the single live handle and sequences
// Connect -> Migrate -> supervise -> Disconnect.
//
// All mutation, including by the migration runner and the legacy importer,
// flows through handles obtained here; no component opens its own connection
// to the same file. A single mutex guards state transitions and the handle.
type Manager struct {
	cfg    config.DatabaseConfig
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	handle     *sqlx.DB
	lastHealth *HealthStatus
}

// NewManager creates a disconnected Manager for the given configuration.
func NewManager(cfg config.DatabaseConfig, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With().Str("component", "db").Logger(),
	}
}

// Connect builds a handle via CreateConnection and warms the pool.
// Returns ErrAlreadyConnected when a live handle exists; the existing handle
// is left untouched. Any warm-up failure closes the new handle so a partially
// initialized pool is never reachable.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	if m.state == StateConnected {
		return types.ErrAlreadyConnected
	}

	m.state = StateConnecting

	handle, err := CreateConnection(ctx, m.cfg, m.logger)
	if err != nil {
		m.state = StateDisconnected
		return fmt.Errorf("connect: %w", err)
	}

	if err := warmUp(ctx, handle, m.cfg.Pool.MaxIdleConns); err != nil {
		handle.Close()
		m.state = StateDisconnected
		return fmt.Errorf("connect: warm-up failed: %w", err)
	}

	m.handle = handle
	m.state = StateConnected
	m.logger.Info().
		Str("engine", m.cfg.Engine).
		Int("max_open_conns", m.cfg.Pool.MaxOpenConns).
		Msg("database connected")
	return nil
}

// warmUp issues sequential pings to surface connectivity problems before
// first real use. N is max idle connections, or 1, whichever is larger.
func warmUp(ctx context.Context, handle *sqlx.DB, maxIdle int) error {
	n := maxIdle
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		if err := handle.PingContext(ctx); err != nil {
			return fmt.Errorf("ping %d/%d: %w", i+1, n, err)
		}
	}
	return nil
}

// Disconnect closes the handle and clears cached health status.
// Idempotent: disconnecting a disconnected Manager is not an error.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectLocked()
}

func (m *Manager) disconnectLocked() error {
	if m.handle == nil {
		m.state = StateDisconnected
		return nil
	}

	err := m.handle.Close()
	m.handle = nil
	m.lastHealth = nil
	m.state = StateDisconnected

	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	m.logger.Info().Msg("database disconnected")
	return nil
}

// Reconnect is Disconnect followed by Connect with a brief settling pause.
// Cancelling the context during the pause aborts the reconnect.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateReconnecting
	if err := m.disconnectLocked(); err != nil {
		m.logger.Warn().Err(err).Msg("disconnect during reconnect")
	}
	m.state = StateReconnecting

	select {
	case <-time.After(reconnectSettleDelay):
	case <-ctx.Done():
		m.state = StateDisconnected
		return ctx.Err()
	}

	return m.connectLocked(ctx)
}

// Handle returns the live handle, or ErrNotConnected.
func (m *Manager) Handle() (*sqlx.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.handle == nil {
		return nil, types.ErrNotConnected
	}
	return m.handle, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns pool statistics and whether the Manager is connected.
// Zero statistics when disconnected.
func (m *Manager) Stats() (sql.DBStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return sql.DBStats{}, false
	}
	return m.handle.Stats(), m.state == StateConnected
}

// CheckHealth performs a liveness ping plus round-trip query on the live handle.
func (m *Manager) CheckHealth(ctx context.Context) error {
	handle, err := m.Handle()
	if err != nil {
		return err
	}
	return NewHealthChecker(handle).CheckHealth(ctx)
}

// GetHealthStatus captures a structured health report and caches it as the
// last observed status. Never panics, even when disconnected.
func (m *Manager) GetHealthStatus(ctx context.Context) HealthStatus {
	handle, err := m.Handle()
	if err != nil {
		return HealthStatus{
			Error:     err.Error(),
			CheckedAt: time.Now().UTC(),
		}
	}

	status := NewHealthChecker(handle).GetHealthStatus(ctx)

	m.mu.Lock()
	m.lastHealth = &status
	m.mu.Unlock()

	return status
}

// LastHealthStatus returns the most recent cached health report, if any.
func (m *Manager) LastHealthStatus() (HealthStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastHealth == nil {
		return HealthStatus{}, false
	}
	return *m.lastHealth, true
}

// WithTransaction begins a transaction, invokes fn, commits on success, and
// rolls back when fn returns an error or panics (the panic is re-raised after
// rollback). This is the only sanctioned way callers mutate data
// transactionally.
func (m *Manager) WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	handle, err := m.Handle()
	if err != nil {
		return err
	}

	tx, err := handle.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // re-panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CreateBackup produces a self-consistent point-in-time copy of the live
// database at destinationPath using VACUUM INTO, which works online without
// exclusive access. Supported for the sqlite engine only.
func (m *Manager) CreateBackup(ctx context.Context, destinationPath string) error {
	if m.cfg.Engine != config.EngineSQLite {
		return fmt.Errorf("%w: %s", types.ErrBackupUnsupported, m.cfg.Engine)
	}

	handle, err := m.Handle()
	if err != nil {
		return err
	}

	absDest, err := filepath.Abs(destinationPath)
	if err != nil {
		return fmt.Errorf("invalid backup path %q: %w", destinationPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(absDest), dirPermissions); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	// VACUUM INTO refuses to overwrite an existing file.
	if _, err := os.Stat(absDest); err == nil {
		return fmt.Errorf("backup destination %q already exists", absDest)
	}

	if _, err := handle.ExecContext(ctx, "VACUUM INTO ?", absDest); err != nil {
		return fmt.Errorf("backup to %q failed: %w", absDest, err)
	}

	m.logger.Info().Str("destination", absDest).Msg("database backup created")
	return nil
}

// StartHealthCheckMonitor runs periodic health checks until ctx is cancelled.
// A failed check is recorded and logged but never stops the loop.
func (m *Manager) StartHealthCheckMonitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status := m.GetHealthStatus(ctx)
				if !status.Healthy {
					m.logger.Warn().
						Str("error", status.Error).
						Dur("latency", status.Latency).
						Msg("health check failed")
				}
			}
		}
	}()
}

// StartStatsLogger logs pool statistics on its own schedule until ctx is
// cancelled. Observation only; never mutates schema or data.
func (m *Manager) StartStatsLogger(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats, connected := m.Stats()
				if !connected {
					continue
				}
				m.logger.Info().
					Int("open", stats.OpenConnections).
					Int("in_use", stats.InUse).
					Int("idle", stats.Idle).
					Int64("wait_count", stats.WaitCount).
					Dur("wait_duration", stats.WaitDuration).
					Int64("max_idle_closed", stats.MaxIdleClosed).
					Int64("max_lifetime_closed", stats.MaxLifetimeClosed).
					Msg("connection pool stats")
			}
		}
	}()
}
