package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// HealthStatus is a structured snapshot of handle health and pool statistics.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
	Pool      sql.DBStats   `json:"pool"`
}

// HealthChecker verifies a handle can both connect and execute queries.
type HealthChecker struct {
	handle *sqlx.DB
}

// NewHealthChecker wraps a live handle.
func NewHealthChecker(handle *sqlx.DB) *HealthChecker {
	return &HealthChecker{handle: handle}
}

// CheckHealth performs a liveness ping plus a trivial round-trip query.
// The round trip guards against a handle that pings but cannot execute.
func (h *HealthChecker) CheckHealth(ctx context.Context) error {
	if h.handle == nil {
		return fmt.Errorf("health check: nil database handle")
	}

	if err := h.handle.PingContext(ctx); err != nil {
		return fmt.Errorf("health check ping failed: %w", err)
	}

	var result int
	if err := h.handle.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("health check query returned %d, want 1", result)
	}

	return nil
}

// GetHealthStatus captures health, pool statistics, and wall-clock latency
// into a structured report. Never panics regardless of handle state.
func (h *HealthChecker) GetHealthStatus(ctx context.Context) HealthStatus {
	status := HealthStatus{CheckedAt: time.Now().UTC()}

	start := time.Now()
	err := h.CheckHealth(ctx)
	status.Latency = time.Since(start)

	if err != nil {
		status.Error = err.Error()
	} else {
		status.Healthy = true
	}

	if h.handle != nil {
		status.Pool = h.handle.Stats()
	}

	return status
}
