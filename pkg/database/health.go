package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus is the database section of the health endpoint payload: one
// ping round-trip plus the pool's pressure counters. A wait_count that keeps
// growing between probes means the pool is undersized for the load.
type HealthStatus struct {
	Status     string `json:"status"`
	PingMillis int64  `json:"ping_ms"`

	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	MaxOpenConns    int   `json:"max_open_conns"`
	WaitCount       int64 `json:"wait_count"`
	WaitMillis      int64 `json:"wait_ms"`
}

// Health pings the database and reports pool statistics. On ping failure the
// returned status still carries the measured round-trip alongside the error.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()
	err := db.PingContext(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return &HealthStatus{Status: "unhealthy", PingMillis: elapsed}, err
	}

	stats := db.Stats()
	return &HealthStatus{
		Status:          "healthy",
		PingMillis:      elapsed,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
		WaitCount:       stats.WaitCount,
		WaitMillis:      stats.WaitDuration.Milliseconds(),
	}, nil
}
