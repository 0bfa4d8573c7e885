// Package db records fused snapshots in PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/unklstewy/radarfusion/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// connString builds the lib/pq keyword/value connection string.
func connString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, config: cfg}, nil
}

// InitSchema creates the tables if they do not exist.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// CleanupOldData deletes position history older than maxAge and aircraft
// not seen within maxAge. Should be called periodically to prevent
// unbounded growth.
func (db *DB) CleanupOldData(ctx context.Context, maxAge time.Duration) (positions, aircraft int64, err error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	res, err := db.ExecContext(ctx, `DELETE FROM fused_positions WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete old positions: %w", err)
	}
	positions, _ = res.RowsAffected()

	res, err = db.ExecContext(ctx, `DELETE FROM fused_aircraft WHERE last_seen < $1`, cutoff)
	if err != nil {
		return positions, 0, fmt.Errorf("failed to delete old aircraft: %w", err)
	}
	aircraft, _ = res.RowsAffected()

	return positions, aircraft, nil
}

// Stats summarizes the recorded data.
type Stats struct {
	Aircraft        int64
	RecentAircraft  int64
	PositionRecords int64
}

// GetStats returns database statistics. Recent aircraft are the ones seen
// within the last minute.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM fused_aircraft),
			(SELECT COUNT(*) FROM fused_aircraft WHERE last_seen > NOW() - INTERVAL '1 minute'),
			(SELECT COUNT(*) FROM fused_positions)`,
	).Scan(&st.Aircraft, &st.RecentAircraft, &st.PositionRecords)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return st, nil
}
