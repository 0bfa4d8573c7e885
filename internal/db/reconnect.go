package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/unklstewy/radarfusion/pkg/config"
	"github.com/unklstewy/radarfusion/pkg/logger"
)

// ReconnectWithRetry attempts to connect with exponential backoff, capped
// at 60 seconds between attempts.
//
// maxRetries of 0 retries until ctx is done.
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		log.Debug("Database connection attempt", logger.Int("attempt", attempt))

		db, err := Connect(ctx, cfg)
		if err == nil {
			log.Info("Database connected", logger.Int("attempt", attempt))
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Error("Giving up on database connection", logger.Int("attempts", attempt), logger.Error(err))
			return nil, err
		}

		log.Warn("Database connection failed", logger.Error(err), logger.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// EnsureConnection returns db when it answers a ping, otherwise a fresh
// connection.
func EnsureConnection(ctx context.Context, db *DB, cfg config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if db == nil {
		log.Warn("Database connection is nil, reconnecting")
		return ReconnectWithRetry(ctx, cfg, 3, time.Second, log)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		log.Warn("Database connection lost, reconnecting", logger.Error(err))
		db.Close()
		return ReconnectWithRetry(ctx, cfg, 3, time.Second, log)
	}
	return db, nil
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return false
	}
	return result == 1
}

// errNoConnection is returned when a previous reconnect left no connection.
var errNoConnection = errors.New("database: no connection")

// connErrorPatterns are substrings of driver errors caused by a lost
// connection rather than by the statement.
var connErrorPatterns = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"bad connection",
	"eof",
	"timeout",
}

// isConnectionError reports whether err looks like a lost connection.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range connErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// WithRetry runs operation, retrying up to maxRetries times while it fails
// with a connection error. Other errors are returned immediately.
func WithRetry(ctx context.Context, operation func() error, maxRetries int, backoff time.Duration, log *logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isConnectionError(err) {
			return err
		}

		if attempt < maxRetries {
			wait := time.Duration(attempt+1) * backoff
			log.Warn("Database operation failed",
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", maxRetries+1),
				logger.Duration("retry_in", wait),
				logger.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return lastErr
}
