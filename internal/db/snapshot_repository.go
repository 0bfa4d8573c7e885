package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/config"
	"github.com/unklstewy/radarfusion/pkg/logger"
	"github.com/unklstewy/radarfusion/pkg/tracking"
)

// SnapshotRepository stores fused aircraft and their position history.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a repository on db.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// recordedPosition is the newest stored position of one aircraft.
type recordedPosition struct {
	Timestamp   time.Time
	Latitude    float64
	Longitude   float64
	AltitudeM   float64
	GroundSpeed float64
}

// positionDelta is the movement since the previously stored position.
type positionDelta struct {
	Seconds     float64
	DistanceM   float64
	AltitudeM   float64
	ActualSpeed float64 // m/s, zero when no time elapsed
}

const (
	// ~0.1 m
	positionTolerance = 0.000001
	altitudeTolerance = 0.3 // m
	// below this an aircraft counts as stationary
	speedThreshold = 0.5 // m/s
)

// positionsEqual reports whether a stationary aircraft has not moved since
// prev. A moving aircraft is always recorded.
func positionsEqual(state tracking.PredictedStateVector, prev recordedPosition) bool {
	p := state.Fix.Position
	latChanged := math.Abs(p.Latitude-prev.Latitude) > positionTolerance
	lonChanged := math.Abs(p.Longitude-prev.Longitude) > positionTolerance
	altChanged := math.Abs(p.Altitude-prev.AltitudeM) > altitudeTolerance
	moving := state.GroundSpeed >= speedThreshold || prev.GroundSpeed >= speedThreshold

	return !latChanged && !lonChanged && !altChanged && !moving
}

// deltaFrom computes the movement from prev to fix.
func deltaFrom(fix tracking.Fix, prev recordedPosition) positionDelta {
	prevFix := tracking.Fix{Time: prev.Timestamp}
	prevFix.Position.Latitude = prev.Latitude
	prevFix.Position.Longitude = prev.Longitude
	prevFix.Position.Altitude = prev.AltitudeM

	d := positionDelta{
		Seconds:   fix.Time.Sub(prev.Timestamp).Seconds(),
		DistanceM: fix.DistanceTo(prevFix),
		AltitudeM: fix.Position.Altitude - prev.AltitudeM,
	}
	if d.Seconds > 0 {
		d.ActualSpeed = d.DistanceM / d.Seconds
	}
	return d
}

func sourceNames(sources []adsb.Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return names
}

// Record stores every aircraft of snap in one transaction and returns the
// number of position rows written. Stationary aircraft only refresh their
// last_seen time.
func (r *SnapshotRepository) Record(ctx context.Context, snap tracking.Snapshot) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, a := range snap.Aircraft {
		ok, err := r.recordAircraft(ctx, tx, a, snap.Time)
		if err != nil {
			return 0, fmt.Errorf("failed to record %s: %w", a.Identifier.Label(), err)
		}
		if ok {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return written, nil
}

func (r *SnapshotRepository) recordAircraft(ctx context.Context, tx *sql.Tx, a tracking.Aircraft, seen time.Time) (bool, error) {
	var prev recordedPosition
	err := tx.QueryRowContext(ctx, `
		SELECT timestamp, latitude, longitude, altitude_m, ground_speed_ms
		FROM fused_positions
		WHERE aircraft_id = $1
		ORDER BY timestamp DESC
		LIMIT 1`, a.Identifier.ID,
	).Scan(&prev.Timestamp, &prev.Latitude, &prev.Longitude, &prev.AltitudeM, &prev.GroundSpeed)
	hasPrev := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to query previous position: %w", err)
	}

	id, info, st := a.Identifier, a.Info, a.State
	pos := st.Fix.Position

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fused_aircraft (
			id, registration, address, callsign, competition_number, flight_number, squawk,
			model, operator, aircraft_type,
			latitude, longitude, altitude_m, fix_time,
			ground_speed_ms, vertical_speed_ms, track_deg, on_ground, maneuver,
			source, sources, first_seen, last_seen
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21, $22, $22
		)
		ON CONFLICT (id) DO UPDATE SET
			registration = EXCLUDED.registration,
			address = EXCLUDED.address,
			callsign = EXCLUDED.callsign,
			competition_number = EXCLUDED.competition_number,
			flight_number = EXCLUDED.flight_number,
			squawk = EXCLUDED.squawk,
			model = EXCLUDED.model,
			operator = EXCLUDED.operator,
			aircraft_type = EXCLUDED.aircraft_type,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			altitude_m = EXCLUDED.altitude_m,
			fix_time = EXCLUDED.fix_time,
			ground_speed_ms = EXCLUDED.ground_speed_ms,
			vertical_speed_ms = EXCLUDED.vertical_speed_ms,
			track_deg = EXCLUDED.track_deg,
			on_ground = EXCLUDED.on_ground,
			maneuver = EXCLUDED.maneuver,
			source = EXCLUDED.source,
			sources = EXCLUDED.sources,
			last_seen = EXCLUDED.last_seen,
			snapshot_count = fused_aircraft.snapshot_count + 1`,
		id.ID, id.Registration, id.Address, id.Callsign, id.CompetitionNumber, id.FlightNumber, id.Squawk,
		info.Model, info.Operator, info.Type.String(),
		pos.Latitude, pos.Longitude, pos.Altitude, st.Fix.Time,
		st.GroundSpeed, st.VerticalSpeed, st.Track, st.OnGround, st.Maneuver.String(),
		string(st.Source), pq.Array(sourceNames(a.Sources)), seen,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert aircraft: %w", err)
	}

	if hasPrev && positionsEqual(st, prev) {
		return false, nil
	}

	var dt, dist, dalt, speed sql.NullFloat64
	if hasPrev {
		d := deltaFrom(st.Fix, prev)
		dt = sql.NullFloat64{Float64: d.Seconds, Valid: true}
		dist = sql.NullFloat64{Float64: d.DistanceM, Valid: true}
		dalt = sql.NullFloat64{Float64: d.AltitudeM, Valid: true}
		speed = sql.NullFloat64{Float64: d.ActualSpeed, Valid: d.Seconds > 0}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fused_positions (
			aircraft_id, timestamp, latitude, longitude, altitude_m,
			ground_speed_ms, vertical_speed_ms, track_deg, maneuver, source, extrapolated,
			delta_time_seconds, delta_distance_m, delta_altitude_m, actual_speed_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id.ID, st.Fix.Time, pos.Latitude, pos.Longitude, pos.Altitude,
		st.GroundSpeed, st.VerticalSpeed, st.Track, st.Maneuver.String(), string(st.Source), st.Fix != st.RealFix,
		dt, dist, dalt, speed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert position: %w", err)
	}
	return true, nil
}

// Recorder writes every snapshot it receives and periodically prunes old
// records. It owns its connection and replaces it after a connection loss.
type Recorder struct {
	mu   sync.RWMutex
	db   *DB
	repo *SnapshotRepository

	cfg             config.DatabaseConfig
	retention       time.Duration
	cleanupInterval time.Duration
	log             *logger.Logger
}

// NewRecorder creates a recorder on db. cfg is used to reconnect; a zero
// RetentionHours disables cleanup.
func NewRecorder(db *DB, cfg config.DatabaseConfig, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Recorder{
		db:              db,
		repo:            NewSnapshotRepository(db),
		cfg:             cfg,
		retention:       time.Duration(cfg.RetentionHours) * time.Hour,
		cleanupInterval: 10 * time.Minute,
		log:             log.Named("recorder"),
	}
}

func (r *Recorder) conn() (*DB, *SnapshotRepository) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db, r.repo
}

// reconnect swaps in a fresh connection when the current one is gone.
func (r *Recorder) reconnect(ctx context.Context) {
	current, _ := r.conn()
	fresh, err := EnsureConnection(ctx, current, r.cfg, r.log)
	if err != nil {
		r.log.Error("Database reconnect failed", logger.Error(err))
		return
	}
	if fresh == current {
		return
	}
	r.mu.Lock()
	r.db = fresh
	r.repo = NewSnapshotRepository(fresh)
	r.mu.Unlock()
	r.log.Info("Database connection replaced")
}

// Status describes the recorder's database.
type Status struct {
	Connected bool
	Stats     Stats
}

// Status checks the connection and, when it answers, reads record counts.
func (r *Recorder) Status(ctx context.Context) Status {
	db, _ := r.conn()
	st := Status{Connected: HealthCheck(ctx, db)}
	if !st.Connected {
		return st
	}
	stats, err := db.GetStats(ctx)
	if err != nil {
		r.log.Warn("Failed to read database stats", logger.Error(err))
		return st
	}
	st.Stats = stats
	return st
}

// Close closes the current connection.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Run records snapshots from updates until ctx is done or updates closes.
func (r *Recorder) Run(ctx context.Context, updates <-chan tracking.Snapshot) error {
	cleanup := time.NewTicker(r.cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			var written int
			err := WithRetry(ctx, func() error {
				db, repo := r.conn()
				if db == nil {
					return errNoConnection
				}
				var err error
				written, err = repo.Record(ctx, snap)
				return err
			}, 2, time.Second, r.log)
			if err != nil {
				r.log.Error("Failed to record snapshot", logger.Time("time", snap.Time), logger.Error(err))
				if isConnectionError(err) {
					r.reconnect(ctx)
				}
				continue
			}
			r.log.Debug("Snapshot recorded",
				logger.Int("aircraft", len(snap.Aircraft)),
				logger.Int("positions", written))

		case <-cleanup.C:
			if r.retention <= 0 {
				continue
			}
			db, _ := r.conn()
			if db == nil {
				continue
			}
			positions, aircraft, err := db.CleanupOldData(ctx, r.retention)
			if err != nil {
				r.log.Warn("Cleanup failed", logger.Error(err))
				continue
			}
			r.log.Info("Old records removed",
				logger.Int64("positions", positions),
				logger.Int64("aircraft", aircraft))
		}
	}
}
