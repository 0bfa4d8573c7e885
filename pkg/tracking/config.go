// Package tracking fuses reports from several traffic feeds into one track
// per physical aircraft and predicts where each aircraft is at any instant.
//
// Reports enter through Collection.UpsertReport, which resolves identity
// across feeds and keeps a bounded history per aircraft (AircraftRawData).
// The Predictor turns one history into a fused Aircraft for a requested time
// by interpolating between known fixes or extrapolating beyond them with a
// line or circle fit. The Sampler runs the Predictor over the whole
// collection on a fixed cadence and publishes snapshots.
package tracking

import (
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
)

// Config holds every tunable of the fusion engine.
// Distances are meters, speeds meters per second.
type Config struct {
	// RealFixTimeout is the age of the newest fix after which an aircraft
	// is dropped from tracking.
	RealFixTimeout time.Duration

	// MaxRealFixAge is the history window retained per aircraft.
	MaxRealFixAge time.Duration

	// VerticalSpeedTimeDiff is the look-back used to derive vertical speed,
	// VerticalSpeedThreshold the rate below which it is reported as zero.
	VerticalSpeedTimeDiff  time.Duration
	VerticalSpeedThreshold float64

	// Extrapolation uses the filtered fixes no older than
	// MinTimeIntervalForPrediction before the newest one, needs at least
	// MinFixCountForLinearRegression of them, and never predicts further
	// than MaxPredicted past the newest fix.
	MinTimeIntervalForPrediction   time.Duration
	MinFixCountForLinearRegression int
	MaxPredicted                   time.Duration

	// MaxCircleRadiusForFitting selects the circle fit over the line fit.
	MaxCircleRadiusForFitting float64

	AltitudeThresholdForOnGroundDetection float64
	MaxGroundSpeedForOnGroundDetection    float64

	// SquawkAreaThreshold is how close two squawk-matched aircraft must be
	// to be treated as the same one.
	SquawkAreaThreshold float64

	// RedundantFixWindow groups near-simultaneous vectors from different
	// sources; only the highest-priority one per window is used for fitting.
	RedundantFixWindow time.Duration

	// SourcePriority orders the feeds, index 0 wins.
	SourcePriority []adsb.Source

	// MonitoredArea drops aircraft whose position leaves it. Zero disables.
	MonitoredArea coordinates.Area
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RealFixTimeout:                        60 * time.Second,
		MaxRealFixAge:                         120 * time.Second,
		VerticalSpeedTimeDiff:                 10 * time.Second,
		VerticalSpeedThreshold:                0.3,
		MinTimeIntervalForPrediction:          60 * time.Second,
		MinFixCountForLinearRegression:        3,
		MaxPredicted:                          30 * time.Second,
		MaxCircleRadiusForFitting:             1000,
		AltitudeThresholdForOnGroundDetection: 50,
		MaxGroundSpeedForOnGroundDetection:    15,
		SquawkAreaThreshold:                   500,
		RedundantFixWindow:                    10 * time.Second,
		SourcePriority:                        []adsb.Source{adsb.SourceOGN, adsb.SourceADSB},
	}
}

// Priority returns the rank of src, lower is better. Sources missing from
// SourcePriority rank after every listed one.
func (c Config) Priority(src adsb.Source) int {
	for i, s := range c.SourcePriority {
		if s == src {
			return i
		}
	}
	return len(c.SourcePriority)
}

// Airport describes the field used for on-ground detection.
type Airport struct {
	Area coordinates.Area

	// Elevation in meters MSL
	Elevation float64
}
