package tracking

import (
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
)

// Fix is a point in space and time: position, altitude in meters MSL and
// the instant it was observed.
type Fix struct {
	Position coordinates.Geographic
	Time     time.Time
}

// DistanceTo returns the horizontal distance to other in meters.
func (f Fix) DistanceTo(other Fix) float64 {
	return coordinates.DistanceMeters(f.Position, other.Position)
}

// StateVector is one kinematic observation of an aircraft. Fix is always
// present; the kinematic fields are nil when the source did not report them.
//
// A StateVector is a value and is never modified after it is stored. The
// pointers may be shared between vectors and must not be written through.
type StateVector struct {
	Fix Fix

	GroundSpeed   *float64 // m/s
	VerticalSpeed *float64 // m/s
	Track         *int     // degrees
	OnGround      *bool

	Maneuver adsb.Maneuver
	Source   adsb.Source
}

// isFullyFilled reports whether every optional field is known.
func (v StateVector) isFullyFilled() bool {
	return v.GroundSpeed != nil &&
		v.VerticalSpeed != nil &&
		v.Track != nil &&
		v.OnGround != nil &&
		v.Maneuver != adsb.ManeuverUnknown
}

// completeFrom returns v with its missing fields taken from older.
func (v StateVector) completeFrom(older StateVector) StateVector {
	if v.GroundSpeed == nil {
		v.GroundSpeed = older.GroundSpeed
	}
	if v.VerticalSpeed == nil {
		v.VerticalSpeed = older.VerticalSpeed
	}
	if v.Track == nil {
		v.Track = older.Track
	}
	if v.OnGround == nil {
		v.OnGround = older.OnGround
	}
	if v.Maneuver == adsb.ManeuverUnknown {
		v.Maneuver = older.Maneuver
	}
	return v
}

// stateVectorFromReport builds a vector from a report with a full position.
// It panics if the report has no position, callers check HasPosition first.
func stateVectorFromReport(r adsb.Report) StateVector {
	if !r.HasPosition() {
		panic("tracking: state vector from report without position")
	}
	return StateVector{
		Fix: Fix{
			Position: coordinates.Geographic{
				Latitude:  *r.Latitude,
				Longitude: *r.Longitude,
				Altitude:  *r.Altitude,
			},
			Time: r.Time(),
		},
		GroundSpeed:   r.GroundSpeed,
		VerticalSpeed: r.VerticalSpeed,
		Track:         r.Track,
		OnGround:      r.OnGround,
		Maneuver:      r.Maneuver,
		Source:        r.Source,
	}
}
