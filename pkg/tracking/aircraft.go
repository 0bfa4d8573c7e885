package tracking

import (
	"github.com/unklstewy/radarfusion/pkg/adsb"
)

// Result is the outcome of one prediction.
type Result int

const (
	// ResultShow means the aircraft is tracked and has a fused snapshot.
	ResultShow Result = iota

	// ResultHide keeps the aircraft but has nothing to show yet, e.g. all
	// of its reports lie in the future because of clock skew.
	ResultHide

	// ResultRemove ends tracking: the data is stale or the aircraft left
	// the monitored area.
	ResultRemove
)

func (r Result) String() string {
	switch r {
	case ResultShow:
		return "show"
	case ResultHide:
		return "hide"
	case ResultRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// PredictedStateVector is the fused kinematic estimate for one instant.
type PredictedStateVector struct {
	// Fix is the resolved position for the requested time.
	Fix Fix

	// RealFix is the newest real report at or before the requested time.
	RealFix Fix

	GroundSpeed   float64 // m/s
	VerticalSpeed float64 // m/s
	Track         int     // degrees
	OnGround      bool
	Maneuver      adsb.Maneuver
	Source        adsb.Source
}

// Aircraft is the fused view of one tracked aircraft. It is produced fresh
// by every prediction and never modified afterwards.
type Aircraft struct {
	Identifier Identifier
	Info       AircraftInfo
	State      PredictedStateVector

	// Trail holds resolved positions for the requested past timestamps in
	// request order. Timestamps that could not be resolved are skipped.
	Trail []Fix

	// RawFixes are the real fixes that survived redundant-fix selection.
	RawFixes []Fix

	Sources []adsb.Source
}
