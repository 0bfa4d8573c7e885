// Package adsb defines the parsed report type produced by every traffic feed
// and the clients that fetch those reports.
package adsb

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Source tags the feed a report came from. It drives both duplicate
// suppression and priority arbitration in the tracker.
type Source string

const (
	// SourceADSB is the volunteer ADS-B network (airplanes.live).
	SourceADSB Source = "adsb"

	// SourceOGN is the crowd-sourced glider/FLARM network.
	SourceOGN Source = "ogn"
)

// ParseSource validates a source tag.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	switch src {
	case SourceADSB, SourceOGN:
		return src, nil
	default:
		return "", fmt.Errorf("unknown data source %q", s)
	}
}

// Maneuver classifies what the aircraft is doing vertically.
type Maneuver int

const (
	ManeuverUnknown Maneuver = iota
	ManeuverHorizon
	ManeuverClimb
	ManeuverDescent
	ManeuverCircling
)

var maneuverNames = map[Maneuver]string{
	ManeuverUnknown:  "unknown",
	ManeuverHorizon:  "horizon",
	ManeuverClimb:    "climb",
	ManeuverDescent:  "descent",
	ManeuverCircling: "circling",
}

func (m Maneuver) String() string {
	if name, ok := maneuverNames[m]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the maneuver by name.
func (m Maneuver) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a maneuver name. Unrecognized names map to
// ManeuverUnknown.
func (m *Maneuver) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for k, v := range maneuverNames {
		if v == name {
			*m = k
			return nil
		}
	}
	*m = ManeuverUnknown
	return nil
}

// AircraftType is the FLARM aircraft category, also used for ADS-B emitters.
type AircraftType int

const (
	AircraftTypeUnknown AircraftType = iota
	AircraftTypeGlider
	AircraftTypeTowPlane
	AircraftTypeHelicopter
	AircraftTypeParachute
	AircraftTypeDropPlane
	AircraftTypeHangGlider
	AircraftTypeParaglider
	AircraftTypePowered
	AircraftTypeJet
	AircraftTypeUFO
	AircraftTypeBalloon
	AircraftTypeAirship
	AircraftTypeUAV
	AircraftTypeStatic
)

var aircraftTypeNames = []string{
	"unknown", "glider", "tow_plane", "helicopter", "parachute", "drop_plane",
	"hang_glider", "paraglider", "powered", "jet", "ufo", "balloon", "airship",
	"uav", "static",
}

func (t AircraftType) String() string {
	if t < 0 || int(t) >= len(aircraftTypeNames) {
		return "unknown"
	}
	return aircraftTypeNames[t]
}

// MarshalText encodes the type by name.
func (t AircraftType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name. Unrecognized names map to
// AircraftTypeUnknown.
func (t *AircraftType) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range aircraftTypeNames {
		if n == name {
			*t = AircraftType(i)
			return nil
		}
	}
	*t = AircraftTypeUnknown
	return nil
}

// Report is one parsed observation from a feed.
// Every field except Source is optional; feeds fill what they know.
// Units are SI: meters, meters per second, degrees.
type Report struct {
	// Identity
	Address           string `json:"address,omitempty"`
	Callsign          string `json:"callsign,omitempty"`
	Registration      string `json:"registration,omitempty"`
	CompetitionNumber string `json:"competition_number,omitempty"`
	FlightNumber      string `json:"flight_number,omitempty"`
	Squawk            string `json:"squawk,omitempty"`

	// Info
	Model            string `json:"model,omitempty"`
	Operator         string `json:"operator,omitempty"`
	Route            string `json:"route,omitempty"`
	CompetitionClass string `json:"competition_class,omitempty"`
	PilotName        string `json:"pilot_name,omitempty"`

	// Position
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`

	// Kinematics
	Track         *int     `json:"track,omitempty"`
	GroundSpeed   *float64 `json:"ground_speed,omitempty"`
	VerticalSpeed *float64 `json:"vertical_speed,omitempty"`
	OnGround      *bool    `json:"on_ground,omitempty"`

	AircraftType AircraftType `json:"aircraft_type"`
	Maneuver     Maneuver     `json:"maneuver"`

	Source Source `json:"source"`

	// Timestamp is seconds since the Unix epoch. Nil means the report
	// carries metadata only and no position.
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// HasPosition reports whether the report carries a complete 4D fix.
func (r Report) HasPosition() bool {
	return r.Latitude != nil && r.Longitude != nil && r.Altitude != nil && r.Timestamp != nil
}

// Time returns the report timestamp, or the zero time when absent.
func (r Report) Time() time.Time {
	if r.Timestamp == nil {
		return time.Time{}
	}
	return time.Unix(*r.Timestamp, 0).UTC()
}

// Feed is the interface that all traffic providers must implement.
// This abstraction allows switching between polled HTTP services and
// streaming relays without the tracker knowing the difference.
type Feed interface {
	// Source identifies the feed for priority arbitration.
	Source() Source

	// FetchReports returns the reports currently available from the feed.
	FetchReports(ctx context.Context) ([]Report, error)

	// Close cleanly shuts down the feed connection.
	Close() error
}

// Float64 returns a pointer to v. Handy when building reports.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
