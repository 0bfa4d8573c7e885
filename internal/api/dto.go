package api

import (
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/tracking"
)

// FixDTO is a position at an instant. Time is Unix seconds.
type FixDTO struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Altitude  float64 `json:"alt"`
	Time      int64   `json:"time"`
}

// AircraftDTO is the wire form of one fused aircraft.
type AircraftDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`

	Registration      string `json:"registration,omitempty"`
	Address           string `json:"address,omitempty"`
	Callsign          string `json:"callsign,omitempty"`
	CompetitionNumber string `json:"competition_number,omitempty"`
	FlightNumber      string `json:"flight_number,omitempty"`
	Squawk            string `json:"squawk,omitempty"`

	Model            string            `json:"model,omitempty"`
	Operator         string            `json:"operator,omitempty"`
	Route            string            `json:"route,omitempty"`
	CompetitionClass string            `json:"competition_class,omitempty"`
	PilotName        string            `json:"pilot_name,omitempty"`
	AircraftType     adsb.AircraftType `json:"aircraft_type"`

	Position      FixDTO        `json:"position"`
	RealFix       FixDTO        `json:"real_fix"`
	GroundSpeed   float64       `json:"ground_speed"`
	VerticalSpeed float64       `json:"vertical_speed"`
	Track         int           `json:"track"`
	OnGround      bool          `json:"on_ground"`
	Maneuver      adsb.Maneuver `json:"maneuver"`
	Source        adsb.Source   `json:"source"`

	Trail    []FixDTO      `json:"trail"`
	RawFixes []FixDTO      `json:"raw_fixes"`
	Sources  []adsb.Source `json:"sources"`
}

// SnapshotDTO is one sampler tick.
type SnapshotDTO struct {
	Time     int64         `json:"time"`
	Aircraft []AircraftDTO `json:"aircraft"`
}

// SourceDTO is the status of one feed.
type SourceDTO struct {
	Source         adsb.Source `json:"source"`
	Enabled        bool        `json:"enabled"`
	Priority       int         `json:"priority"`
	Reports        int64       `json:"reports"`
	LastReceived   *time.Time  `json:"last_received,omitempty"`
	LastReportTime *time.Time  `json:"last_report_time,omitempty"`
	TimeOffsetMs   int64       `json:"time_offset_ms"`
}

func fixToDTO(f tracking.Fix) FixDTO {
	return FixDTO{
		Latitude:  f.Position.Latitude,
		Longitude: f.Position.Longitude,
		Altitude:  f.Position.Altitude,
		Time:      f.Time.Unix(),
	}
}

func fixesToDTO(fs []tracking.Fix) []FixDTO {
	out := make([]FixDTO, len(fs))
	for i, f := range fs {
		out[i] = fixToDTO(f)
	}
	return out
}

// AircraftToDTO converts a fused aircraft.
func AircraftToDTO(a tracking.Aircraft) AircraftDTO {
	id := a.Identifier
	return AircraftDTO{
		ID:                id.ID.String(),
		Label:             id.Label(),
		Registration:      id.Registration,
		Address:           id.Address,
		Callsign:          id.Callsign,
		CompetitionNumber: id.CompetitionNumber,
		FlightNumber:      id.FlightNumber,
		Squawk:            id.Squawk,
		Model:             a.Info.Model,
		Operator:          a.Info.Operator,
		Route:             a.Info.Route,
		CompetitionClass:  a.Info.CompetitionClass,
		PilotName:         a.Info.PilotName,
		AircraftType:      a.Info.Type,
		Position:          fixToDTO(a.State.Fix),
		RealFix:           fixToDTO(a.State.RealFix),
		GroundSpeed:       a.State.GroundSpeed,
		VerticalSpeed:     a.State.VerticalSpeed,
		Track:             a.State.Track,
		OnGround:          a.State.OnGround,
		Maneuver:          a.State.Maneuver,
		Source:            a.State.Source,
		Trail:             fixesToDTO(a.Trail),
		RawFixes:          fixesToDTO(a.RawFixes),
		Sources:           append([]adsb.Source(nil), a.Sources...),
	}
}

// SnapshotToDTO converts a sampler snapshot.
func SnapshotToDTO(s tracking.Snapshot) SnapshotDTO {
	out := SnapshotDTO{Aircraft: make([]AircraftDTO, 0, len(s.Aircraft))}
	if !s.Time.IsZero() {
		out.Time = s.Time.Unix()
	}
	for _, a := range s.Aircraft {
		out.Aircraft = append(out.Aircraft, AircraftToDTO(a))
	}
	return out
}

// SourceToDTO converts a source status.
func SourceToDTO(st tracking.SourceStatus) SourceDTO {
	dto := SourceDTO{
		Source:       st.Source,
		Enabled:      st.Enabled,
		Priority:     st.Priority,
		Reports:      st.Reports,
		TimeOffsetMs: st.TimeOffset.Milliseconds(),
	}
	if !st.LastReceived.IsZero() {
		t := st.LastReceived.UTC()
		dto.LastReceived = &t
	}
	if !st.LastReportTime.IsZero() {
		t := st.LastReportTime.UTC()
		dto.LastReportTime = &t
	}
	return dto
}
