package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/radarfusion/internal/api"
)

var aircraftHeader = []string{"LABEL", "ADDRESS", "ALT m", "GS m/s", "VS m/s", "TRK", "MANEUVER", "FIX AGE", "SOURCES"}

// aircraftRow renders the table cells of one aircraft.
func aircraftRow(a api.AircraftDTO) []string {
	age := "-"
	if a.RealFix.Time != 0 {
		age = fmt.Sprintf("%ds", a.Position.Time-a.RealFix.Time)
	}
	maneuver := a.Maneuver.String()
	if a.OnGround {
		maneuver = "ground"
	}
	return []string{
		a.Label,
		a.Address,
		fmt.Sprintf("%.0f", a.Position.Altitude),
		fmt.Sprintf("%.1f", a.GroundSpeed),
		fmt.Sprintf("%+.1f", a.VerticalSpeed),
		fmt.Sprintf("%03d", a.Track),
		maneuver,
		age,
		joinSources(a),
	}
}

func joinSources(a api.AircraftDTO) string {
	names := make([]string, len(a.Sources))
	for i, s := range a.Sources {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}

var sourceHeader = []string{"SOURCE", "STATE", "PRIO", "REPORTS", "LAST", "OFFSET"}

// sourceRow renders the table cells of one feed. now is used for the age
// of the last report.
func sourceRow(s api.SourceDTO, now time.Time) []string {
	state := "enabled"
	if !s.Enabled {
		state = "disabled"
	}
	last := "never"
	if s.LastReceived != nil {
		last = fmt.Sprintf("%ds ago", int(now.Sub(*s.LastReceived).Seconds()))
	}
	return []string{
		string(s.Source),
		state,
		fmt.Sprintf("%d", s.Priority),
		fmt.Sprintf("%d", s.Reports),
		last,
		fmt.Sprintf("%.1fs", float64(s.TimeOffsetMs)/1000),
	}
}

// detailText is the tview-tagged description of one aircraft.
func detailText(a api.AircraftDTO) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]%s[-] [gray]%s[-]\n", a.Label, a.ID)

	ident := [][2]string{
		{"Registration", a.Registration},
		{"Address", a.Address},
		{"Callsign", a.Callsign},
		{"Competition", a.CompetitionNumber},
		{"Flight", a.FlightNumber},
		{"Squawk", a.Squawk},
		{"Model", a.Model},
		{"Operator", a.Operator},
		{"Pilot", a.PilotName},
	}
	for _, kv := range ident {
		if kv[1] != "" {
			fmt.Fprintf(&b, "[gray]%-12s[-] %s\n", kv[0], kv[1])
		}
	}
	fmt.Fprintf(&b, "[gray]%-12s[-] %s\n", "Type", a.AircraftType)

	b.WriteString("\n")
	fmt.Fprintf(&b, "[gray]Position[-]     %.5f, %.5f  %.0f m\n", a.Position.Latitude, a.Position.Longitude, a.Position.Altitude)
	fmt.Fprintf(&b, "[gray]Real fix[-]     %.5f, %.5f  at %s\n", a.RealFix.Latitude, a.RealFix.Longitude, unixClock(a.RealFix.Time))
	fmt.Fprintf(&b, "[gray]Best source[-]  %s\n", a.Source)

	if len(a.RawFixes) > 0 {
		fmt.Fprintf(&b, "\n[yellow]Raw fixes (%d)[-]\n", len(a.RawFixes))
		for _, f := range a.RawFixes {
			fmt.Fprintf(&b, "  %s  %.5f, %.5f  %.0f m\n", unixClock(f.Time), f.Latitude, f.Longitude, f.Altitude)
		}
	}
	if len(a.Trail) > 0 {
		fmt.Fprintf(&b, "\n[yellow]Trail (%d)[-]\n", len(a.Trail))
		for _, f := range a.Trail {
			fmt.Fprintf(&b, "  %s  %.5f, %.5f\n", unixClock(f.Time), f.Latitude, f.Longitude)
		}
	}
	return b.String()
}

func unixClock(sec int64) string {
	if sec == 0 {
		return "--:--:--"
	}
	return time.Unix(sec, 0).UTC().Format("15:04:05")
}
