package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/radarfusion/internal/api"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
)

func testScope() scope {
	return scope{
		width:    81,
		height:   41,
		center:   coordinates.Geographic{Latitude: 50, Longitude: 14},
		radiusNM: 10,
	}
}

func TestProject(t *testing.T) {
	s := testScope()
	cx, cy := s.centerXY()

	x, y, ok := s.project(50, 14)
	require.True(t, ok)
	assert.Equal(t, cx, x)
	assert.Equal(t, cy, y)

	// 5 NM north is straight up
	x, y, ok = s.project(50+5.0/60, 14)
	require.True(t, ok)
	assert.Equal(t, cx, x)
	assert.Less(t, y, cy)

	// east is right, stretched by the aspect ratio
	x, y, ok = s.project(50, 14.1)
	require.True(t, ok)
	assert.Greater(t, x, cx)
	assert.Equal(t, cy, y)

	_, _, ok = s.project(51, 14)
	assert.False(t, ok, "beyond the radius")
}

func TestRingSpacing(t *testing.T) {
	assert.Equal(t, 1.0, ringSpacing(4))
	assert.Equal(t, 5.0, ringSpacing(15))
	assert.Equal(t, 25.0, ringSpacing(100))
	assert.Equal(t, 500.0, ringSpacing(5000))
}

func TestPlotMarksSelectionAndTrack(t *testing.T) {
	s := testScope()
	aircraft := []api.AircraftDTO{
		{ID: "a", Label: "OKABC", Position: api.FixDTO{Latitude: 50.05, Longitude: 14}},
		{ID: "b", Label: "DLH1", Position: api.FixDTO{Latitude: 49.95, Longitude: 14}},
		{ID: "c", Label: "GRND", Position: api.FixDTO{Latitude: 50, Longitude: 14.05}, OnGround: true},
	}

	g := s.plot(aircraft, 0, "b", false)

	xa, ya, _ := s.project(50.05, 14)
	xb, yb, _ := s.project(49.95, 14)
	xc, yc, _ := s.project(50, 14.05)
	assert.Equal(t, glyphSelected, g[ya][xa])
	assert.Equal(t, glyphTracked, g[yb][xb])
	assert.Equal(t, glyphGround, g[yc][xc])
	assert.Equal(t, "OKABC", string(g[ya][xa+2:xa+7]))

	cx, cy := s.centerXY()
	assert.Equal(t, glyphCenter, g[cy][cx])
}

func TestGridSetKeepsAircraftOverRings(t *testing.T) {
	g := newGrid(5, 5)
	g.set(2, 2, glyphRing)
	g.set(2, 2, glyphAircraft)
	assert.Equal(t, glyphAircraft, g[2][2])
	g.set(2, 2, glyphRing)
	assert.Equal(t, glyphAircraft, g[2][2])
	g.set(9, 9, glyphAircraft) // out of bounds is ignored
}

func TestParseCenter(t *testing.T) {
	c, err := parseCenter("50.1, 14.26")
	require.NoError(t, err)
	assert.Equal(t, 50.1, c.Latitude)
	assert.Equal(t, 14.26, c.Longitude)

	for _, bad := range []string{"", "50.1", "north,14", "50,east"} {
		_, err := parseCenter(bad)
		assert.Error(t, err, bad)
	}
}

func TestModelUpdate(t *testing.T) {
	m := model{radiusNM: 10, autoCenter: true}
	snap := api.SnapshotDTO{Time: 1000, Aircraft: []api.AircraftDTO{
		{ID: "far", Position: api.FixDTO{Latitude: 50.2, Longitude: 14}},
		{ID: "near", Position: api.FixDTO{Latitude: 50.0, Longitude: 14}},
	}}

	next, _ := m.Update(snapshotMsg(snap))
	m = next.(model)
	assert.True(t, m.connected)
	assert.False(t, m.autoCenter)
	assert.InDelta(t, 50.1, m.center.Latitude, 1e-9)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	selected := m.aircraft[m.selected].ID

	// a new snapshot keeps the selection on the same aircraft
	next, _ = m.Update(snapshotMsg(snap))
	m = next.(model)
	assert.Equal(t, selected, m.aircraft[m.selected].ID)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	assert.Equal(t, selected, m.trackID)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	m = next.(model)
	assert.InDelta(t, 10/1.5, m.radiusNM, 1e-9)

	next, _ = m.Update(streamErrMsg{err: errors.New("refused")})
	m = next.(model)
	assert.False(t, m.connected)
	assert.Contains(t, m.View(), "disconnected")
}

func TestClampRadius(t *testing.T) {
	assert.Equal(t, minRadiusNM, clampRadius(0.1))
	assert.Equal(t, maxRadiusNM, clampRadius(1e6))
	assert.Equal(t, 30.0, clampRadius(30))
}
