package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/radarfusion/internal/api"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
)

// Terminal characters are ~2:1 height:width, X distances are divided by
// this to keep rings round.
const aspectRatio = 0.5

const (
	glyphEmpty    = ' '
	glyphRing     = '·'
	glyphCenter   = '+'
	glyphAircraft = '○'
	glyphGround   = '▪'
	glyphSelected = '●'
	glyphTracked  = '◉'
	glyphTrail    = '∙'
	glyphVector   = '-'
	glyphHead     = '→'
)

// scope maps geographic positions onto a character grid centered on center.
type scope struct {
	width, height int
	center        coordinates.Geographic
	radiusNM      float64
}

func (s scope) centerXY() (int, int) {
	return s.width / 2, s.height / 2
}

// scale returns screen rows per nautical mile.
func (s scope) scale() float64 {
	maxY := float64(s.height/2 - 1)
	maxX := float64(s.width/2-1) * aspectRatio
	return math.Min(maxX, maxY) / s.radiusNM
}

// project returns the grid cell of a position. ok is false outside the
// radius or the grid.
func (s scope) project(lat, lon float64) (x, y int, ok bool) {
	p := coordinates.Geographic{Latitude: lat, Longitude: lon}
	dist := coordinates.DistanceNauticalMiles(s.center, p)
	if dist > s.radiusNM {
		return 0, 0, false
	}
	bearing := coordinates.Bearing(s.center, p) * math.Pi / 180
	d := dist * s.scale()

	cx, cy := s.centerXY()
	x = cx + int(math.Round(d*math.Sin(bearing)/aspectRatio))
	y = cy - int(math.Round(d*math.Cos(bearing)))
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return 0, 0, false
	}
	return x, y, true
}

// ringSpacing picks a round ring distance giving at most four rings.
func ringSpacing(radiusNM float64) float64 {
	for _, step := range []float64{1, 2, 5, 10, 25, 50, 100, 250} {
		if radiusNM/step <= 4 {
			return step
		}
	}
	return 500
}

type grid [][]rune

func newGrid(width, height int) grid {
	g := make(grid, height)
	for i := range g {
		g[i] = []rune(strings.Repeat(string(glyphEmpty), width))
	}
	return g
}

// set writes r unless the cell already holds something other than a ring.
func (g grid) set(x, y int, r rune) {
	if y < 0 || y >= len(g) || x < 0 || x >= len(g[y]) {
		return
	}
	if g[y][x] == glyphEmpty || g[y][x] == glyphRing {
		g[y][x] = r
	}
}

func (g grid) text(x, y int, s string) {
	for i, r := range s {
		g.set(x+i, y, r)
	}
}

// circle draws a ring with Bresenham's algorithm, stretched on X.
func (g grid) circle(cx, cy, radius int) {
	x, y, e := radius, 0, 0
	for x >= y {
		xs := int(float64(x) / aspectRatio)
		ys := int(float64(y) / aspectRatio)
		for _, p := range [][2]int{
			{cx + xs, cy + y}, {cx + ys, cy + x}, {cx - ys, cy + x}, {cx - xs, cy + y},
			{cx - xs, cy - y}, {cx - ys, cy - x}, {cx + ys, cy - x}, {cx + xs, cy - y},
		} {
			g.set(p[0], p[1], glyphRing)
		}
		y++
		e += 1 + 2*y
		if 2*(e-x)+1 > 0 {
			x--
			e += 1 - 2*x
		}
	}
}

// vector draws a heading tick whose length grows with ground speed.
func (g grid) vector(x, y, trackDeg int, speedMS float64) {
	length := int(speedMS/40) + 1
	if length > 4 {
		length = 4
	}
	rad := float64(trackDeg) * math.Pi / 180
	for i := 1; i <= length; i++ {
		dx := int(math.Round(float64(i) * math.Sin(rad) / aspectRatio))
		dy := -int(math.Round(float64(i) * math.Cos(rad)))
		r := glyphVector
		if i == length {
			r = glyphHead
		}
		g.set(x+dx, y+dy, r)
	}
}

// plot draws the rings, every aircraft and the selected and tracked labels.
func (s scope) plot(aircraft []api.AircraftDTO, selected int, trackID string, trails bool) grid {
	g := newGrid(s.width, s.height)
	cx, cy := s.centerXY()
	scale := s.scale()

	step := ringSpacing(s.radiusNM)
	for d := step; d <= s.radiusNM; d += step {
		r := int(d * scale)
		g.circle(cx, cy, r)
		g.text(cx+1, cy-r, fmt.Sprintf("%g", d))
	}
	g.set(cx, cy, glyphCenter)
	r := int(s.radiusNM * scale)
	g.set(cx, cy-r, 'N')
	g.set(cx, cy+r, 'S')
	g.set(cx+int(float64(r)/aspectRatio), cy, 'E')
	g.set(cx-int(float64(r)/aspectRatio), cy, 'W')

	if trails {
		for _, a := range aircraft {
			for _, f := range a.Trail {
				if x, y, ok := s.project(f.Latitude, f.Longitude); ok {
					g.set(x, y, glyphTrail)
				}
			}
		}
	}

	for i, a := range aircraft {
		x, y, ok := s.project(a.Position.Latitude, a.Position.Longitude)
		if !ok {
			continue
		}
		glyph := glyphAircraft
		if a.OnGround {
			glyph = glyphGround
		}
		labeled := false
		if i == selected {
			glyph, labeled = glyphSelected, true
		}
		if a.ID == trackID {
			glyph, labeled = glyphTracked, true
		}
		g[y][x] = glyph
		if !a.OnGround && a.GroundSpeed > 1 {
			g.vector(x, y, a.Track, a.GroundSpeed)
		}
		if labeled {
			g.text(x+2, y, a.Label)
		}
	}
	return g
}

var (
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	centerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	trackedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	aircraftStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	groundStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("137"))
	ringStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	vectorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	trailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

func styleFor(r rune) lipgloss.Style {
	switch r {
	case glyphCenter, 'N', 'E', 'S', 'W':
		return centerStyle
	case glyphTracked:
		return trackedStyle
	case glyphSelected:
		return selectedStyle
	case glyphAircraft:
		return aircraftStyle
	case glyphGround:
		return groundStyle
	case glyphRing:
		return ringStyle
	case glyphVector, glyphHead:
		return vectorStyle
	case glyphTrail:
		return trailStyle
	default:
		return labelStyle
	}
}

// render draws g inside a border with colors.
func (g grid) render() string {
	var b strings.Builder
	width := 0
	if len(g) > 0 {
		width = len(g[0])
	}
	b.WriteString(borderStyle.Render("┌" + strings.Repeat("─", width) + "┐"))
	b.WriteString("\n")
	for _, row := range g {
		b.WriteString(borderStyle.Render("│"))
		for _, r := range row {
			if r == glyphEmpty {
				b.WriteRune(r)
				continue
			}
			b.WriteString(styleFor(r).Render(string(r)))
		}
		b.WriteString(borderStyle.Render("│"))
		b.WriteString("\n")
	}
	b.WriteString(borderStyle.Render("└" + strings.Repeat("─", width) + "┘"))
	return b.String()
}
