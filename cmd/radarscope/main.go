// radarscope is a terminal radar display of a running radarfusion server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/radarfusion/internal/api"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
	"github.com/unklstewy/radarfusion/pkg/logger"
)

const (
	minRadiusNM = 2.0
	maxRadiusNM = 250.0
	infoWidth   = 42
)

type snapshotMsg api.SnapshotDTO

type streamErrMsg struct{ err error }

type model struct {
	updates <-chan api.SnapshotDTO
	errs    <-chan error

	snapshot  api.SnapshotDTO
	aircraft  []api.AircraftDTO
	received  time.Time
	connected bool
	err       error

	center     coordinates.Geographic
	autoCenter bool
	radiusNM   float64
	selected   int
	trackID    string
	trails     bool

	width, height int
}

func waitForSnapshot(ch <-chan api.SnapshotDTO) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamErrMsg{err: fmt.Errorf("stream closed")}
		}
		return snapshotMsg(s)
	}
}

func waitForError(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		return streamErrMsg{err: <-ch}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.updates), waitForError(m.errs))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case snapshotMsg:
		m.setSnapshot(api.SnapshotDTO(msg))
		return m, waitForSnapshot(m.updates)

	case streamErrMsg:
		m.connected = false
		m.err = msg.err
		return m, waitForError(m.errs)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.aircraft)-1 {
				m.selected++
			}
		case "enter", " ":
			if m.selected < len(m.aircraft) {
				m.trackID = m.aircraft[m.selected].ID
			}
		case "s":
			m.trackID = ""
		case "c":
			if m.selected < len(m.aircraft) {
				p := m.aircraft[m.selected].Position
				m.center = coordinates.Geographic{Latitude: p.Latitude, Longitude: p.Longitude}
				m.autoCenter = false
			}
		case "t":
			m.trails = !m.trails
		case "+", "=":
			m.radiusNM = clampRadius(m.radiusNM / 1.5)
		case "-", "_":
			m.radiusNM = clampRadius(m.radiusNM * 1.5)
		}
	}
	return m, nil
}

func clampRadius(r float64) float64 {
	if r < minRadiusNM {
		return minRadiusNM
	}
	if r > maxRadiusNM {
		return maxRadiusNM
	}
	return r
}

// setSnapshot replaces the picture keeping the selection on the same
// aircraft when it is still present.
func (m *model) setSnapshot(s api.SnapshotDTO) {
	var selectedID string
	if m.selected < len(m.aircraft) {
		selectedID = m.aircraft[m.selected].ID
	}

	m.snapshot = s
	m.received = time.Now()
	m.connected = true
	m.err = nil
	m.aircraft = sortByDistance(s.Aircraft, m.center)

	if m.autoCenter && len(m.aircraft) > 0 {
		m.center = meanPosition(s.Aircraft)
		m.autoCenter = false
		m.aircraft = sortByDistance(s.Aircraft, m.center)
	}

	m.selected = 0
	for i, a := range m.aircraft {
		if a.ID == selectedID {
			m.selected = i
			break
		}
	}
}

func sortByDistance(in []api.AircraftDTO, center coordinates.Geographic) []api.AircraftDTO {
	out := append([]api.AircraftDTO(nil), in...)
	dist := func(a api.AircraftDTO) float64 {
		return coordinates.DistanceNauticalMiles(center, coordinates.Geographic{Latitude: a.Position.Latitude, Longitude: a.Position.Longitude})
	}
	sort.SliceStable(out, func(i, j int) bool { return dist(out[i]) < dist(out[j]) })
	return out
}

func meanPosition(aircraft []api.AircraftDTO) coordinates.Geographic {
	var lat, lon float64
	for _, a := range aircraft {
		lat += a.Position.Latitude
		lon += a.Position.Longitude
	}
	n := float64(len(aircraft))
	return coordinates.Geographic{Latitude: lat / n, Longitude: lon / n}
}

func (m model) scope() scope {
	w := m.width - infoWidth - 4
	if w < 40 {
		w = 40
	}
	h := m.height - 6
	if h < 20 {
		h = 20
	}
	return scope{width: w, height: h, center: m.center, radiusNM: m.radiusNM}
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	s.WriteString(titleStyle.Render("RADARFUSION SCOPE"))
	s.WriteString("\n\n")

	radar := m.scope().plot(m.aircraft, m.selected, m.trackID, m.trails).render()
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, radar, "  ", m.renderInfo()))
	s.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.WriteString(helpStyle.Render("↑/↓: Select  ENTER: Track  S: Stop  C: Center  T: Trails  +/-: Zoom  Q: Quit"))
	return s.String()
}

func (m model) renderInfo() string {
	var b strings.Builder
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	status := lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render("live")
	if !m.connected {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("disconnected")
	}
	b.WriteString(header.Render("SCOPE") + "  " + status + "\n")
	fmt.Fprintf(&b, "Center: %.4f°, %.4f°\n", m.center.Latitude, m.center.Longitude)
	fmt.Fprintf(&b, "Radius: %.0f NM\n", m.radiusNM)
	fmt.Fprintf(&b, "Aircraft: %d\n", len(m.aircraft))
	if m.snapshot.Time != 0 {
		fmt.Fprintf(&b, "Snapshot: %s\n", time.Unix(m.snapshot.Time, 0).UTC().Format("15:04:05"))
	}
	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(truncate(m.err.Error(), infoWidth)) + "\n")
	}
	b.WriteString("\n")

	if m.selected < len(m.aircraft) {
		a := m.aircraft[m.selected]
		b.WriteString(header.Render(a.Label) + "\n")
		b.WriteString(aircraftDetails(a))
		b.WriteString("\n")
	}

	b.WriteString(header.Render("NEAREST") + "\n")
	for i, a := range m.aircraft {
		if i >= 12 {
			b.WriteString(dim.Render(fmt.Sprintf("… %d more", len(m.aircraft)-i)) + "\n")
			break
		}
		line := fmt.Sprintf("%-9s %6.0fm %3d° %s", truncate(a.Label, 9), a.Position.Altitude, a.Track, a.Maneuver)
		if i == m.selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return lipgloss.NewStyle().Width(infoWidth).Render(b.String())
}

func aircraftDetails(a api.AircraftDTO) string {
	var b strings.Builder
	if a.Model != "" {
		fmt.Fprintf(&b, "Model:    %s\n", a.Model)
	}
	fmt.Fprintf(&b, "Type:     %s\n", a.AircraftType)
	fmt.Fprintf(&b, "Alt:      %.0f m\n", a.Position.Altitude)
	fmt.Fprintf(&b, "Speed:    %.1f m/s  %d°\n", a.GroundSpeed, a.Track)
	fmt.Fprintf(&b, "Climb:    %+.1f m/s  %s\n", a.VerticalSpeed, a.Maneuver)
	if a.OnGround {
		b.WriteString("On ground\n")
	}
	fmt.Fprintf(&b, "Fix age:  %ds\n", a.Position.Time-a.RealFix.Time)
	srcs := make([]string, len(a.Sources))
	for i, src := range a.Sources {
		srcs[i] = string(src)
	}
	fmt.Fprintf(&b, "Sources:  %s\n", strings.Join(srcs, ","))
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// parseCenter parses "lat,lon".
func parseCenter(s string) (coordinates.Geographic, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return coordinates.Geographic{}, fmt.Errorf("center must be lat,lon: %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return coordinates.Geographic{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return coordinates.Geographic{}, fmt.Errorf("invalid longitude: %w", err)
	}
	return coordinates.Geographic{Latitude: lat, Longitude: lon}, nil
}

// stream keeps a websocket open, reconnecting after failures, until ctx is
// done.
func stream(ctx context.Context, client *api.Client, updates chan<- api.SnapshotDTO, errs chan<- error, log *logger.Logger) {
	for {
		err := client.Stream(ctx, func(s api.SnapshotDTO) {
			select {
			case updates <- s:
			default:
			}
		})
		if ctx.Err() != nil {
			return
		}
		log.Warn("Stream interrupted", logger.Error(err))
		select {
		case errs <- err:
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func main() {
	server := flag.String("server", "http://localhost:8080", "radarfusion server URL")
	center := flag.String("center", "", "Scope center as lat,lon (default: centroid of the first snapshot)")
	radius := flag.Float64("radius", 25, "Scope radius in nautical miles")
	logPath := flag.String("log", "radarscope.log", "Log file")
	flag.Parse()

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log, err := logger.New(logger.Config{Level: "info", Format: "json", Output: logFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	m := model{radiusNM: clampRadius(*radius), autoCenter: true}
	if *center != "" {
		c, err := parseCenter(*center)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		m.center, m.autoCenter = c, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan api.SnapshotDTO, 1)
	errs := make(chan error, 1)
	m.updates, m.errs = updates, errs
	go stream(ctx, api.NewClient(*server), updates, errs, log)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error("UI failed", logger.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
