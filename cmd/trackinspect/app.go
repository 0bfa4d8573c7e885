package main

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/unklstewy/radarfusion/internal/api"
	"github.com/unklstewy/radarfusion/pkg/adsb"
)

// App is the inspector window: aircraft table, detail pane, source table
// and log.
type App struct {
	client   *api.Client
	interval time.Duration

	tviewApp *tview.Application
	aircraft *tview.Table
	sources  *tview.Table
	detail   *tview.TextView
	logs     *LogPanel
	pages    *tview.Flex

	mu          sync.RWMutex
	snapshot    api.SnapshotDTO
	sourceList  []api.SourceDTO
	selectedID  string
	lastFailure string
}

// NewApp creates the inspector for the server behind client.
func NewApp(client *api.Client, interval time.Duration) *App {
	a := &App{
		client:   client,
		interval: interval,
		tviewApp: tview.NewApplication(),
		logs:     NewLogPanel(100),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.aircraft = tview.NewTable().SetFixed(1, 0).SetSelectable(true, false)
	a.aircraft.SetBorder(true).SetTitle(" Aircraft ")
	a.aircraft.SetSelectionChangedFunc(func(row, _ int) {
		a.selectRow(row)
	})

	a.sources = tview.NewTable().SetFixed(1, 0).SetSelectable(true, false)
	a.sources.SetBorder(true).SetTitle(" Sources  d: disable  e: enable ")

	a.detail = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	a.detail.SetBorder(true).SetTitle(" Detail ")

	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.detail, 0, 6, false).
		AddItem(a.sources, 0, 2, false).
		AddItem(a.logs.View(), 0, 2, false)

	a.pages = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.aircraft, 0, 6, true).
		AddItem(right, 0, 4, false)

	a.tviewApp.SetRoot(a.pages, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)
}

func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC:
		a.tviewApp.Stop()
		return nil
	case tcell.KeyTab:
		if a.aircraft.HasFocus() {
			a.tviewApp.SetFocus(a.sources)
		} else {
			a.tviewApp.SetFocus(a.aircraft)
		}
		return nil
	}

	switch event.Rune() {
	case 'q':
		a.tviewApp.Stop()
		return nil
	case 'd':
		if src, ok := a.selectedSource(); ok {
			go a.disableSource(src)
		}
		return nil
	case 'e':
		if src, ok := a.selectedSource(); ok {
			go a.enableSource(src)
		}
		return nil
	case 'r':
		go a.refresh(context.Background())
		return nil
	}
	return event
}

func (a *App) selectedSource() (adsb.Source, bool) {
	row, _ := a.sources.GetSelection()
	a.mu.RLock()
	defer a.mu.RUnlock()
	i := row - 1
	if i < 0 || i >= len(a.sourceList) {
		return "", false
	}
	return a.sourceList[i].Source, true
}

func (a *App) disableSource(src adsb.Source) {
	removed, err := a.client.DisableSource(context.Background(), src)
	if err != nil {
		a.log(LogLevelError, "disable %s: %v", src, err)
		return
	}
	a.log(LogLevelWarn, "%s disabled, %d aircraft dropped", src, removed)
	a.refresh(context.Background())
}

func (a *App) enableSource(src adsb.Source) {
	if err := a.client.EnableSource(context.Background(), src); err != nil {
		a.log(LogLevelError, "enable %s: %v", src, err)
		return
	}
	a.log(LogLevelInfo, "%s enabled", src)
	a.refresh(context.Background())
}

func (a *App) log(level LogLevel, format string, args ...interface{}) {
	a.tviewApp.QueueUpdateDraw(func() {
		a.logs.Add(level, format, args...)
	})
}

// refresh fetches the snapshot and the source list and redraws.
func (a *App) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.interval+5*time.Second)
	defer cancel()

	snap, err := a.client.Snapshot(ctx)
	if err == nil {
		var sources []api.SourceDTO
		sources, err = a.client.Sources(ctx)
		if err == nil {
			a.mu.Lock()
			a.snapshot = *snap
			a.sourceList = sources
			a.mu.Unlock()
		}
	}

	a.mu.Lock()
	failure := ""
	if err != nil {
		failure = err.Error()
	}
	changed := failure != a.lastFailure
	a.lastFailure = failure
	a.mu.Unlock()

	if changed {
		if err != nil {
			a.log(LogLevelError, "refresh failed: %v", err)
		} else {
			a.log(LogLevelInfo, "connected")
		}
	}
	a.tviewApp.QueueUpdateDraw(a.redraw)
}

// redraw fills the tables from the current state. Runs on the UI goroutine.
func (a *App) redraw() {
	a.mu.RLock()
	aircraft := a.snapshot.Aircraft
	sources := a.sourceList
	selectedID := a.selectedID
	a.mu.RUnlock()

	fillTable(a.aircraft, aircraftHeader, len(aircraft), func(i int) []string {
		return aircraftRow(aircraft[i])
	})
	now := time.Now()
	fillTable(a.sources, sourceHeader, len(sources), func(i int) []string {
		return sourceRow(sources[i], now)
	})

	row := 0
	for i, ac := range aircraft {
		if ac.ID == selectedID {
			row = i + 1
			break
		}
	}
	if row == 0 && len(aircraft) > 0 {
		row = 1
	}
	if row == 0 {
		a.detail.SetText("[gray]No aircraft[-]")
		return
	}
	a.aircraft.Select(row, 0)
	a.detail.SetText(detailText(aircraft[row-1]))
}

// selectRow follows the table cursor.
func (a *App) selectRow(row int) {
	a.mu.Lock()
	i := row - 1
	if i < 0 || i >= len(a.snapshot.Aircraft) {
		a.mu.Unlock()
		return
	}
	ac := a.snapshot.Aircraft[i]
	a.selectedID = ac.ID
	a.mu.Unlock()

	a.detail.SetText(detailText(ac))
}

func fillTable(t *tview.Table, header []string, rows int, row func(int) []string) {
	t.Clear()
	for c, h := range header {
		t.SetCell(0, c, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for r := 0; r < rows; r++ {
		for c, v := range row(r) {
			t.SetCell(r+1, c, tview.NewTableCell(tview.Escape(v)).SetExpansion(1))
		}
	}
}

// Run polls the server until the window is closed.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		a.refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.refresh(ctx)
			}
		}
	}()

	return a.tviewApp.Run()
}
