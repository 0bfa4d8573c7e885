package tracking

import (
	"sort"
	"sync"
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
)

// offsetSmoothing is the weight of a new sample in the smoothed time offset.
const offsetSmoothing = 0.125

// SourceStatus is the bookkeeping kept for one feed.
type SourceStatus struct {
	Source   adsb.Source
	Enabled  bool
	Priority int

	// Reports counts accepted reports.
	Reports int64

	// LastReceived is the wall-clock time the latest report arrived,
	// LastReportTime the timestamp that report carried.
	LastReceived   time.Time
	LastReportTime time.Time

	// TimeOffset is receive time minus report time, exponentially smoothed.
	// It shows feed latency and clock skew.
	TimeOffset time.Duration
}

type sourceRemover interface {
	RemoveBySource(src adsb.Source) int
}

// SourceRegistry tracks connectivity and timing per feed and gates reports
// from disabled feeds.
type SourceRegistry struct {
	mu     sync.RWMutex
	status map[adsb.Source]*SourceStatus

	cfg     Config
	clock   Clock
	remover sourceRemover
}

func newSourceRegistry(cfg Config, clock Clock, remover sourceRemover) *SourceRegistry {
	r := &SourceRegistry{
		status:  make(map[adsb.Source]*SourceStatus),
		cfg:     cfg,
		clock:   clock,
		remover: remover,
	}
	for _, src := range cfg.SourcePriority {
		r.entry(src)
	}
	return r
}

// entry returns the status for src, creating it enabled. Callers hold mu.
func (r *SourceRegistry) entry(src adsb.Source) *SourceStatus {
	st, ok := r.status[src]
	if !ok {
		st = &SourceStatus{Source: src, Enabled: true, Priority: r.cfg.Priority(src)}
		r.status[src] = st
	}
	return st
}

// record accounts for a report and reports whether its source is enabled.
func (r *SourceRegistry) record(rep adsb.Report) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.entry(rep.Source)
	if !st.Enabled {
		return false
	}

	now := r.clock.Now()
	st.Reports++
	st.LastReceived = now
	if rep.Timestamp != nil {
		reported := rep.Time()
		offset := now.Sub(reported)
		if st.LastReportTime.IsZero() {
			st.TimeOffset = offset
		} else {
			st.TimeOffset += time.Duration(offsetSmoothing * float64(offset-st.TimeOffset))
		}
		st.LastReportTime = reported
	}
	return true
}

// Enabled reports whether reports from src are accepted.
func (r *SourceRegistry) Enabled(src adsb.Source) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.status[src]
	return !ok || st.Enabled
}

// Disable stops accepting reports from src and drops its data from the
// collection. Returns the number of aircraft that were left without data.
func (r *SourceRegistry) Disable(src adsb.Source) int {
	r.mu.Lock()
	r.entry(src).Enabled = false
	r.mu.Unlock()

	// called without mu so the collection lock is never taken inside it
	return r.remover.RemoveBySource(src)
}

// Enable resumes accepting reports from src.
func (r *SourceRegistry) Enable(src adsb.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(src).Enabled = true
}

// Status returns the status of src.
func (r *SourceRegistry) Status(src adsb.Source) (SourceStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.status[src]
	if !ok {
		return SourceStatus{}, false
	}
	return *st, true
}

// Statuses returns every known source ordered by priority, then name.
func (r *SourceRegistry) Statuses() []SourceStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SourceStatus, 0, len(r.status))
	for _, st := range r.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Source < out[j].Source
	})
	return out
}
