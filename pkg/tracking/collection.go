package tracking

import (
	"errors"
	"fmt"
	"sync"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/logger"
)

var (
	// ErrSourceDisabled is returned for reports from a disabled source.
	ErrSourceDisabled = errors.New("tracking: source disabled")

	// ErrUnidentified is returned for reports without any identity field
	// that could ever be matched.
	ErrUnidentified = errors.New("tracking: report has no usable identifier")
)

// Collection holds every tracked aircraft.
//
// Identity matching is a prioritized partial match and is not transitive,
// so entries live in a plain slice and every lookup is a linear scan where
// the first match wins. When a report would match several entries the
// earliest tracked one receives it; the others are consolidated afterwards
// if they match the merged identity.
//
// All methods are safe for concurrent use. A single mutex covers the whole
// collection, including the sampling pass.
type Collection struct {
	mu      sync.Mutex
	entries []*AircraftRawData

	cfg     Config
	clock   Clock
	sources *SourceRegistry
	log     *logger.Logger
}

// NewCollection creates an empty collection.
func NewCollection(cfg Config, clock Clock, log *logger.Logger) *Collection {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	c := &Collection{
		cfg:   cfg,
		clock: clock,
		log:   log.Named("collection"),
	}
	c.sources = newSourceRegistry(cfg, clock, c)
	return c
}

// Sources returns the per-source bookkeeping.
func (c *Collection) Sources() *SourceRegistry {
	return c.sources
}

// Len returns the number of tracked aircraft.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// rawDataFromReport converts a report to a single-vector record.
func (c *Collection) rawDataFromReport(r adsb.Report) *AircraftRawData {
	prio := c.cfg.Priority(r.Source)
	id := NewIdentifier(r.Registration, r.Address, r.Callsign, r.CompetitionNumber, r.FlightNumber, r.Squawk, prio)
	info := NewAircraftInfo(r.Model, r.Operator, r.Route, r.CompetitionClass, r.PilotName, r.AircraftType, prio)

	d := NewAircraftRawData(id, info, c.cfg.MaxRealFixAge, c.clock)
	if r.HasPosition() {
		d.AddStateVector(stateVectorFromReport(r))
	}
	return d
}

// UpsertReport merges a report into the matching tracked aircraft, or starts
// tracking a new one. A report without a position only updates an aircraft
// that is already tracked.
func (c *Collection) UpsertReport(r adsb.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sources.record(r) {
		return fmt.Errorf("%w: %s", ErrSourceDisabled, r.Source)
	}

	incoming := c.rawDataFromReport(r)
	if !incoming.Identifier.IsUsable() {
		return ErrUnidentified
	}

	if c.upsert(incoming) {
		c.log.Debug("Tracking new aircraft",
			logger.String("id", incoming.Identifier.Label()),
			logger.String("source", string(r.Source)))
	}
	return nil
}

// upsert merges incoming into the first matching entry and consolidates, or
// appends it as a new entry when it holds at least one vector. It reports
// whether a new entry was created. The caller holds c.mu.
func (c *Collection) upsert(incoming *AircraftRawData) bool {
	idx := c.find(incoming)
	if idx < 0 {
		if incoming.IsEmpty() {
			// metadata only, nothing to place on a map yet
			return false
		}
		c.entries = append(c.entries, incoming)
		return true
	}
	c.entries[idx].AddData(incoming)
	c.consolidate(idx)
	return false
}

// find returns the index of the first entry matching candidate, or -1.
func (c *Collection) find(candidate *AircraftRawData) int {
	for i, e := range c.entries {
		if e.sameAircraft(candidate, c.cfg.SquawkAreaThreshold) {
			return i
		}
	}
	return -1
}

// consolidate merges into entries[idx] every other entry its (possibly
// updated) identity now matches.
func (c *Collection) consolidate(idx int) {
	target := c.entries[idx]
	for j := len(c.entries) - 1; j >= 0; j-- {
		if j == idx {
			continue
		}
		other := c.entries[j]
		if !target.sameAircraft(other, c.cfg.SquawkAreaThreshold) {
			continue
		}
		target.MergeDuplicates(other)
		c.removeAt(j)
		if j < idx {
			idx--
		}
		c.log.Debug("Consolidated duplicate aircraft",
			logger.String("kept", target.Identifier.Label()),
			logger.String("merged", other.Identifier.Label()))
	}
}

func (c *Collection) removeAt(i int) {
	copy(c.entries[i:], c.entries[i+1:])
	c.entries[len(c.entries)-1] = nil
	c.entries = c.entries[:len(c.entries)-1]
}

// MergeDuplicates folds duplicate into keep and stops tracking duplicate.
// Both must be tracked by this collection; otherwise nothing happens and
// false is returned.
func (c *Collection) MergeDuplicates(keep, duplicate *AircraftRawData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if keep == duplicate {
		return false
	}
	di := -1
	found := false
	for i, e := range c.entries {
		switch e {
		case keep:
			found = true
		case duplicate:
			di = i
		}
	}
	if !found || di < 0 {
		return false
	}

	keep.MergeDuplicates(duplicate)
	c.removeAt(di)
	return true
}

// RemoveBySource drops every vector reported by src and stops tracking
// aircraft left without vectors. Returns the number of aircraft removed.
func (c *Collection) RemoveBySource(src adsb.Source) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].RemoveSource(src) {
			c.removeAt(i)
			removed++
		}
	}
	if removed > 0 {
		c.log.Debug("Removed aircraft of source",
			logger.String("source", string(src)),
			logger.Int("count", removed))
	}
	return removed
}

// Lookup returns the tracked entry matching id, without the squawk
// proximity rule. The returned record must not be modified.
func (c *Collection) Lookup(id Identifier) (*AircraftRawData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.Identifier.SameAircraft(id, nil) {
			return e, true
		}
	}
	return nil, false
}

// Sweep runs fn over every entry, newest first, while holding the
// collection lock. Entries for which fn returns true are removed.
func (c *Collection) Sweep(fn func(d *AircraftRawData) (remove bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.entries) - 1; i >= 0; i-- {
		if fn(c.entries[i]) {
			c.removeAt(i)
		}
	}
}
