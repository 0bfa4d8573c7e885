package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unklstewy/radarfusion/pkg/logger"
)

// SamplerConfig sets the sampling cadence and the trail requested per tick.
type SamplerConfig struct {
	Interval    time.Duration
	TrailLength int
	TrailStep   time.Duration
}

// DefaultSamplerConfig samples once per second with a one minute trail.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Interval:    time.Second,
		TrailLength: 12,
		TrailStep:   5 * time.Second,
	}
}

// Snapshot is the fused state of every shown aircraft at one instant.
type Snapshot struct {
	Time     time.Time
	Aircraft []Aircraft
}

// Lookup finds the aircraft matching id, render ID first. Squawk-only
// identifiers never match here since no position is supplied.
func (s Snapshot) Lookup(id Identifier) (Aircraft, bool) {
	for _, a := range s.Aircraft {
		if a.Identifier.Equals(id, nil) {
			return a, true
		}
	}
	return Aircraft{}, false
}

// LookupID finds the aircraft with the given render ID.
func (s Snapshot) LookupID(id uuid.UUID) (Aircraft, bool) {
	for _, a := range s.Aircraft {
		if a.Identifier.ID == id {
			return a, true
		}
	}
	return Aircraft{}, false
}

// Sampler periodically predicts every tracked aircraft and publishes the
// result.
type Sampler struct {
	collection *Collection
	predictor  *Predictor
	airport    *Airport
	cfg        SamplerConfig
	clock      Clock
	log        *logger.Logger

	mu     sync.RWMutex
	latest Snapshot
	subs   map[chan Snapshot]struct{}
}

// NewSampler creates a sampler over collection. airport may be nil.
func NewSampler(collection *Collection, predictor *Predictor, airport *Airport, cfg SamplerConfig, clock Clock, log *logger.Logger) *Sampler {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSamplerConfig().Interval
	}
	return &Sampler{
		collection: collection,
		predictor:  predictor,
		airport:    airport,
		cfg:        cfg,
		clock:      clock,
		log:        log.Named("sampler"),
		subs:       make(map[chan Snapshot]struct{}),
	}
}

// TrailTimestamps returns now - k*TrailStep for k = 1..TrailLength.
func (s *Sampler) TrailTimestamps(now time.Time) []time.Time {
	if s.cfg.TrailLength <= 0 || s.cfg.TrailStep <= 0 {
		return nil
	}
	out := make([]time.Time, s.cfg.TrailLength)
	for k := range out {
		out[k] = now.Add(-time.Duration(k+1) * s.cfg.TrailStep)
	}
	return out
}

// Tick predicts every tracked aircraft at now, stops tracking empty, stale
// and out-of-area ones, and publishes the snapshot of the shown ones.
func (s *Sampler) Tick(now time.Time) Snapshot {
	trail := s.TrailTimestamps(now)
	snap := Snapshot{Time: now}
	hidden, removed := 0, 0

	s.collection.Sweep(func(d *AircraftRawData) bool {
		if d.IsEmpty() {
			removed++
			return true
		}
		result, ac := s.predictor.Predict(now, trail, d, s.airport)
		switch result {
		case ResultRemove:
			removed++
			s.log.Debug("Stopped tracking aircraft", logger.String("id", d.Identifier.Label()))
			return true
		case ResultHide:
			hidden++
		case ResultShow:
			snap.Aircraft = append(snap.Aircraft, *ac)
		}
		return false
	})

	// Sweep walks newest entries first; present oldest tracked first.
	for l, r := 0, len(snap.Aircraft)-1; l < r; l, r = l+1, r-1 {
		snap.Aircraft[l], snap.Aircraft[r] = snap.Aircraft[r], snap.Aircraft[l]
	}

	s.log.Info("Sampled aircraft",
		logger.Int("shown", len(snap.Aircraft)),
		logger.Int("hidden", hidden),
		logger.Int("removed", removed))

	s.publish(snap)
	return snap
}

// Run ticks on the configured interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick(s.clock.Now())
	for {
		select {
		case <-ctx.Done():
			s.closeSubscribers()
			return ctx.Err()
		case <-ticker.C:
			s.Tick(s.clock.Now())
		}
	}
}

// Latest returns the most recent snapshot.
func (s *Sampler) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Subscribe returns a channel receiving every future snapshot and a function
// that ends the subscription. Snapshots are dropped for a subscriber whose
// buffer is full.
func (s *Sampler) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Sampler) publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = snap
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Sampler) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}
