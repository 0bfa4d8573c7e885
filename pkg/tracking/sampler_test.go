package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/radarfusion/pkg/adsb"
)

func newTestSampler(t *testing.T, clock *fakeClock) (*Sampler, *Collection) {
	t.Helper()
	cfg := testConfig()
	c := NewCollection(cfg, clock, nil)
	s := NewSampler(c, NewPredictor(cfg), nil, SamplerConfig{Interval: time.Millisecond, TrailLength: 3, TrailStep: 5 * time.Second}, clock, nil)
	return s, c
}

func upsert(t *testing.T, c *Collection, address string, src adsb.Source, unix int64) {
	t.Helper()
	r := report(src, unix, 50, 14, 1000)
	r.Address = address
	require.NoError(t, c.UpsertReport(r))
}

func TestTrailTimestamps(t *testing.T) {
	s, _ := newTestSampler(t, newFakeClock(1000))
	assert.Equal(t, []time.Time{at(995), at(990), at(985)}, s.TrailTimestamps(at(1000)))

	s.cfg.TrailLength = 0
	assert.Empty(t, s.TrailTimestamps(at(1000)))
}

func TestTickRemovesStaleAircraft(t *testing.T) {
	clock := newFakeClock(1000)
	s, c := newTestSampler(t, clock)

	upsert(t, c, "AAA111", adsb.SourceADSB, 1000)
	upsert(t, c, "BBB222", adsb.SourceOGN, 1050)
	require.Equal(t, 2, c.Len())

	snap := s.Tick(at(1070))
	require.Len(t, snap.Aircraft, 1)
	assert.Equal(t, "BBB222", snap.Aircraft[0].Identifier.Address)
	assert.Equal(t, 1, c.Len(), "stale aircraft must no longer be tracked")
	assert.Equal(t, snap, s.Latest())
}

func TestTickHidesFutureAircraft(t *testing.T) {
	s, c := newTestSampler(t, newFakeClock(1000))
	upsert(t, c, "AAA111", adsb.SourceADSB, 1000)

	snap := s.Tick(at(990))
	assert.Empty(t, snap.Aircraft)
	assert.Equal(t, 1, c.Len(), "hidden aircraft stay tracked")
}

func TestTickKeepsTrackingOrder(t *testing.T) {
	s, c := newTestSampler(t, newFakeClock(1000))
	upsert(t, c, "AAA111", adsb.SourceADSB, 1000)
	upsert(t, c, "BBB222", adsb.SourceADSB, 1000)
	upsert(t, c, "CCC333", adsb.SourceADSB, 1000)

	snap := s.Tick(at(1001))
	require.Len(t, snap.Aircraft, 3)
	assert.Equal(t, "AAA111", snap.Aircraft[0].Identifier.Address)
	assert.Equal(t, "CCC333", snap.Aircraft[2].Identifier.Address)
}

func TestSnapshotLookup(t *testing.T) {
	s, c := newTestSampler(t, newFakeClock(1000))
	upsert(t, c, "AAA111", adsb.SourceADSB, 1000)

	snap := s.Tick(at(1000))
	require.Len(t, snap.Aircraft, 1)
	id := snap.Aircraft[0].Identifier.ID

	got, ok := snap.LookupID(id)
	require.True(t, ok)
	assert.Equal(t, "AAA111", got.Identifier.Address)

	_, ok = snap.Lookup(Identifier{Address: "AAA111"})
	assert.True(t, ok)
	_, ok = snap.Lookup(Identifier{Address: "ZZZ999"})
	assert.False(t, ok)
}

func TestSubscribe(t *testing.T) {
	s, c := newTestSampler(t, newFakeClock(1000))
	upsert(t, c, "AAA111", adsb.SourceADSB, 1000)

	ch, cancel := s.Subscribe(1)
	s.Tick(at(1000))

	select {
	case snap := <-ch:
		assert.Len(t, snap.Aircraft, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	// a full buffer drops snapshots instead of blocking
	s.Tick(at(1001))
	s.Tick(at(1002))

	cancel()
	cancel()
	_, open := <-ch
	if open {
		_, open = <-ch
	}
	assert.False(t, open)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newTestSampler(t, newFakeClock(1000))
	ch, _ := s.Subscribe(8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-ch
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	for range ch {
	}
}
