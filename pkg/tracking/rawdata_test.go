package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/radarfusion/pkg/adsb"
)

func TestAddStateVector(t *testing.T) {
	t.Run("keeps chronological order", func(t *testing.T) {
		d := rawWith(
			vec(adsb.SourceADSB, 1010, 50, 14, 1000),
			vec(adsb.SourceADSB, 1000, 50, 14, 1000),
			vec(adsb.SourceADSB, 1005, 50, 14, 1000),
		)
		all := d.ListAllStateVectors()
		require.Len(t, all, 3)
		assert.Equal(t, at(1000), all[0].Fix.Time)
		assert.Equal(t, at(1005), all[1].Fix.Time)
		assert.Equal(t, at(1010), all[2].Fix.Time)
	})

	t.Run("same source same second is dropped", func(t *testing.T) {
		d := rawWith(vec(adsb.SourceADSB, 1000, 50, 14, 1000))
		added := d.AddStateVector(vec(adsb.SourceADSB, 1000, 51, 15, 2000))
		assert.False(t, added)
		assert.Equal(t, 1, d.Len())
		assert.Equal(t, 50.0, d.ListAllStateVectors()[0].Fix.Position.Latitude)
	})

	t.Run("other source same second is kept", func(t *testing.T) {
		d := rawWith(vec(adsb.SourceADSB, 1000, 50, 14, 1000))
		assert.True(t, d.AddStateVector(vec(adsb.SourceOGN, 1000, 50, 14, 1000)))
		assert.Equal(t, 2, d.Len())
	})

	t.Run("missing timestamp panics", func(t *testing.T) {
		d := rawWith()
		assert.Panics(t, func() { d.AddStateVector(StateVector{Source: adsb.SourceADSB}) })
	})
}

func TestEviction(t *testing.T) {
	clock := newFakeClock(1100)
	maxAge := 120 * time.Second
	d := NewAircraftRawData(Identifier{Address: "AAA"}, AircraftInfo{}, maxAge, clock)

	for ts := int64(1000); ts <= 1100; ts += 10 {
		d.AddStateVector(vec(adsb.SourceADSB, ts, 50, 14, 1000))
	}
	assert.Equal(t, 11, d.Len())

	clock.Set(1200)
	d.AddStateVector(vec(adsb.SourceADSB, 1200, 50, 14, 1000))

	cutoff := clock.Now().Add(-maxAge)
	for _, v := range d.ListAllStateVectors() {
		assert.False(t, v.Fix.Time.Before(cutoff), "retained vector at %v older than %v", v.Fix.Time, cutoff)
	}
	assert.Equal(t, 4, d.Len()) // 1080, 1090, 1100, 1200

	t.Run("vector older than the window is not retained", func(t *testing.T) {
		assert.False(t, d.AddStateVector(vec(adsb.SourceOGN, 1000, 50, 14, 1000)))
		assert.Equal(t, 4, d.Len())
	})

	t.Run("vector inside the window is reported as stored", func(t *testing.T) {
		assert.True(t, d.AddStateVector(vec(adsb.SourceOGN, 1150, 50, 14, 1000)))
		assert.Equal(t, 5, d.Len())
	})
}

func TestStateVectorOrPrevious(t *testing.T) {
	speed := 30.0
	track := 270
	climb := 1.5
	onGround := false

	older := vec(adsb.SourceADSB, 1000, 50, 14, 1000)
	older.GroundSpeed = &speed
	older.Track = &track
	older.Maneuver = adsb.ManeuverCircling

	middle := vec(adsb.SourceOGN, 1005, 50.01, 14, 1010)
	middle.VerticalSpeed = &climb
	middle.OnGround = &onGround

	newest := vec(adsb.SourceADSB, 1010, 50.02, 14, 1020)
	d := rawWith(older, middle, newest)

	t.Run("completes missing fields from older vectors", func(t *testing.T) {
		v, ok := d.StateVectorOrPrevious(at(1010))
		require.True(t, ok)
		assert.Equal(t, newest.Fix, v.Fix)
		assert.Equal(t, adsb.SourceADSB, v.Source)
		require.NotNil(t, v.GroundSpeed)
		assert.Equal(t, 30.0, *v.GroundSpeed)
		require.NotNil(t, v.VerticalSpeed)
		assert.Equal(t, 1.5, *v.VerticalSpeed)
		require.NotNil(t, v.Track)
		assert.Equal(t, 270, *v.Track)
		require.NotNil(t, v.OnGround)
		assert.False(t, *v.OnGround)
		assert.Equal(t, adsb.ManeuverCircling, v.Maneuver)
	})

	t.Run("ignores vectors after t", func(t *testing.T) {
		v, ok := d.StateVectorOrPrevious(at(1007))
		require.True(t, ok)
		assert.Equal(t, middle.Fix, v.Fix)
	})

	t.Run("stored vectors are not modified", func(t *testing.T) {
		assert.Nil(t, d.ListAllStateVectors()[2].GroundSpeed)
	})

	t.Run("nothing before t", func(t *testing.T) {
		_, ok := d.StateVectorOrPrevious(at(999))
		assert.False(t, ok)
	})
}

func TestListParticipatingDataSources(t *testing.T) {
	d := rawWith(
		vec(adsb.SourceOGN, 1005, 50, 14, 1000),
		vec(adsb.SourceADSB, 1000, 50, 14, 1000),
		vec(adsb.SourceOGN, 1010, 50, 14, 1000),
	)
	assert.Equal(t, []adsb.Source{adsb.SourceADSB, adsb.SourceOGN}, d.ListParticipatingDataSources())
}

func TestRemoveSource(t *testing.T) {
	d := rawWith(
		vec(adsb.SourceADSB, 1000, 50, 14, 1000),
		vec(adsb.SourceOGN, 1000, 50, 14, 1000),
		vec(adsb.SourceOGN, 1005, 50, 14, 1000),
	)

	assert.False(t, d.RemoveSource(adsb.SourceADSB))
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []adsb.Source{adsb.SourceOGN}, d.ListParticipatingDataSources())

	assert.True(t, d.RemoveSource(adsb.SourceOGN))
	assert.True(t, d.IsEmpty())
	_, ok := d.YoungestTime()
	assert.False(t, ok)
}

func TestAddDataAndMergeDuplicates(t *testing.T) {
	t.Run("AddData combines identity", func(t *testing.T) {
		d := NewAircraftRawData(NewIdentifier("", "AAA111", "", "", "", "", 1), NewAircraftInfo("", "", "", "", "", adsb.AircraftTypeUnknown, 1), 0, nil)
		d.AddStateVector(vec(adsb.SourceADSB, 1000, 50, 14, 1000))

		in := NewAircraftRawData(NewIdentifier("OK-ABC", "", "CSA1", "", "", "", 0), NewAircraftInfo("L-13", "", "", "", "", adsb.AircraftTypeGlider, 0), 0, nil)
		in.AddStateVector(vec(adsb.SourceOGN, 1001, 50, 14, 1000))

		id := d.Identifier.ID
		d.AddData(in)
		assert.Equal(t, id, d.Identifier.ID)
		assert.Equal(t, "OK-ABC", d.Identifier.Registration)
		assert.Equal(t, "CSA1", d.Identifier.Callsign)
		assert.Equal(t, "L-13", d.Info.Model)
		assert.Equal(t, 2, d.Len())
	})

	t.Run("MergeDuplicates keeps identity", func(t *testing.T) {
		d := NewAircraftRawData(NewIdentifier("", "AAA111", "", "", "", "", 1), AircraftInfo{}, 0, nil)
		d.AddStateVector(vec(adsb.SourceADSB, 1000, 50, 14, 1000))

		dup := NewAircraftRawData(NewIdentifier("", "BBB222", "CSA1", "", "", "", 0), NewAircraftInfo("L-13", "", "", "", "", adsb.AircraftTypeGlider, 0), 0, nil)
		dup.AddStateVector(vec(adsb.SourceOGN, 990, 50, 14, 1000))
		dup.AddStateVector(vec(adsb.SourceOGN, 995, 50, 14, 1000))

		d.MergeDuplicates(dup)
		assert.Equal(t, "AAA111", d.Identifier.Address)
		assert.Empty(t, d.Identifier.Callsign)
		assert.Equal(t, "L-13", d.Info.Model)
		assert.Equal(t, 3, d.Len())
		assert.Equal(t, at(990), d.ListAllStateVectors()[0].Fix.Time)
	})
}

func TestNearestFix(t *testing.T) {
	d := rawWith(
		vec(adsb.SourceADSB, 1000, 50, 14, 1000),
		vec(adsb.SourceADSB, 1010, 51, 14, 1000),
	)

	f, ok := d.nearestFix(at(1004))
	require.True(t, ok)
	assert.Equal(t, 50.0, f.Position.Latitude)

	f, _ = d.nearestFix(at(1006))
	assert.Equal(t, 51.0, f.Position.Latitude)

	f, _ = d.nearestFix(at(2000))
	assert.Equal(t, 51.0, f.Position.Latitude)

	f, _ = d.nearestFix(at(0))
	assert.Equal(t, 50.0, f.Position.Latitude)
}
