package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
	"github.com/unklstewy/radarfusion/pkg/tracking"
)

func TestAzimuthToCardinal(t *testing.T) {
	tests := map[float64]string{
		0:      "N",
		11.24:  "N",
		11.25:  "NNE",
		90:     "E",
		180:    "S",
		247.5:  "WSW",
		348.75: "N",
		359.9:  "N",
	}
	for az, want := range tests {
		assert.Equal(t, want, azimuthToCardinal(az), "%v", az)
	}
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func TestPredictAllSortsByRange(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := tracking.DefaultConfig()
	c := tracking.NewCollection(cfg, fixedClock(now), nil)

	for i, lat := range []float64{50.3, 50.1, 50.2} {
		require.NoError(t, c.UpsertReport(adsb.Report{
			Source:    adsb.SourceADSB,
			Address:   []string{"AAA001", "AAA002", "AAA003"}[i],
			Latitude:  adsb.Float64(lat),
			Longitude: adsb.Float64(14),
			Altitude:  adsb.Float64(1000),
			Timestamp: adsb.Int64(now.Unix() - 1),
		}))
	}

	center := coordinates.Geographic{Latitude: 50, Longitude: 14}
	rows := predictAll(c, tracking.NewPredictor(cfg), nil, center, now)
	require.Len(t, rows, 3)
	assert.Equal(t, "AAA002", rows[0].aircraft.Identifier.Address)
	assert.Equal(t, "AAA001", rows[2].aircraft.Identifier.Address)
	assert.InDelta(t, 6.0, rows[0].rangeNM, 0.1)
	assert.Equal(t, "N", azimuthToCardinal(rows[0].bearing))

	var out bytes.Buffer
	printRows(&out, rows, 2)
	assert.Contains(t, out.String(), "AAA002")
	assert.NotContains(t, out.String(), "AAA001")
	assert.Contains(t, out.String(), "... and 1 more aircraft")
}
