package tracking

import (
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(unix int64) { c.now = time.Unix(unix, 0) }

func newFakeClock(unix int64) *fakeClock {
	return &fakeClock{now: time.Unix(unix, 0)}
}

// testConfig is DefaultConfig with OGN ranked above ADS-B.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SourcePriority = []adsb.Source{adsb.SourceOGN, adsb.SourceADSB}
	return cfg
}

func at(unix int64) time.Time { return time.Unix(unix, 0) }

func vec(src adsb.Source, unix int64, lat, lon, alt float64) StateVector {
	return StateVector{
		Fix: Fix{
			Position: coordinates.Geographic{Latitude: lat, Longitude: lon, Altitude: alt},
			Time:     at(unix),
		},
		Source: src,
	}
}

// rawWith builds an untimed-eviction history holding vs.
func rawWith(vs ...StateVector) *AircraftRawData {
	d := NewAircraftRawData(NewIdentifier("", "ABC123", "", "", "", "", 0), AircraftInfo{}, 0, nil)
	for _, v := range vs {
		d.AddStateVector(v)
	}
	return d
}

func report(src adsb.Source, unix int64, lat, lon, alt float64) adsb.Report {
	return adsb.Report{
		Source:    src,
		Latitude:  adsb.Float64(lat),
		Longitude: adsb.Float64(lon),
		Altitude:  adsb.Float64(alt),
		Timestamp: adsb.Int64(unix),
	}
}
