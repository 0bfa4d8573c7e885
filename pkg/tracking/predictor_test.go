package tracking

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
)

func TestInterpolationMidpoint(t *testing.T) {
	p := NewPredictor(testConfig())
	d := rawWith(
		vec(adsb.SourceADSB, 1000, 0, 0, 1000),
		vec(adsb.SourceADSB, 1010, 10, 10, 2000),
	)

	got, ok := p.Resolve(at(1005), d)
	require.True(t, ok)
	assert.InDelta(t, 5.0, got.Position.Latitude, 1e-12)
	assert.InDelta(t, 5.0, got.Position.Longitude, 1e-12)
	assert.InDelta(t, 1500.0, got.Position.Altitude, 1e-9)
	assert.Equal(t, at(1005), got.Time)

	t.Run("exact fix is returned as is", func(t *testing.T) {
		got, ok := p.Resolve(at(1010), d)
		require.True(t, ok)
		assert.Equal(t, d.ListAllStateVectors()[1].Fix, got)
	})

	t.Run("no earlier neighbor fails", func(t *testing.T) {
		_, ok := p.Resolve(at(995), d)
		assert.False(t, ok)
	})
}

func TestInterpolationPrefersHigherPriorityWithinSecond(t *testing.T) {
	p := NewPredictor(testConfig())
	d := rawWith(
		vec(adsb.SourceADSB, 1000, 0, 0, 1000),
		vec(adsb.SourceOGN, 1000, 1, 1, 1000),
		vec(adsb.SourceADSB, 1010, 3, 3, 1000),
	)

	got, ok := p.Resolve(at(1000), d)
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Position.Latitude)
}

func TestExtrapolationFallsBackToLastFix(t *testing.T) {
	cfg := testConfig()
	cfg.MinFixCountForLinearRegression = 3
	p := NewPredictor(cfg)

	d := rawWith(
		vec(adsb.SourceADSB, 1000, 50.00, 14, 1000),
		vec(adsb.SourceADSB, 1010, 50.01, 14, 1100),
	)
	last := d.ListAllStateVectors()[1].Fix

	got, ok := p.Resolve(at(1020), d)
	require.True(t, ok)
	assert.Equal(t, last, got)
}

func TestExtrapolationFallbackUsesNewestRealFix(t *testing.T) {
	p := NewPredictor(testConfig())

	// OGN outranks ADS-B, so arbitration keeps only the older OGN fix
	d := rawWith(
		vec(adsb.SourceOGN, 1000, 50.00, 14, 1000),
		vec(adsb.SourceADSB, 1005, 50.05, 14, 1050),
	)
	last := d.ListAllStateVectors()[1].Fix

	got, ok := p.Resolve(at(1006), d)
	require.True(t, ok)
	assert.Equal(t, last, got)

	t.Run("trail before the fallback fix is kept", func(t *testing.T) {
		result, ac := p.Predict(at(1006), []time.Time{at(1004), at(1002)}, d, nil)
		require.Equal(t, ResultShow, result)
		assert.Equal(t, last, ac.State.Fix)
		require.Len(t, ac.Trail, 2)
		assert.Equal(t, at(1004), ac.Trail[0].Time)
	})

	t.Run("same second prefers the higher-priority source", func(t *testing.T) {
		d := rawWith(
			vec(adsb.SourceOGN, 1000, 50.00, 14, 1000),
			vec(adsb.SourceADSB, 1005, 50.05, 14, 1050),
			vec(adsb.SourceOGN, 1005, 50.06, 14, 1060),
		)
		got, ok := p.Resolve(at(1006), d)
		require.True(t, ok)
		assert.Equal(t, 50.06, got.Position.Latitude)
	})
}

// straightTrack flies east at 50 m/s, one fix every 10 s, ending at 1060.
func straightTrack() (*AircraftRawData, coordinates.Geographic) {
	origin := coordinates.Geographic{Latitude: 50, Longitude: 14, Altitude: 1000}
	var vs []StateVector
	for k := int64(0); k <= 6; k++ {
		pos := coordinates.FromLocal(origin, float64(k)*500, 0)
		vs = append(vs, vec(adsb.SourceADSB, 1000+k*10, pos.Latitude, pos.Longitude, 1000+float64(k)*20))
	}
	return rawWith(vs...), vs[len(vs)-1].Fix.Position
}

func TestExtrapolationLine(t *testing.T) {
	p := NewPredictor(testConfig())
	d, newest := straightTrack()

	got, ok := p.Resolve(at(1070), d)
	require.True(t, ok)

	want := coordinates.FromLocal(newest, 500, 0)
	assert.Less(t, coordinates.DistanceMeters(want, got.Position), 0.5)
	assert.InDelta(t, 1140, got.Position.Altitude, 1e-6)
	assert.Equal(t, at(1070), got.Time)
}

func TestExtrapolationHorizonClamp(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPredicted = 30 * time.Second
	p := NewPredictor(cfg)
	d, _ := straightTrack()

	far, ok := p.Resolve(at(1060+300), d)
	require.True(t, ok)
	limit, ok := p.Resolve(at(1060+30), d)
	require.True(t, ok)

	assert.Equal(t, limit, far)
	assert.Equal(t, at(1090), far.Time)
}

func TestExtrapolationCircle(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCircleRadiusForFitting = 1000
	cfg.MinTimeIntervalForPrediction = 40 * time.Second
	p := NewPredictor(cfg)

	// thermalling: radius 150 m, one turn per 60 s, counter-clockwise
	origin := coordinates.Geographic{Latitude: 49.5, Longitude: 17.0, Altitude: 1500}
	const radius = 150.0
	omega := 2 * math.Pi / 60
	pointAt := func(sec float64) coordinates.Geographic {
		th := omega * sec
		return coordinates.FromLocal(origin, radius*math.Cos(th), radius*math.Sin(th))
	}

	var vs []StateVector
	for k := int64(0); k <= 4; k++ {
		pos := pointAt(float64(k * 10))
		v := vec(adsb.SourceOGN, 2000+k*10, pos.Latitude, pos.Longitude, 1500)
		v.Maneuver = adsb.ManeuverCircling
		vs = append(vs, v)
	}
	d := rawWith(vs...)

	got, ok := p.Resolve(at(2045), d)
	require.True(t, ok)

	want := pointAt(45)
	assert.Less(t, coordinates.DistanceMeters(want, got.Position), 2.0)

	// a straight line would have left the circle
	assert.InDelta(t, radius, coordinates.DistanceMeters(origin, got.Position), 2.0)
}

func TestRedundantFixArbitration(t *testing.T) {
	p := NewPredictor(testConfig())

	t.Run("same second keeps higher priority", func(t *testing.T) {
		out := p.filterRedundant([]StateVector{
			vec(adsb.SourceADSB, 1000, 50, 14, 1000),
			vec(adsb.SourceOGN, 1000, 50.001, 14, 1000),
		})
		require.Len(t, out, 1)
		assert.Equal(t, adsb.SourceOGN, out[0].Source)
	})

	t.Run("windows walk back from the newest", func(t *testing.T) {
		out := p.filterRedundant([]StateVector{
			vec(adsb.SourceADSB, 1000, 50, 14, 1000),
			vec(adsb.SourceOGN, 1005, 50, 14, 1000),
			vec(adsb.SourceADSB, 1012, 50, 14, 1000),
		})
		require.Len(t, out, 2)
		assert.Equal(t, at(1000), out[0].Fix.Time)
		assert.Equal(t, at(1005), out[1].Fix.Time)
		assert.Equal(t, adsb.SourceOGN, out[1].Source)
	})

	t.Run("ties keep the newest", func(t *testing.T) {
		out := p.filterRedundant([]StateVector{
			vec(adsb.SourceADSB, 1000, 50, 14, 1000),
			vec(adsb.SourceADSB, 1004, 51, 14, 1000),
		})
		require.Len(t, out, 1)
		assert.Equal(t, at(1004), out[0].Fix.Time)
	})

	t.Run("raw fixes of a prediction are filtered", func(t *testing.T) {
		d := rawWith(
			vec(adsb.SourceADSB, 1000, 50, 14, 1000),
			vec(adsb.SourceOGN, 1000, 50, 14, 1000),
		)
		result, ac := p.Predict(at(1001), nil, d, nil)
		require.Equal(t, ResultShow, result)
		assert.Len(t, ac.RawFixes, 1)
		assert.Equal(t, []adsb.Source{adsb.SourceADSB, adsb.SourceOGN}, ac.Sources)
	})
}

func TestOnGround(t *testing.T) {
	cfg := testConfig()
	cfg.AltitudeThresholdForOnGroundDetection = 50
	cfg.MaxGroundSpeedForOnGroundDetection = 15
	p := NewPredictor(cfg)

	airport := &Airport{
		Area:      coordinates.Area{South: 49.99, West: 13.99, North: 50.01, East: 14.01},
		Elevation: 300,
	}
	onField := coordinates.Geographic{Latitude: 50, Longitude: 14, Altitude: 320}
	yes, no := true, false

	tests := []struct {
		name     string
		flag     *bool
		pos      coordinates.Geographic
		speed    float64
		airport  *Airport
		expected bool
	}{
		{"all three conditions", nil, onField, 5, airport, true},
		{"outside area", nil, coordinates.Geographic{Latitude: 50.1, Longitude: 14, Altitude: 320}, 5, airport, false},
		{"too high", nil, coordinates.Geographic{Latitude: 50, Longitude: 14, Altitude: 400}, 5, airport, false},
		{"too fast", nil, onField, 20, airport, false},
		{"no airport", nil, onField, 5, nil, false},
		{"explicit false wins", &no, onField, 5, airport, false},
		{"explicit true wins", &yes, coordinates.Geographic{Latitude: 10, Longitude: 10, Altitude: 9000}, 200, airport, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := StateVector{OnGround: tt.flag}
			assert.Equal(t, tt.expected, p.onGround(v, tt.pos, tt.speed, tt.airport))
		})
	}
}

func TestPredictLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.RealFixTimeout = 60 * time.Second
	p := NewPredictor(cfg)

	d := rawWith(vec(adsb.SourceADSB, 1000, 50, 14, 1000))

	t.Run("stale is removed", func(t *testing.T) {
		result, ac := p.Predict(at(1061), nil, d, nil)
		assert.Equal(t, ResultRemove, result)
		assert.Nil(t, ac)
	})

	t.Run("at timeout is kept", func(t *testing.T) {
		result, _ := p.Predict(at(1060), nil, d, nil)
		assert.Equal(t, ResultShow, result)
	})

	t.Run("future data is hidden", func(t *testing.T) {
		result, ac := p.Predict(at(990), nil, d, nil)
		assert.Equal(t, ResultHide, result)
		assert.Nil(t, ac)
	})

	t.Run("outside monitored area is removed", func(t *testing.T) {
		cfg := cfg
		cfg.MonitoredArea = coordinates.Area{South: 48, West: 12, North: 49, East: 13}
		result, _ := NewPredictor(cfg).Predict(at(1001), nil, d, nil)
		assert.Equal(t, ResultRemove, result)
	})

	t.Run("empty raw data panics", func(t *testing.T) {
		assert.PanicsWithValue(t, "tracking: predict called with empty raw data", func() {
			p.Predict(at(1000), nil, rawWith(), nil)
		})
	})
}

// climbingTrack climbs at rate m/s, one fix every 5 s from 1000 to 1020.
func climbingTrack(rate float64, maneuver adsb.Maneuver) *AircraftRawData {
	var vs []StateVector
	for k := int64(0); k <= 4; k++ {
		v := vec(adsb.SourceADSB, 1000+k*5, 50, 14+float64(k)*0.001, 1000+rate*float64(k*5))
		v.Maneuver = maneuver
		vs = append(vs, v)
	}
	return rawWith(vs...)
}

func TestPredictVerticalSpeedAndManeuver(t *testing.T) {
	cfg := testConfig()
	cfg.VerticalSpeedTimeDiff = 10 * time.Second
	cfg.VerticalSpeedThreshold = 0.3
	p := NewPredictor(cfg)

	tests := []struct {
		name     string
		rate     float64
		reported adsb.Maneuver
		wantVS   float64
		want     adsb.Maneuver
	}{
		{"climb", 2, adsb.ManeuverUnknown, 2, adsb.ManeuverClimb},
		{"descent", -3, adsb.ManeuverHorizon, -3, adsb.ManeuverDescent},
		{"below noise floor", 0.1, adsb.ManeuverClimb, 0, adsb.ManeuverHorizon},
		{"circling preserved", 1, adsb.ManeuverCircling, 1, adsb.ManeuverCircling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ac := p.Predict(at(1020), nil, climbingTrack(tt.rate, tt.reported), nil)
			require.Equal(t, ResultShow, result)
			assert.InDelta(t, tt.wantVS, ac.State.VerticalSpeed, 1e-9)
			assert.Equal(t, tt.want, ac.State.Maneuver)
		})
	}

	t.Run("falls back to reported rate", func(t *testing.T) {
		rate := 1.7
		v := vec(adsb.SourceADSB, 1000, 50, 14, 1000)
		v.VerticalSpeed = &rate
		result, ac := p.Predict(at(1000), nil, rawWith(v), nil)
		require.Equal(t, ResultShow, result)
		assert.Equal(t, 1.7, ac.State.VerticalSpeed)
	})
}

func TestPredictDefaultsAndTrail(t *testing.T) {
	p := NewPredictor(testConfig())
	d := climbingTrack(0, adsb.ManeuverUnknown)

	trail := []time.Time{at(1025), at(1015), at(1012), at(995)}
	result, ac := p.Predict(at(1020), trail, d, nil)
	require.Equal(t, ResultShow, result)

	assert.Equal(t, 0, ac.State.Track)
	assert.Equal(t, 0.0, ac.State.GroundSpeed)
	assert.False(t, ac.State.OnGround)
	assert.Equal(t, at(1020), ac.State.Fix.Time)
	assert.Equal(t, ac.State.Fix, ac.State.RealFix)

	require.Len(t, ac.Trail, 2)
	assert.Equal(t, at(1015), ac.Trail[0].Time)
	assert.Equal(t, at(1012), ac.Trail[1].Time)
	assert.Equal(t, d.Identifier, ac.Identifier)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, math.Pi, normalizeAngle(-math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, normalizeAngle(3*math.Pi/2), 1e-12)
	assert.InDelta(t, 0.5, normalizeAngle(0.5+4*math.Pi), 1e-12)
}
