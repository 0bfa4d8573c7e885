package coordinates

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMeters(t *testing.T) {
	t.Run("same point", func(t *testing.T) {
		p := Geographic{Latitude: 49.5, Longitude: 17.2}
		assert.InDelta(t, 0, DistanceMeters(p, p), 1e-9)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		a := Geographic{Latitude: 49.0, Longitude: 17.0}
		b := Geographic{Latitude: 50.0, Longitude: 17.0}
		// 2*pi*R/360
		assert.InDelta(t, 111195, DistanceMeters(a, b), 5)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := Geographic{Latitude: 35.2, Longitude: -80.9}
		b := Geographic{Latitude: 35.4, Longitude: -80.6}
		assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-6)
	})

	t.Run("nautical miles", func(t *testing.T) {
		a := Geographic{Latitude: 0, Longitude: 0}
		b := Geographic{Latitude: 1, Longitude: 0}
		assert.InDelta(t, DistanceMeters(a, b)/1852.0, DistanceNauticalMiles(a, b), 1e-9)
	})
}

func TestBearing(t *testing.T) {
	origin := Geographic{Latitude: 10, Longitude: 10}
	tests := []struct {
		name string
		to   Geographic
		want float64
	}{
		{"north", Geographic{Latitude: 11, Longitude: 10}, 0},
		{"east", Geographic{Latitude: 10, Longitude: 11}, 89.9},
		{"south", Geographic{Latitude: 9, Longitude: 10}, 180},
		{"west", Geographic{Latitude: 10, Longitude: 9}, 270.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Bearing(origin, tt.to), 0.5)
		})
	}
}

func TestNormalizeAzimuth(t *testing.T) {
	assert.InDelta(t, 10, NormalizeAzimuth(370), 1e-9)
	assert.InDelta(t, 350, NormalizeAzimuth(-10), 1e-9)
	assert.InDelta(t, 0, NormalizeAzimuth(360), 1e-9)
}

func TestInterpolate(t *testing.T) {
	a := Geographic{Latitude: 49.0, Longitude: 17.0, Altitude: 1000}
	b := Geographic{Latitude: 49.1, Longitude: 17.2, Altitude: 1100}

	mid := Interpolate(a, b, 0.5)
	assert.InDelta(t, 49.05, mid.Latitude, 1e-9)
	assert.InDelta(t, 17.1, mid.Longitude, 1e-9)
	assert.InDelta(t, 1050, mid.Altitude, 1e-9)

	assert.Equal(t, a, Interpolate(a, b, 0))
	assert.InDelta(t, b.Latitude, Interpolate(a, b, 1).Latitude, 1e-12)
}

func TestTimeFraction(t *testing.T) {
	t0 := time.Unix(1000, 0)
	t1 := time.Unix(1010, 0)

	assert.InDelta(t, 0.5, TimeFraction(t0, t1, time.Unix(1005, 0)), 1e-12)
	assert.InDelta(t, 1.5, TimeFraction(t0, t1, time.Unix(1015, 0)), 1e-12)
	assert.Equal(t, 0.0, TimeFraction(t0, t0, t1))
}

func TestLocalProjectionRoundTrip(t *testing.T) {
	origin := Geographic{Latitude: 49.2, Longitude: 16.6, Altitude: 500}
	p := Geographic{Latitude: 49.23, Longitude: 16.65}

	x, y := ToLocal(origin, p)
	assert.Greater(t, x, 0.0)
	assert.Greater(t, y, 0.0)

	back := FromLocal(origin, x, y)
	assert.InDelta(t, p.Latitude, back.Latitude, 1e-9)
	assert.InDelta(t, p.Longitude, back.Longitude, 1e-9)
	assert.Equal(t, origin.Altitude, back.Altitude)

	// Local distance agrees with haversine over a few km.
	assert.InDelta(t, DistanceMeters(origin, p), math.Hypot(x, y), 5)
}

func TestArea(t *testing.T) {
	area := Area{South: 48.5, West: 12.0, North: 51.1, East: 18.9}

	assert.False(t, area.IsZero())
	assert.True(t, Area{}.IsZero())

	assert.True(t, area.Contains(Geographic{Latitude: 49.8, Longitude: 15.5}))
	assert.False(t, area.Contains(Geographic{Latitude: 52.0, Longitude: 15.5}))
	assert.False(t, area.Contains(Geographic{Latitude: 49.8, Longitude: 20.0}))

	c := area.Center()
	assert.InDelta(t, 49.8, c.Latitude, 1e-9)
	assert.InDelta(t, 15.45, c.Longitude, 1e-9)
}

func TestFitLine(t *testing.T) {
	t.Run("exact line", func(t *testing.T) {
		xs := []float64{-4, -2, 0}
		ys := []float64{2, 6, 10}
		line, ok := FitLine(xs, ys)
		require.True(t, ok)
		assert.InDelta(t, 10, line.Intercept, 1e-9)
		assert.InDelta(t, 2, line.Slope, 1e-9)
		assert.InDelta(t, 14, line.At(2), 1e-9)
	})

	t.Run("too few points", func(t *testing.T) {
		_, ok := FitLine([]float64{1}, []float64{1})
		assert.False(t, ok)
	})

	t.Run("identical x", func(t *testing.T) {
		_, ok := FitLine([]float64{3, 3, 3}, []float64{1, 2, 3})
		assert.False(t, ok)
	})
}

func TestFitCircle(t *testing.T) {
	t.Run("points on a circle", func(t *testing.T) {
		const cx, cy, r = 120.0, -40.0, 900.0
		var xs, ys []float64
		for _, deg := range []float64{0, 20, 40, 60, 80} {
			th := deg * DegreesToRadians
			xs = append(xs, cx+r*math.Cos(th))
			ys = append(ys, cy+r*math.Sin(th))
		}

		c, ok := FitCircle(xs, ys)
		require.True(t, ok)
		assert.InDelta(t, cx, c.CenterX, 1e-6)
		assert.InDelta(t, cy, c.CenterY, 1e-6)
		assert.InDelta(t, r, c.Radius, 1e-6)
		assert.InDelta(t, r, c.DistanceFromCenter(xs[0], ys[0]), 1e-6)

		px, py := c.PointAt(c.Angle(xs[2], ys[2]), r)
		assert.InDelta(t, xs[2], px, 1e-6)
		assert.InDelta(t, ys[2], py, 1e-6)
	})

	t.Run("collinear points rejected", func(t *testing.T) {
		_, ok := FitCircle([]float64{0, 1, 2, 3}, []float64{0, 2, 4, 6})
		assert.False(t, ok)
	})

	t.Run("two points rejected", func(t *testing.T) {
		_, ok := FitCircle([]float64{0, 1}, []float64{0, 1})
		assert.False(t, ok)
	})

	t.Run("coincident points rejected", func(t *testing.T) {
		_, ok := FitCircle([]float64{5, 5, 5}, []float64{5, 5, 5})
		assert.False(t, ok)
	})
}
