package coordinates

import (
	"math"
	"time"

	"github.com/skypies/geo"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// EarthRadiusMeters is EarthRadiusKm in meters
	EarthRadiusMeters = EarthRadiusKm * 1000.0

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048

	// MetersToFeet converts meters to feet
	MetersToFeet = 3.28084

	// KnotsToMetersPerSecond converts knots to m/s
	KnotsToMetersPerSecond = 1852.0 / 3600.0

	// FeetPerMinuteToMetersPerSecond converts ft/min to m/s
	FeetPerMinuteToMetersPerSecond = FeetToMeters / 60.0
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64

	// Altitude in meters above mean sea level (MSL)
	Altitude float64
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad, altMeters).
func (g Geographic) ToRadians() (float64, float64, float64) {
	return g.Latitude * DegreesToRadians,
		g.Longitude * DegreesToRadians,
		g.Altitude
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1, lon1, _ := from.ToRadians()
	lat2, lon2, _ := to.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// DistanceMeters calculates the great-circle distance between two points
// using the Haversine formula. Altitude is ignored.
func DistanceMeters(from, to Geographic) float64 {
	lat1Rad, lon1Rad, _ := from.ToRadians()
	lat2Rad, lon2Rad, _ := to.ToRadians()

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceNauticalMiles is DistanceMeters in nautical miles (1 nm = 1.852 km).
func DistanceNauticalMiles(from, to Geographic) float64 {
	return DistanceMeters(from, to) / 1852.0
}

// Lerp linearly interpolates between a and b. fraction=0 returns a,
// fraction=1 returns b; values outside [0,1] extrapolate.
func Lerp(a, b, fraction float64) float64 {
	return a + (b-a)*fraction
}

// TimeFraction returns how far t lies between t0 and t1 as a fraction of the
// interval. A zero-length interval yields 0.
func TimeFraction(t0, t1, t time.Time) float64 {
	span := t1.Sub(t0)
	if span == 0 {
		return 0
	}
	return float64(t.Sub(t0)) / float64(span)
}

// Interpolate interpolates latitude, longitude and altitude independently.
func Interpolate(a, b Geographic, fraction float64) Geographic {
	return Geographic{
		Latitude:  Lerp(a.Latitude, b.Latitude, fraction),
		Longitude: Lerp(a.Longitude, b.Longitude, fraction),
		Altitude:  Lerp(a.Altitude, b.Altitude, fraction),
	}
}

// ToLocal projects p onto a flat plane tangent at origin.
// Returns meters east (x) and north (y) of origin. Accurate for the few
// kilometers a single track spans.
func ToLocal(origin, p Geographic) (x, y float64) {
	cosLat := math.Cos(origin.Latitude * DegreesToRadians)
	x = (p.Longitude - origin.Longitude) * DegreesToRadians * EarthRadiusMeters * cosLat
	y = (p.Latitude - origin.Latitude) * DegreesToRadians * EarthRadiusMeters
	return x, y
}

// FromLocal is the inverse of ToLocal. Altitude is taken from origin.
func FromLocal(origin Geographic, x, y float64) Geographic {
	cosLat := math.Cos(origin.Latitude * DegreesToRadians)
	lat := origin.Latitude + y/EarthRadiusMeters*RadiansToDegrees
	lon := origin.Longitude
	if cosLat != 0 {
		lon += x / (EarthRadiusMeters * cosLat) * RadiansToDegrees
	}
	return Geographic{Latitude: lat, Longitude: lon, Altitude: origin.Altitude}
}

// Area is a latitude/longitude bounding box.
type Area struct {
	South float64
	West  float64
	North float64
	East  float64
}

// IsZero reports whether the area is unset.
func (a Area) IsZero() bool {
	return a == Area{}
}

// Contains reports whether p lies inside the box. Altitude is ignored.
func (a Area) Contains(p Geographic) bool {
	box := geo.LatlongBox{
		SW: geo.Latlong{Lat: a.South, Long: a.West},
		NE: geo.Latlong{Lat: a.North, Long: a.East},
	}
	return box.Contains(geo.Latlong{Lat: p.Latitude, Long: p.Longitude})
}

// Center returns the midpoint of the box.
func (a Area) Center() Geographic {
	return Geographic{
		Latitude:  (a.South + a.North) / 2,
		Longitude: (a.West + a.East) / 2,
	}
}
