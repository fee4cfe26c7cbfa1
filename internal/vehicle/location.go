package vehicle

import (
	"fmt"
	"math"
)

const earthRadiusM = 6371008.8

// Location is a geographic point with an optional heading constraint.
// Immutable once constructed; compared by great-circle distance.
type Location struct {
	Latitude  float64 // degrees
	Longitude float64 // degrees
	Altitude  float64 // meters, relative unless stated otherwise
	Heading   float64 // degrees, 0 = north
}

// DistanceTo returns the great-circle distance in meters between l
// and other, ignoring altitude.
func (l Location) DistanceTo(other Location) float64 {
	lat1 := l.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - l.Latitude) * math.Pi / 180
	dLon := (other.Longitude - l.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Offset returns a new location displaced by east and north meters
// using a flat-earth approximation around l. Good enough for the
// sub-kilometer displacements the harness works with.
func (l Location) Offset(eastM, northM float64) Location {
	const metersPerDegLat = 111_320.0
	metersPerDegLon := metersPerDegLat * math.Cos(l.Latitude*math.Pi/180)

	out := l
	out.Latitude += northM / metersPerDegLat
	out.Longitude += eastM / metersPerDegLon
	return out
}

// LocalOffset returns the east and north displacement in meters from
// origin to l, the inverse of Offset under the same flat-earth
// approximation.
func (l Location) LocalOffset(origin Location) (eastM, northM float64) {
	const metersPerDegLat = 111_320.0
	metersPerDegLon := metersPerDegLat * math.Cos(origin.Latitude*math.Pi/180)

	eastM = (l.Longitude - origin.Longitude) * metersPerDegLon
	northM = (l.Latitude - origin.Latitude) * metersPerDegLat
	return eastM, northM
}

func (l Location) String() string {
	return fmt.Sprintf("%.7f,%.7f alt=%.1f", l.Latitude, l.Longitude, l.Altitude)
}

// HeadingDelta returns the circular difference between two headings
// in degrees, in the range [0, 180]. Handles wraparound at 0/360.
func HeadingDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
