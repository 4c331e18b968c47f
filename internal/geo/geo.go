package geo

import (
	"math"
	"time"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceKm returns the great-circle distance between a and b using the Haversine formula.
func DistanceKm(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// DisplayKm rounds a distance to the nearest whole kilometre. Presentation only.
func DisplayKm(km float64) int {
	return int(math.Round(km))
}

// BoundingBox returns a lat/lon box that contains every point within radiusKm of center.
// Used as a cheap index-friendly prefilter before the exact haversine check.
func BoundingBox(center Point, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	angular := radiusKm / EarthRadiusKm
	dLat := angular * 180 / math.Pi
	minLat = math.Max(center.Lat-dLat, -90)
	maxLat = math.Min(center.Lat+dLat, 90)

	// near the poles (or for huge radii) longitude stops being a useful filter
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if minLat == -90 || maxLat == 90 || math.Sin(angular) >= cosLat {
		return minLat, maxLat, -180, 180
	}
	dLon := math.Asin(math.Sin(angular)/cosLat) * 180 / math.Pi
	minLon, maxLon = center.Lon-dLon, center.Lon+dLon
	if minLon < -180 || maxLon > 180 {
		// the circle crosses the antimeridian; a single BETWEEN range cannot express the wrap
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLon, maxLon
}

// BirthdateWindow converts an inclusive age range into birthdates:
// a profile is in range iff minBirth < birthdate <= maxBirth.
//
//	maxBirth = today - minAge years
//	minBirth = today - (maxAge+1) years
func BirthdateWindow(today time.Time, minAge, maxAge int) (minBirth, maxBirth time.Time) {
	day := truncateDay(today)
	maxBirth = day.AddDate(-minAge, 0, 0)
	minBirth = day.AddDate(-(maxAge + 1), 0, 0)
	return minBirth, maxBirth
}

// InWindow reports whether birthdate falls inside a window produced by BirthdateWindow.
func InWindow(birthdate, minBirth, maxBirth time.Time) bool {
	b := truncateDay(birthdate)
	return b.After(minBirth) && !b.After(maxBirth)
}

// Age returns completed years between birthdate and today.
func Age(birthdate, today time.Time) int {
	b := truncateDay(birthdate)
	t := truncateDay(today)
	years := t.Year() - b.Year()
	if t.Before(b.AddDate(years, 0, 0)) {
		years--
	}
	return years
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
