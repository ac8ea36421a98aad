// Package geo implements the coordinate math behind post locations:
// great-circle distance and the privacy fuzzing applied before a post is stored.
package geo

import (
	"math"
	"math/rand/v2"
	"sync"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether p lies within the latitude/longitude ranges.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180 &&
		!math.IsNaN(p.Latitude) && !math.IsNaN(p.Longitude)
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Destination moves from p by distance meters along the initial bearing
// (radians, clockwise from north).
func Destination(p Point, distance, bearing float64) Point {
	delta := distance / EarthRadius
	lat1 := radians(p.Latitude)
	lon1 := radians(p.Longitude)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Point{
		Latitude:  degrees(lat2),
		Longitude: normalizeLongitude(degrees(lon2)),
	}
}

// Fuzzer produces a random nearby point for a true location.
// It is safe for concurrent use.
type Fuzzer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFuzzer returns a Fuzzer drawing from src. A nil src seeds a new
// PCG source from the runtime's random generator.
func NewFuzzer(src rand.Source) *Fuzzer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Fuzzer{rng: rand.New(src)}
}

// Fuzz returns a point at a uniformly drawn distance in [0, maxMeters]
// and a uniformly drawn bearing in [0, 2π) from p.
func (f *Fuzzer) Fuzz(p Point, maxMeters float64) Point {
	f.mu.Lock()
	distance := f.rng.Float64() * maxMeters
	bearing := f.rng.Float64() * 2 * math.Pi
	f.mu.Unlock()

	return Destination(p, distance, bearing)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func normalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
