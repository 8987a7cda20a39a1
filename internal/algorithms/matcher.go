package algorithms

import (
	"math"
	"sort"
)

const (
	// EarthRadiusMeters - средний радиус Земли для haversine
	EarthRadiusMeters = 6371000.0

	DefaultMaxDistanceMeters = 10000.0
	DefaultLimit             = 5
)

// Candidate - всё, что нужно матчеру о спасателе.
// Lat/Lon == nil означает, что позиция не зарегистрирована.
type Candidate struct {
	ID        string
	Latitude  *float64
	Longitude *float64
}

type Match struct {
	Candidate      Candidate
	DistanceMeters float64
}

type Options struct {
	MaxDistanceMeters float64
	Limit             int
}

func (o Options) withDefaults() Options {
	if o.MaxDistanceMeters <= 0 {
		o.MaxDistanceMeters = DefaultMaxDistanceMeters
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine - расстояние по большому кругу в метрах
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*sinLon*sinLon

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Nearest ранжирует кандидатов по расстоянию до точки.
// Без позиции - исключаются. Дальше MaxDistance - отбрасываются.
// При равном расстоянии порядок по ID. Входной срез не меняется.
func Nearest(originLat, originLon float64, candidates []Candidate, opts Options) []Match {
	opts = opts.withDefaults()

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Latitude == nil || c.Longitude == nil {
			continue
		}
		d := Haversine(originLat, originLon, *c.Latitude, *c.Longitude)
		if d > opts.MaxDistanceMeters {
			continue
		}
		matches = append(matches, Match{Candidate: c, DistanceMeters: d})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceMeters != matches[j].DistanceMeters {
			return matches[i].DistanceMeters < matches[j].DistanceMeters
		}
		return matches[i].Candidate.ID < matches[j].Candidate.ID
	})

	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches
}
