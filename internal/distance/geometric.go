package distance

import (
	"context"
	"math"

	"fieldroute/internal/model"
)

const earthRadiusKm = 6371.0

// DefaultSpeedKmh is the assumed average speed when estimating travel
// time from straight-line distance.
const DefaultSpeedKmh = 40.0

// Geometric is an Oracle that computes great-circle distances locally.
// It never fails and never blocks, which also makes it the fallback
// when the external provider is unavailable.
type Geometric struct {
	SpeedKmh float64
}

func NewGeometric(speedKmh float64) *Geometric {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return &Geometric{SpeedKmh: speedKmh}
}

func (g *Geometric) Pairs(_ context.Context, origins, dests []model.Location) ([][]Result, error) {
	out := make([][]Result, len(origins))
	for i, o := range origins {
		row := make([]Result, len(dests))
		for j, d := range dests {
			km := HaversineKm(o.Lat, o.Lng, d.Lat, d.Lng)
			row[j] = Result{Km: km, Minutes: km / g.SpeedKmh * 60}
		}
		out[i] = row
	}
	return out, nil
}

// HaversineKm returns the great-circle distance between two WGS84
// coordinates in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLng := deg2rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
