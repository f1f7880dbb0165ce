package distance

import (
	"context"
	"math"
	"testing"

	"fieldroute/internal/model"
)

func TestHaversineKm(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tol                    float64
	}{
		{"same point", 50.8503, 4.3517, 50.8503, 4.3517, 0, 1e-9},
		{"brussels to antwerp", 50.8503, 4.3517, 51.2194, 4.4025, 41.3, 0.5},
		{"brussels to paris", 50.8503, 4.3517, 48.8566, 2.3522, 264.0, 2.0},
		{"equator degree of longitude", 0, 0, 0, 1, 111.19, 0.1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := HaversineKm(c.lat1, c.lng1, c.lat2, c.lng2)
			if math.Abs(got-c.want) > c.tol {
				t.Fatalf("HaversineKm = %.3f, want %.3f ± %.3f", got, c.want, c.tol)
			}
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := HaversineKm(50.8503, 4.3517, 51.2194, 4.4025)
	b := HaversineKm(51.2194, 4.4025, 50.8503, 4.3517)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("haversine not symmetric: %v vs %v", a, b)
	}
}

func TestGeometricPairs(t *testing.T) {
	g := NewGeometric(40)
	origins := []model.Location{{Lat: 50.8503, Lng: 4.3517}}
	dests := []model.Location{{Lat: 50.8503, Lng: 4.3517}, {Lat: 51.2194, Lng: 4.4025}}
	rows, err := g.Pairs(context.Background(), origins, dests)
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 2 {
		t.Fatalf("got %dx%d result", len(rows), len(rows[0]))
	}
	if rows[0][0].Km != 0 || rows[0][0].Minutes != 0 {
		t.Fatalf("self pair not zero: %+v", rows[0][0])
	}
	r := rows[0][1]
	wantMin := r.Km / 40 * 60
	if math.Abs(r.Minutes-wantMin) > 1e-9 {
		t.Fatalf("minutes %.4f, want %.4f at 40 km/h", r.Minutes, wantMin)
	}
}

func TestNewGeometricDefaultSpeed(t *testing.T) {
	if g := NewGeometric(0); g.SpeedKmh != DefaultSpeedKmh {
		t.Fatalf("default speed = %v", g.SpeedKmh)
	}
	if g := NewGeometric(-5); g.SpeedKmh != DefaultSpeedKmh {
		t.Fatalf("negative speed not defaulted")
	}
}
