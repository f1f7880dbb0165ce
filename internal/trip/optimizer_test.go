package trip

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"fieldroute/internal/model"
)

func testVisits(n int) []Visit {
	visits := make([]Visit, n)
	for i := range visits {
		visits[i] = Visit{
			ID:       string(rune('a' + i)),
			Location: model.Location{Lat: 50.8503 + float64(i+1)*0.01, Lng: 4.3517 + float64(i%3)*0.02},
		}
	}
	return visits
}

var testStart = model.Location{Label: "office", Lat: 50.8503, Lng: 4.3517}

func TestOptimizeGeometric(t *testing.T) {
	o := NewOptimizer(nil, nil, Options{})
	startAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	plan, err := o.Optimize(context.Background(), testStart, testVisits(6), startAt, Options{Provider: ProviderGeometric, TimeBudget: time.Second})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(plan.Stops) != 6 {
		t.Fatalf("got %d stops", len(plan.Stops))
	}
	for i, s := range plan.Stops {
		if s.StopOrder != i {
			t.Fatalf("stop %d has order %d", i, s.StopOrder)
		}
		if s.Status != model.StopStatusPending {
			t.Fatalf("stop %d status %q", i, s.Status)
		}
		if !s.EstimatedArrival.After(startAt) {
			t.Fatalf("stop %d arrival %v not after start", i, s.EstimatedArrival)
		}
	}
	if plan.TotalKm <= 0 || plan.TotalMinutes <= 0 {
		t.Fatalf("totals: %v km, %v min", plan.TotalKm, plan.TotalMinutes)
	}
}

func TestOptimizeArrivalArithmetic(t *testing.T) {
	o := NewOptimizer(nil, nil, Options{})
	startAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	opts := Options{Provider: ProviderGeometric, TimeBudget: time.Second, DwellMinutes: 15, HasDwell: true}
	plan, err := o.Optimize(context.Background(), testStart, testVisits(4), startAt, opts)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	travel := 0.0
	for i, s := range plan.Stops {
		travel += s.LegMinutes
		want := startAt.Add(time.Duration((travel + float64(i)*15) * float64(time.Minute)))
		if d := s.EstimatedArrival.Sub(want); d > time.Millisecond || d < -time.Millisecond {
			t.Fatalf("stop %d arrival %v, want %v", i, s.EstimatedArrival, want)
		}
	}
	if math.Abs(travel-plan.TotalMinutes) > 1e-6 {
		t.Fatalf("leg minutes sum %v != total %v", travel, plan.TotalMinutes)
	}
}

func TestOptimizeEmptyDestinations(t *testing.T) {
	o := NewOptimizer(nil, nil, Options{})
	plan, err := o.Optimize(context.Background(), testStart, nil, time.Now(), Options{Provider: ProviderGeometric})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(plan.Stops) != 0 || plan.TotalKm != 0 {
		t.Fatalf("trivial trip not empty: %+v", plan)
	}
}

func TestOptimizeInvalidInput(t *testing.T) {
	o := NewOptimizer(nil, nil, Options{})
	cases := []struct {
		name   string
		start  model.Location
		visits []Visit
	}{
		{"nan start", model.Location{Lat: math.NaN()}, nil},
		{"lat out of range", model.Location{Lat: 91}, nil},
		{"lng out of range", model.Location{Lng: 181}, nil},
		{"bad destination", testStart, []Visit{{Location: model.Location{Lat: -95}}}},
		{"duplicate ids", testStart, []Visit{
			{ID: "x", Location: model.Location{Lat: 1, Lng: 1}},
			{ID: "x", Location: model.Location{Lat: 2, Lng: 2}},
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := o.Optimize(context.Background(), c.start, c.visits, time.Now(), Options{Provider: ProviderGeometric})
			var ie *InvalidInputError
			if !errors.As(err, &ie) {
				t.Fatalf("err = %v, want InvalidInputError", err)
			}
		})
	}
}

func TestReoptimizeIdempotent(t *testing.T) {
	o := NewOptimizer(nil, nil, Options{})
	startAt := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	opts := Options{Provider: ProviderGeometric, TimeBudget: time.Second}
	plan, err := o.Optimize(context.Background(), testStart, testVisits(8), startAt, opts)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	tr := &model.Trip{Start: testStart, StartAt: startAt, Stops: plan.Stops}
	again, err := o.Reoptimize(context.Background(), tr, opts)
	if err != nil {
		t.Fatalf("Reoptimize: %v", err)
	}
	if len(again.Stops) != len(plan.Stops) {
		t.Fatalf("stop count changed: %d vs %d", len(again.Stops), len(plan.Stops))
	}
	for i := range plan.Stops {
		if again.Stops[i].ID != plan.Stops[i].ID {
			t.Fatalf("order changed at %d: %s vs %s", i, again.Stops[i].ID, plan.Stops[i].ID)
		}
	}
	if math.Abs(again.TotalKm-plan.TotalKm) > 1e-9 {
		t.Fatalf("total changed: %v vs %v", again.TotalKm, plan.TotalKm)
	}
}

func TestReoptimizeAfterRemoval(t *testing.T) {
	o := NewOptimizer(nil, nil, Options{})
	startAt := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	opts := Options{Provider: ProviderGeometric, TimeBudget: time.Second}
	plan, err := o.Optimize(context.Background(), testStart, testVisits(5), startAt, opts)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// Drop the last stop; the remaining four must re-sequence
	// contiguously and identity must be preserved.
	removedID := plan.Stops[len(plan.Stops)-1].ID
	tr := &model.Trip{Start: testStart, StartAt: startAt, Stops: plan.Stops[:len(plan.Stops)-1]}
	reduced, err := o.Reoptimize(context.Background(), tr, opts)
	if err != nil {
		t.Fatalf("Reoptimize: %v", err)
	}
	if len(reduced.Stops) != 4 {
		t.Fatalf("got %d stops, want 4", len(reduced.Stops))
	}
	for i, s := range reduced.Stops {
		if s.StopOrder != i {
			t.Fatalf("stop order not contiguous at %d: %d", i, s.StopOrder)
		}
		if s.ID == removedID {
			t.Fatalf("removed stop still present")
		}
	}
	// Both routes are heuristic local optima, so only a sanity bound
	// holds: four stops should not cost wildly more than five.
	if reduced.TotalKm > plan.TotalKm*1.5 {
		t.Fatalf("reduced route %v km out of proportion to full route %v km", reduced.TotalKm, plan.TotalKm)
	}
}
