package opt

import (
	"context"
	"math"
	"testing"
	"time"

	"fieldroute/internal/distance"
	"fieldroute/internal/model"
)

func matrixFor(t *testing.T, pts []model.Location) *distance.Matrix {
	t.Helper()
	b := distance.NewBuilder(nil, distance.NewGeometric(40), nil)
	m, err := b.Build(context.Background(), pts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

// clusterPoints spreads destinations around Brussels in a fixed,
// deliberately shuffled pattern so nearest-neighbor alone is not
// optimal.
func clusterPoints(n int) []model.Location {
	pts := make([]model.Location, 0, n+1)
	pts = append(pts, model.Location{Label: "start", Lat: 50.8503, Lng: 4.3517})
	for i := 0; i < n; i++ {
		ang := float64(i*7%n) / float64(n) * 2 * math.Pi
		r := 0.05 + 0.04*float64(i%3)
		pts = append(pts, model.Location{
			Lat: 50.8503 + r*math.Sin(ang),
			Lng: 4.3517 + r*math.Cos(ang),
		})
	}
	return pts
}

func assertCovering(t *testing.T, sol Solution, n int) {
	t.Helper()
	if len(sol.Order) != n {
		t.Fatalf("order length %d, want %d", len(sol.Order), n)
	}
	seen := make(map[int]bool, n)
	for _, idx := range sol.Order {
		if idx < 1 || idx > n {
			t.Fatalf("order contains out-of-range index %d", idx)
		}
		if seen[idx] {
			t.Fatalf("order visits index %d twice", idx)
		}
		seen[idx] = true
	}
}

func TestSolveEmpty(t *testing.T) {
	sol := Solve(matrixFor(t, clusterPoints(0)), time.Second)
	if len(sol.Order) != 0 || sol.TotalKm != 0 {
		t.Fatalf("empty problem: %+v", sol)
	}
}

func TestSolveSingle(t *testing.T) {
	sol := Solve(matrixFor(t, clusterPoints(1)), time.Second)
	if len(sol.Order) != 1 || sol.Order[0] != 1 {
		t.Fatalf("single destination: %+v", sol.Order)
	}
	if sol.Metrics.Passes != 0 {
		t.Fatalf("refinement ran for N=1")
	}
}

func TestSolveCoversAllExactlyOnce(t *testing.T) {
	for _, n := range []int{2, 5, 12, 25} {
		sol := Solve(matrixFor(t, clusterPoints(n)), time.Second)
		assertCovering(t, sol, n)
	}
}

func TestSolveDeterministic(t *testing.T) {
	m := matrixFor(t, clusterPoints(15))
	a := Solve(m, time.Second)
	b := Solve(m, time.Second)
	if len(a.Order) != len(b.Order) {
		t.Fatalf("order lengths differ")
	}
	for i := range a.Order {
		if a.Order[i] != b.Order[i] {
			t.Fatalf("orders diverge at %d: %v vs %v", i, a.Order, b.Order)
		}
	}
	if a.TotalKm != b.TotalKm {
		t.Fatalf("totals differ: %v vs %v", a.TotalKm, b.TotalKm)
	}
}

func TestSolveTieBreakLowestIndex(t *testing.T) {
	// Three coincident destinations: every choice is a tie, so the
	// order must be ascending by index.
	pts := []model.Location{
		{Lat: 50.8503, Lng: 4.3517},
		{Lat: 50.9, Lng: 4.4},
		{Lat: 50.9, Lng: 4.4},
		{Lat: 50.9, Lng: 4.4},
	}
	sol := Solve(matrixFor(t, pts), time.Second)
	for i, idx := range sol.Order {
		if idx != i+1 {
			t.Fatalf("tie-break order = %v, want [1 2 3]", sol.Order)
		}
	}
}

func TestRefinementNeverWorseThanConstruction(t *testing.T) {
	for _, n := range []int{5, 10, 20} {
		sol := Solve(matrixFor(t, clusterPoints(n)), time.Second)
		if sol.TotalKm > sol.Metrics.ConstructionKm+1e-9 {
			t.Fatalf("n=%d: refined %.4f km worse than construction %.4f km",
				n, sol.TotalKm, sol.Metrics.ConstructionKm)
		}
	}
}

func TestRefineStraightensDetour(t *testing.T) {
	// Four destinations on a line east of the start. The order
	// 2,1,3,4 doubles back once; reversing the first two positions
	// yields the straight sweep 1,2,3,4.
	pts := []model.Location{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.01},
		{Lat: 0, Lng: 0.02},
		{Lat: 0, Lng: 0.03},
		{Lat: 0, Lng: 0.04},
	}
	m := matrixFor(t, pts)
	order := []int{2, 1, 3, 4}
	before := pathKm(m, order)
	var met Metrics
	refine(m, order, time.Now().Add(time.Second), &met)
	want := []int{1, 2, 3, 4}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if met.Improvements == 0 {
		t.Fatalf("expected an improving reversal")
	}
	if after := pathKm(m, order); after >= before {
		t.Fatalf("refined %.4f km not better than %.4f km", after, before)
	}
}

func TestSegmentGain(t *testing.T) {
	pts := []model.Location{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.01},
		{Lat: 0, Lng: 0.02},
		{Lat: 0, Lng: 0.03},
	}
	m := matrixFor(t, pts)
	// Reversing [2,1] in 2,1,3 restores the sweep 1,2,3.
	order := []int{2, 1, 3}
	gain := segmentGain(m, order, 0, 1)
	wantGain := pathKm(m, []int{2, 1, 3}) - pathKm(m, []int{1, 2, 3})
	if math.Abs(gain-wantGain) > 1e-9 {
		t.Fatalf("gain = %v, want %v", gain, wantGain)
	}
	// Reversing the already straight sweep is a strict loss.
	if g := segmentGain(m, []int{1, 2, 3}, 0, 2); g > 0 {
		t.Fatalf("reversing optimal path reported gain %v", g)
	}
}

func TestSolveTriangleBeatsInputOrder(t *testing.T) {
	// Start in central Brussels with three destinations laid out so the
	// submission order zigzags: near north, far south, far north.
	pts := []model.Location{
		{Label: "start", Lat: 50.8503, Lng: 4.3517},
		{Lat: 50.90, Lng: 4.3517},
		{Lat: 50.70, Lng: 4.3517},
		{Lat: 50.95, Lng: 4.3517},
	}
	m := matrixFor(t, pts)
	sol := Solve(m, time.Second)
	assertCovering(t, sol, 3)
	naive := pathKm(m, []int{1, 2, 3})
	if sol.TotalKm > naive {
		t.Fatalf("solved %.2f km worse than submission order %.2f km (order %v)",
			sol.TotalKm, naive, sol.Order)
	}
	// The only orders at least as good as the north sweep start at 1.
	if sol.Order[0] != 1 {
		t.Fatalf("order = %v, want the near destination first", sol.Order)
	}
}

func TestSolveNearZeroBudgetStillCovers(t *testing.T) {
	sol := Solve(matrixFor(t, clusterPoints(25)), time.Nanosecond)
	assertCovering(t, sol, 25)
	if !sol.Metrics.BudgetExhausted {
		t.Fatalf("expected budget exhaustion with 1ns budget")
	}
	// Anytime guarantee: result equals construction when no pass ran.
	if sol.Metrics.Passes != 0 {
		t.Fatalf("pass ran despite exhausted budget")
	}
	if math.Abs(sol.TotalKm-sol.Metrics.ConstructionKm) > 1e-9 {
		t.Fatalf("result %.4f differs from construction %.4f", sol.TotalKm, sol.Metrics.ConstructionKm)
	}
}

func TestRecordAndGetMetrics(t *testing.T) {
	RecordMetrics("t1", "trip-a", Metrics{Passes: 3, FinalKm: 12.5})
	RecordMetrics("t1", "trip-b", Metrics{Passes: 1})
	RecordMetrics("t2", "trip-c", Metrics{Passes: 9})
	all := GetMetrics("t1", "")
	if len(all) != 2 {
		t.Fatalf("got %d entries for t1", len(all))
	}
	one := GetMetrics("t1", "trip-a")
	if len(one) != 1 || one["trip-a"].FinalKm != 12.5 {
		t.Fatalf("trip-a metrics: %+v", one)
	}
	if len(GetMetrics("t3", "")) != 0 {
		t.Fatalf("unknown tenant should be empty")
	}
}
