// Package opt computes visiting orders over a travel-cost matrix.
// The problem is an open path: fixed start, no return leg. Solvers are
// anytime: they always return a valid, fully covering order, refined
// as far as the wall-clock budget allowed.
package opt

import (
	"time"

	"fieldroute/internal/distance"
)

// DefaultTimeBudget bounds refinement when the caller does not set one.
const DefaultTimeBudget = 30 * time.Second

// improveEps is the minimum strict gain for a 2-opt move, guarding
// against float noise cycling the search.
const improveEps = 1e-6

// Solution is a visiting order over the matrix's destination indices.
// Order[k] is the matrix index (1..N-1) of the k-th visit; index 0 is
// the fixed start and never appears in Order.
type Solution struct {
	Order        []int
	TotalKm      float64
	TotalMinutes float64
	Metrics      Metrics
}

// Metrics describes one solver run.
type Metrics struct {
	Passes          int
	Improvements    int
	ConstructionKm  float64
	FinalKm         float64
	Elapsed         time.Duration
	BudgetExhausted bool
}

// Solver is the strategy contract. Implementations must honor the
// anytime guarantee: a valid order covering every destination exactly
// once, returned within roughly the given budget.
type Solver interface {
	Solve(m *distance.Matrix, budget time.Duration) Solution
}

// NearestNeighbor2Opt is the default strategy: greedy nearest-neighbor
// construction followed by first-improvement 2-opt refinement.
type NearestNeighbor2Opt struct{}

func (NearestNeighbor2Opt) Solve(m *distance.Matrix, budget time.Duration) Solution {
	return Solve(m, budget)
}

// Solve computes a visiting order for the destinations in m (indices
// 1..N-1) starting from index 0. Deterministic for a given matrix:
// nearest-neighbor ties go to the lowest index, and 2-opt applies the
// first strictly improving reversal in scan order. The budget is
// checked at the start of each full refinement pass; construction
// always runs to completion.
func Solve(m *distance.Matrix, budget time.Duration) Solution {
	if budget <= 0 {
		budget = DefaultTimeBudget
	}
	started := time.Now()
	order := construct(m)
	sol := Solution{Order: order}
	sol.Metrics.ConstructionKm = pathKm(m, order)

	// No improving reversal exists below 4 destinations.
	deadline := started.Add(budget)
	if len(order) >= 4 {
		refine(m, order, deadline, &sol.Metrics)
	}

	sol.TotalKm = pathKm(m, order)
	sol.TotalMinutes = pathMinutes(m, order)
	sol.Metrics.FinalKm = sol.TotalKm
	sol.Metrics.Elapsed = time.Since(started)
	return sol
}

// construct builds the order greedily: from the current point, go to
// the nearest unvisited destination, lowest index winning ties.
func construct(m *distance.Matrix) []int {
	n := m.N - 1
	if n <= 0 {
		return []int{}
	}
	order := make([]int, 0, n)
	visited := make([]bool, m.N)
	cur := 0
	for len(order) < n {
		next := -1
		best := 0.0
		for j := 1; j < m.N; j++ {
			if visited[j] {
				continue
			}
			d := m.Km[cur][j]
			if next == -1 || d < best {
				next, best = j, d
			}
		}
		visited[next] = true
		order = append(order, next)
		cur = next
	}
	return order
}

// refine runs 2-opt passes in place until a pass finds no improving
// move or the deadline arrives. A move reverses order[i..k]; for an
// open path only the edges entering position i and leaving position k
// change on a symmetric matrix. Driving matrices can be asymmetric,
// where the reversed interior legs change cost too, so the delta
// compares full segment cost before and after.
func refine(m *distance.Matrix, order []int, deadline time.Time, met *Metrics) {
	n := len(order)
	for {
		if !time.Now().Before(deadline) {
			met.BudgetExhausted = true
			return
		}
		met.Passes++
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				if segmentGain(m, order, i, k) > improveEps {
					reverse(order, i, k)
					met.Improvements++
					improved = true
				}
			}
		}
		if !improved {
			return
		}
	}
}

// segmentGain returns how much total path cost drops if order[i..k] is
// reversed. Positive means the reversal is an improvement.
func segmentGain(m *distance.Matrix, order []int, i, k int) float64 {
	before := 0.0
	after := 0.0
	prev := 0
	if i > 0 {
		prev = order[i-1]
	}
	// entering edge and interior legs, original direction
	cur := prev
	for x := i; x <= k; x++ {
		before += m.Km[cur][order[x]]
		cur = order[x]
	}
	// reversed direction
	cur = prev
	for x := k; x >= i; x-- {
		after += m.Km[cur][order[x]]
		cur = order[x]
	}
	// leaving edge, if the segment is not the tail
	if k+1 < len(order) {
		before += m.Km[order[k]][order[k+1]]
		after += m.Km[order[i]][order[k+1]]
	}
	return before - after
}

func reverse(order []int, i, k int) {
	for a, b := i, k; a < b; a, b = a+1, b-1 {
		order[a], order[b] = order[b], order[a]
	}
}

func pathKm(m *distance.Matrix, order []int) float64 {
	total := 0.0
	cur := 0
	for _, idx := range order {
		total += m.Km[cur][idx]
		cur = idx
	}
	return total
}

func pathMinutes(m *distance.Matrix, order []int) float64 {
	total := 0.0
	cur := 0
	for _, idx := range order {
		total += m.Minutes[cur][idx]
		cur = idx
	}
	return total
}
