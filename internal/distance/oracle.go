// Package distance resolves travel cost between coordinates, either
// from an external driving-distance provider or from straight-line
// geometry, and assembles full origin/destination matrices for the
// route solver.
package distance

import (
	"context"
	"fmt"

	"fieldroute/internal/model"
)

// Result is the travel cost for one ordered origin→destination pair.
type Result struct {
	Km      float64
	Minutes float64
}

// Oracle answers batched pair queries. Implementations return a row
// per origin, a column per destination, in input order.
type Oracle interface {
	Pairs(ctx context.Context, origins, dests []model.Location) ([][]Result, error)
}

// Source records where a matrix cell came from.
type Source uint8

const (
	SourceGeometric Source = iota
	SourceProvider
	SourceCache
)

func (s Source) String() string {
	switch s {
	case SourceProvider:
		return "provider"
	case SourceCache:
		return "cache"
	default:
		return "geometric"
	}
}

// Matrix is a directed square travel-cost matrix over the points
// [start, dest_0 .. dest_{n-1}]. Row i, column j is the cost of
// travelling from point i to point j. The diagonal is zero.
type Matrix struct {
	N       int
	Km      [][]float64
	Minutes [][]float64
	Source  [][]Source
}

// NewMatrix allocates a zeroed n×n matrix.
func NewMatrix(n int) *Matrix {
	m := &Matrix{
		N:       n,
		Km:      make([][]float64, n),
		Minutes: make([][]float64, n),
		Source:  make([][]Source, n),
	}
	for i := 0; i < n; i++ {
		m.Km[i] = make([]float64, n)
		m.Minutes[i] = make([]float64, n)
		m.Source[i] = make([]Source, n)
	}
	return m
}

// ProviderError wraps a failure talking to the external provider so
// callers can distinguish it from bad input.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("distance provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
