package distance

import (
	"context"
	"log"

	"fieldroute/internal/metrics"
	"fieldroute/internal/model"
)

// Builder assembles the full directed travel-cost matrix over a set
// of points. Cells are resolved from the pair cache first, then from
// the provider in chunked block requests, and fall back to geometric
// estimates for any block the provider cannot answer.
type Builder struct {
	Provider Oracle     // nil means geometric only
	Fallback *Geometric // never nil in practice
	Cache    *Cache     // optional
}

func NewBuilder(provider Oracle, fallback *Geometric, cache *Cache) *Builder {
	if fallback == nil {
		fallback = NewGeometric(0)
	}
	return &Builder{Provider: provider, Fallback: fallback, Cache: cache}
}

// Build returns the n×n matrix over points, where n = len(points).
// The matrix is directed: cell (i,j) may differ from (j,i) when the
// provider reports asymmetric driving routes. The diagonal is zero.
// Build fails only on context cancellation; provider trouble degrades
// to geometric cells instead.
func (b *Builder) Build(ctx context.Context, points []model.Location) (*Matrix, error) {
	n := len(points)
	m := NewMatrix(n)
	if n < 2 {
		return m, nil
	}
	if b.Provider == nil {
		b.fillGeometric(m, points, 0, n, 0, n)
		return m, nil
	}

	filled := make([][]bool, n)
	for i := range filled {
		filled[i] = make([]bool, n)
		filled[i][i] = true
	}
	if b.Cache != nil {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if filled[i][j] {
					continue
				}
				if r, ok := b.Cache.Get(ctx, points[i], points[j]); ok {
					m.Km[i][j], m.Minutes[i][j] = r.Km, r.Minutes
					m.Source[i][j] = SourceCache
					filled[i][j] = true
					metrics.MatrixCells.WithLabelValues("cache").Inc()
				}
			}
		}
	}

	for r0 := 0; r0 < n; r0 += MaxBlockDim {
		r1 := min(r0+MaxBlockDim, n)
		for c0 := 0; c0 < n; c0 += MaxBlockDim {
			c1 := min(c0+MaxBlockDim, n)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if blockFilled(filled, r0, r1, c0, c1) {
				continue
			}
			rows, err := b.Provider.Pairs(ctx, points[r0:r1], points[c0:c1])
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Printf("level=warn msg=\"matrix block fallback\" block=%d:%d,%d:%d err=%q", r0, r1, c0, c1, err)
				metrics.MatrixBatches.WithLabelValues("fallback").Inc()
				b.fillGeometricUnfilled(m, points, filled, r0, r1, c0, c1)
				continue
			}
			metrics.MatrixBatches.WithLabelValues("ok").Inc()
			for i := r0; i < r1; i++ {
				for j := c0; j < c1; j++ {
					if filled[i][j] {
						continue
					}
					r := rows[i-r0][j-c0]
					m.Km[i][j], m.Minutes[i][j] = r.Km, r.Minutes
					m.Source[i][j] = SourceProvider
					filled[i][j] = true
					metrics.MatrixCells.WithLabelValues("provider").Inc()
					if b.Cache != nil {
						b.Cache.Put(ctx, points[i], points[j], r)
					}
				}
			}
		}
	}
	return m, nil
}

func (b *Builder) fillGeometric(m *Matrix, points []model.Location, r0, r1, c0, c1 int) {
	for i := r0; i < r1; i++ {
		for j := c0; j < c1; j++ {
			if i == j {
				continue
			}
			km := HaversineKm(points[i].Lat, points[i].Lng, points[j].Lat, points[j].Lng)
			m.Km[i][j] = km
			m.Minutes[i][j] = km / b.Fallback.SpeedKmh * 60
			m.Source[i][j] = SourceGeometric
		}
	}
}

func (b *Builder) fillGeometricUnfilled(m *Matrix, points []model.Location, filled [][]bool, r0, r1, c0, c1 int) {
	for i := r0; i < r1; i++ {
		for j := c0; j < c1; j++ {
			if filled[i][j] {
				continue
			}
			km := HaversineKm(points[i].Lat, points[i].Lng, points[j].Lat, points[j].Lng)
			m.Km[i][j] = km
			m.Minutes[i][j] = km / b.Fallback.SpeedKmh * 60
			m.Source[i][j] = SourceGeometric
			filled[i][j] = true
			metrics.MatrixCells.WithLabelValues("geometric").Inc()
		}
	}
}

func blockFilled(filled [][]bool, r0, r1, c0, c1 int) bool {
	for i := r0; i < r1; i++ {
		for j := c0; j < c1; j++ {
			if !filled[i][j] {
				return false
			}
		}
	}
	return true
}
