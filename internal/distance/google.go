package distance

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"fieldroute/internal/model"
)

// Provider batch limits. The distance matrix API rejects requests with
// more than 25 origins, 25 destinations, or 100 total elements, so the
// builder chunks matrices into at most 10×10 blocks.
const (
	MaxMatrixElements = 100
	MaxMatrixDim      = 25
	MaxBlockDim       = 10
)

// Google is an Oracle backed by the Google Distance Matrix API.
type Google struct {
	client  *maps.Client
	limiter *rate.Limiter
}

// NewGoogle builds a client for the given API key. qps limits request
// rate to the provider; zero means 10 req/s.
func NewGoogle(apiKey string, qps float64) (*Google, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	if qps <= 0 {
		qps = 10
	}
	return &Google{client: c, limiter: rate.NewLimiter(rate.Limit(qps), 1)}, nil
}

func (g *Google) Pairs(ctx context.Context, origins, dests []model.Location) ([][]Result, error) {
	if len(origins) > MaxMatrixDim || len(dests) > MaxMatrixDim {
		return nil, &ProviderError{Op: "pairs", Err: fmt.Errorf("batch too large: %dx%d", len(origins), len(dests))}
	}
	if len(origins)*len(dests) > MaxMatrixElements {
		return nil, &ProviderError{Op: "pairs", Err: fmt.Errorf("batch exceeds %d elements", MaxMatrixElements)}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Op: "rate", Err: err}
	}
	req := &maps.DistanceMatrixRequest{
		Origins:      coordStrings(origins),
		Destinations: coordStrings(dests),
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	}
	resp, err := g.client.DistanceMatrix(ctx, req)
	if err != nil {
		return nil, &ProviderError{Op: "distance_matrix", Err: err}
	}
	if len(resp.Rows) != len(origins) {
		return nil, &ProviderError{Op: "distance_matrix", Err: fmt.Errorf("got %d rows, want %d", len(resp.Rows), len(origins))}
	}
	out := make([][]Result, len(origins))
	for i, row := range resp.Rows {
		if len(row.Elements) != len(dests) {
			return nil, &ProviderError{Op: "distance_matrix", Err: fmt.Errorf("row %d: got %d elements, want %d", i, len(row.Elements), len(dests))}
		}
		res := make([]Result, len(dests))
		for j, el := range row.Elements {
			if el.Status != "OK" {
				return nil, &ProviderError{Op: "distance_matrix", Err: fmt.Errorf("element %d,%d status %s", i, j, el.Status)}
			}
			res[j] = Result{
				Km:      float64(el.Distance.Meters) / 1000,
				Minutes: el.Duration.Minutes(),
			}
		}
		out[i] = res
	}
	return out, nil
}

func coordStrings(locs []model.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = fmt.Sprintf("%f,%f", l.Lat, l.Lng)
	}
	return out
}
