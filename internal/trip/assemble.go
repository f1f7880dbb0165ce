// Package trip turns solver output back into domain objects and
// orchestrates full optimization runs.
package trip

import (
	"time"

	"github.com/google/uuid"

	"fieldroute/internal/distance"
	"fieldroute/internal/model"
	"fieldroute/internal/opt"
)

// DefaultDwellMinutes is the assumed time spent at each stop.
const DefaultDwellMinutes = 30.0

// Visit is a destination carried through an optimization run with its
// identity intact, so stop IDs and completion state survive
// re-optimization.
type Visit struct {
	ID          string
	AccountID   string
	Location    model.Location
	Status      string
	CompletedAt *time.Time
}

// Assemble converts a solved order into sequenced stops. visits[i]
// corresponds to matrix index i+1 (index 0 is the start). Each stop's
// estimated arrival is startAt plus cumulative travel minutes along
// the solved path plus dwell time at every prior stop.
func Assemble(sol opt.Solution, m *distance.Matrix, visits []Visit, startAt time.Time, dwellMinutes float64) []model.TripStop {
	if dwellMinutes < 0 {
		dwellMinutes = DefaultDwellMinutes
	}
	stops := make([]model.TripStop, 0, len(sol.Order))
	cur := 0
	elapsed := 0.0
	for pos, idx := range sol.Order {
		v := visits[idx-1]
		legKm := m.Km[cur][idx]
		legMin := m.Minutes[cur][idx]
		elapsed += legMin
		id := v.ID
		if id == "" {
			id = uuid.NewString()
		}
		status := v.Status
		if status == "" {
			status = model.StopStatusPending
		}
		stops = append(stops, model.TripStop{
			ID:               id,
			AccountID:        v.AccountID,
			Location:         v.Location,
			StopOrder:        pos,
			LegKm:            legKm,
			LegMinutes:       legMin,
			LegSource:        m.Source[cur][idx].String(),
			EstimatedArrival: startAt.Add(time.Duration(elapsed * float64(time.Minute))),
			Status:           status,
			CompletedAt:      v.CompletedAt,
		})
		elapsed += dwellMinutes
		cur = idx
	}
	return stops
}
