package api

import (
	"fmt"
	"time"

	"fieldroute/internal/model"
	"fieldroute/internal/trip"
)

const maxTripStops = 200

func validateTripCreateRequest(req *model.TripCreateRequest) error {
	if err := validateLocation("start", req.Start); err != nil {
		return err
	}
	if len(req.Stops) > maxTripStops {
		return fmt.Errorf("too many stops: %d (max %d)", len(req.Stops), maxTripStops)
	}
	for i, s := range req.Stops {
		if err := validateLocation(fmt.Sprintf("stops[%d]", i), s.Location); err != nil {
			return err
		}
	}
	if req.StartAt != "" {
		if _, err := time.Parse(time.RFC3339, req.StartAt); err != nil {
			return fmt.Errorf("startAt must be RFC3339: %v", err)
		}
	}
	if req.DwellMinutes < 0 {
		return fmt.Errorf("dwellMinutes must be >= 0")
	}
	if req.Optimize != nil {
		return validateOptimizeOptions(req.Optimize)
	}
	return nil
}

func validateOptimizeOptions(o *model.OptimizeOptions) error {
	if o.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if o.SpeedKmh < 0 {
		return fmt.Errorf("speedKmh must be >= 0")
	}
	if o.Provider != "" && o.Provider != trip.ProviderExternal && o.Provider != trip.ProviderGeometric {
		return fmt.Errorf("invalid provider: %s (allowed: external, geometric)", o.Provider)
	}
	return nil
}

func validateLocation(field string, l model.Location) error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%s: lat out of range: %v", field, l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%s: lng out of range: %v", field, l.Lng)
	}
	return nil
}

// tripOptions converts request-level optimize options to solver options.
func tripOptions(o *model.OptimizeOptions) trip.Options {
	var out trip.Options
	if o == nil {
		return out
	}
	if o.TimeBudgetMs > 0 {
		out.TimeBudget = time.Duration(o.TimeBudgetMs) * time.Millisecond
	}
	out.SpeedKmh = o.SpeedKmh
	out.Provider = o.Provider
	return out
}
