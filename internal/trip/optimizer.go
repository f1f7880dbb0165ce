package trip

import (
	"context"
	"fmt"
	"math"
	"time"

	"fieldroute/internal/distance"
	"fieldroute/internal/metrics"
	"fieldroute/internal/model"
	"fieldroute/internal/opt"
)

// Provider selection for one optimization run.
const (
	ProviderExternal  = "external"
	ProviderGeometric = "geometric"
)

// InvalidInputError rejects a request before any oracle call.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Options tune a single run. Zero values take the defaults below.
type Options struct {
	TimeBudget   time.Duration // default 30s
	SpeedKmh     float64       // default 40
	DwellMinutes float64       // default 30; explicit 0 means no dwell
	Provider     string        // external | geometric, default external
	HasDwell     bool          // true when DwellMinutes was set explicitly
}

func (o Options) withDefaults() Options {
	if o.TimeBudget <= 0 {
		o.TimeBudget = opt.DefaultTimeBudget
	}
	if o.SpeedKmh <= 0 {
		o.SpeedKmh = distance.DefaultSpeedKmh
	}
	if !o.HasDwell {
		o.DwellMinutes = DefaultDwellMinutes
	}
	if o.Provider == "" {
		o.Provider = ProviderExternal
	}
	return o
}

// Plan is the result of one optimization run, ready for the caller to
// persist on its Trip.
type Plan struct {
	Stops        []model.TripStop
	TotalKm      float64
	TotalMinutes float64
	Metrics      opt.Metrics
}

// Optimizer runs the full pipeline: matrix build, solve, assemble.
// Each call owns its own matrix, so concurrent runs need no
// coordination. Stateless apart from the shared provider client and
// cache.
type Optimizer struct {
	External distance.Oracle // nil disables the external provider
	Cache    *distance.Cache
	Solver   opt.Solver
	Defaults Options
}

func NewOptimizer(external distance.Oracle, cache *distance.Cache, defaults Options) *Optimizer {
	return &Optimizer{External: external, Cache: cache, Solver: opt.NearestNeighbor2Opt{}, Defaults: defaults}
}

// Optimize computes a visiting order over visits from start, returning
// sequenced stops with arrival estimates. Provider trouble degrades to
// geometric distances and is never surfaced as an error; only invalid
// input or context cancellation fails.
func (o *Optimizer) Optimize(ctx context.Context, start model.Location, visits []Visit, startAt time.Time, opts Options) (*Plan, error) {
	opts = mergeOptions(o.Defaults, opts).withDefaults()
	if err := validate(start, visits); err != nil {
		return nil, err
	}

	points := make([]model.Location, 0, len(visits)+1)
	points = append(points, start)
	for _, v := range visits {
		points = append(points, v.Location)
	}

	external := o.External
	if opts.Provider == ProviderGeometric {
		external = nil
	}
	builder := distance.NewBuilder(external, distance.NewGeometric(opts.SpeedKmh), o.Cache)
	m, err := builder.Build(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("build matrix: %w", err)
	}

	solver := o.Solver
	if solver == nil {
		solver = opt.NearestNeighbor2Opt{}
	}
	sol := solver.Solve(m, opts.TimeBudget)

	metrics.OptimizeDuration.WithLabelValues(opts.Provider).Observe(sol.Metrics.Elapsed.Seconds())
	if sol.Metrics.ConstructionKm > 0 {
		saved := (sol.Metrics.ConstructionKm - sol.Metrics.FinalKm) / sol.Metrics.ConstructionKm * 100
		metrics.OptimizeImprovement.Observe(saved)
	}

	stops := Assemble(sol, m, visits, startAt, opts.DwellMinutes)
	return &Plan{
		Stops:        stops,
		TotalKm:      sol.TotalKm,
		TotalMinutes: sol.TotalMinutes,
		Metrics:      sol.Metrics,
	}, nil
}

// Reoptimize re-runs the full pipeline over a trip's current stop set.
// No warm start: the set is small, and a fresh run keeps the result
// idempotent with Optimize.
func (o *Optimizer) Reoptimize(ctx context.Context, t *model.Trip, opts Options) (*Plan, error) {
	if !opts.HasDwell && t.DwellMinutes > 0 {
		opts.DwellMinutes = t.DwellMinutes
		opts.HasDwell = true
	}
	visits := VisitsOf(t)
	return o.Optimize(ctx, t.Start, visits, t.StartAt, opts)
}

// VisitsOf extracts the optimization inputs from a trip's stored
// stops, preserving stop identity.
func VisitsOf(t *model.Trip) []Visit {
	visits := make([]Visit, 0, len(t.Stops))
	for _, s := range t.Stops {
		visits = append(visits, Visit{
			ID:          s.ID,
			AccountID:   s.AccountID,
			Location:    s.Location,
			Status:      s.Status,
			CompletedAt: s.CompletedAt,
		})
	}
	return visits
}

func mergeOptions(base, override Options) Options {
	out := base
	if override.TimeBudget > 0 {
		out.TimeBudget = override.TimeBudget
	}
	if override.SpeedKmh > 0 {
		out.SpeedKmh = override.SpeedKmh
	}
	if override.HasDwell {
		out.DwellMinutes = override.DwellMinutes
		out.HasDwell = true
	}
	if override.Provider != "" {
		out.Provider = override.Provider
	}
	return out
}

func validate(start model.Location, visits []Visit) error {
	if err := validLocation("start", start); err != nil {
		return err
	}
	seen := make(map[string]bool, len(visits))
	for i, v := range visits {
		field := fmt.Sprintf("stops[%d]", i)
		if err := validLocation(field, v.Location); err != nil {
			return err
		}
		if v.ID != "" {
			if seen[v.ID] {
				return &InvalidInputError{Field: field, Reason: "duplicate stop id " + v.ID}
			}
			seen[v.ID] = true
		}
	}
	return nil
}

func validLocation(field string, l model.Location) error {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return &InvalidInputError{Field: field, Reason: "coordinates must be finite"}
	}
	if l.Lat < -90 || l.Lat > 90 {
		return &InvalidInputError{Field: field, Reason: "latitude out of range"}
	}
	if l.Lng < -180 || l.Lng > 180 {
		return &InvalidInputError{Field: field, Reason: "longitude out of range"}
	}
	return nil
}
