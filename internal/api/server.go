package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fieldroute/internal/auth"
	"fieldroute/internal/config"
	"fieldroute/internal/distance"
	"fieldroute/internal/store"
	"fieldroute/internal/trip"
	"fieldroute/internal/webhooks"
)

type Server struct {
	Store     store.Store
	Pub       *webhooks.Publisher
	Auth      *auth.Verifier
	Broker    EventBroker
	Optimizer *trip.Optimizer
}

// NewServer creates a Server from config. Without a database URL it
// uses the in-memory store. A redis URL backs both the event broker
// and the distance pair cache. A Google Maps API key enables the
// external distance provider; without it all trips plan geometrically.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := sp.Migrate(ctx)
			cancel()
			if err != nil {
				return nil, err
			}
		}
		s = sp
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if opt, err := redis.ParseURL(cfg.RedisURL); err == nil {
			rdb = redis.NewClient(opt)
		}
	}
	var broker EventBroker
	if rdb != nil {
		broker = NewRedisBroker(rdb)
	} else {
		broker = NewBroker()
	}

	var external distance.Oracle
	if cfg.GoogleMapsAPIKey != "" {
		g, err := distance.NewGoogle(cfg.GoogleMapsAPIKey, cfg.GoogleMapsQPS)
		if err != nil {
			return nil, err
		}
		external = g
	}
	var cache *distance.Cache
	if rdb != nil {
		cache = distance.NewCache(rdb, 0)
	}

	opt := trip.NewOptimizer(external, cache, solverDefaults(cfg))
	return &Server{Store: s, Pub: webhooks.NewPublisher(s), Auth: auth.NewVerifierFromEnv(), Broker: broker, Optimizer: opt}, nil
}

func solverDefaults(cfg config.Config) trip.Options {
	var d trip.Options
	if cfg.TimeBudgetMs > 0 {
		d.TimeBudget = time.Duration(cfg.TimeBudgetMs) * time.Millisecond
	}
	if cfg.SpeedKmh > 0 {
		d.SpeedKmh = cfg.SpeedKmh
	}
	if cfg.DwellMinutes != nil {
		d.DwellMinutes = *cfg.DwellMinutes
		d.HasDwell = true
	}
	return d
}

// Routes mounts every handler on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/trips", s.TripsHandler)
	mux.HandleFunc("/v1/trips/", s.TripByIDHandler) // includes /optimize, /stops, /events/stream
	mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)
	mux.HandleFunc("/v1/admin/solve-metrics", s.SolveMetricsHandler)
	mux.HandleFunc("/v1/admin/trips/stats", s.TripStatsHandler)
	mux.HandleFunc("/v1/trips/ws", s.TripEventsWSHandler)
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debugz", s.DebugJSON)
	return mux
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	// For now, get tenant from header; in production decode from JWT.
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
