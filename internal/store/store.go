package store

import (
	"context"
	"errors"
	"time"

	"fieldroute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Trips
	CreateTrip(ctx context.Context, t model.Trip) (model.Trip, error)
	GetTrip(ctx context.Context, tenantID, tripID string) (model.Trip, error)
	ListTrips(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Trip, string, error)
	PatchTrip(ctx context.Context, tenantID, tripID string, patch model.TripPatch) (model.Trip, error)
	DeleteTrip(ctx context.Context, tenantID, tripID string) error

	// Stops. ReplaceStops installs a freshly optimized sequence and
	// bumps the trip version; RemoveStop and CompleteStop mutate a
	// single stop and return the updated trip.
	ReplaceStops(ctx context.Context, tenantID, tripID string, stops []model.TripStop, totalKm, totalMinutes float64, optimizedAt time.Time) (model.Trip, error)
	RemoveStop(ctx context.Context, tenantID, tripID, stopID string) (model.Trip, error)
	CompleteStop(ctx context.Context, tenantID, tripID, stopID string, at time.Time) (model.Trip, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Stats for the admin surface
	TripStats(ctx context.Context, tenantID string) (map[string]any, error)
}

var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a write raced a newer version of
// the same trip.
var ErrVersionConflict = errors.New("version conflict")
