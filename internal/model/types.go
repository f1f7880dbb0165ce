package model

import "time"

// Trip lifecycle statuses.
const (
	TripStatusDraft      = "draft"
	TripStatusPlanned    = "planned"
	TripStatusInProgress = "in_progress"
	TripStatusCompleted  = "completed"
	TripStatusCancelled  = "cancelled"
)

// Stop statuses.
const (
	StopStatusPending   = "pending"
	StopStatusCompleted = "completed"
	StopStatusSkipped   = "skipped"
)

// Location is a WGS84 coordinate pair, optionally labeled.
type Location struct {
	Label string  `json:"label,omitempty"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// Trip is a planned day of field visits for one rep: an ordered
// sequence of stops starting from a fixed start location.
type Trip struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	RepID        string     `json:"repId,omitempty"`
	Name         string     `json:"name,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Version      int        `json:"version"`
	Status       string     `json:"status"`
	Start        Location   `json:"start"`
	StartAt      time.Time  `json:"startAt"`
	DwellMinutes float64    `json:"dwellMinutes,omitempty"`
	Stops        []TripStop `json:"stops"`
	TotalKm      float64    `json:"totalKm"`
	TotalMinutes float64    `json:"totalMinutes"`
	OptimizedAt  *time.Time `json:"optimizedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TripStop is one visit in a trip. StopOrder is the position in the
// optimized sequence, contiguous from 0.
type TripStop struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"accountId,omitempty"`
	Location         Location   `json:"location"`
	StopOrder        int        `json:"stopOrder"`
	LegKm            float64    `json:"legKm"`
	LegMinutes       float64    `json:"legMinutes"`
	LegSource        string     `json:"legSource,omitempty"`
	EstimatedArrival time.Time  `json:"estimatedArrival"`
	Status           string     `json:"status"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// TripCreateRequest is the POST /v1/trips body.
type TripCreateRequest struct {
	RepID        string           `json:"repId,omitempty"`
	Name         string           `json:"name,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	Start        Location         `json:"start"`
	StartAt      string           `json:"startAt,omitempty"`
	DwellMinutes float64          `json:"dwellMinutes,omitempty"`
	Stops        []StopIn         `json:"stops"`
	Optimize     *OptimizeOptions `json:"optimize,omitempty"`
}

// StopIn is a destination submitted by a client.
type StopIn struct {
	AccountID string   `json:"accountId,omitempty"`
	Location  Location `json:"location"`
}

// OptimizeOptions tune a single optimization run.
type OptimizeOptions struct {
	TimeBudgetMs int     `json:"timeBudgetMs,omitempty"`
	Provider     string  `json:"provider,omitempty"` // external | geometric
	SpeedKmh     float64 `json:"speedKmh,omitempty"`
}

// TripPatch is the PATCH /v1/trips/{id} body.
type TripPatch struct {
	Status       string   `json:"status,omitempty"`
	RepID        string   `json:"repId,omitempty"`
	Name         string   `json:"name,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	StartAt      string   `json:"startAt,omitempty"`
	DwellMinutes *float64 `json:"dwellMinutes,omitempty"`
}

// StopAddRequest is the POST /v1/trips/{id}/stops body.
type StopAddRequest struct {
	AccountID  string           `json:"accountId,omitempty"`
	Location   Location         `json:"location"`
	Reoptimize bool             `json:"reoptimize,omitempty"`
	Optimize   *OptimizeOptions `json:"optimize,omitempty"`
}

// TripEvent is published on the broker and delivered to webhooks.
type TripEvent struct {
	Type     string         `json:"type"`
	TenantID string         `json:"tenantId"`
	TripID   string         `json:"tripId"`
	StopID   string         `json:"stopId,omitempty"`
	TS       string         `json:"ts"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Event types emitted by the API.
const (
	EventTripOptimized     = "trip.optimized"
	EventTripStopAdded     = "trip.stop.added"
	EventTripStopRemoved   = "trip.stop.removed"
	EventTripStopCompleted = "trip.stop.completed"
	EventTripStatusChanged = "trip.status.changed"
)

// SubscriptionRequest registers a webhook endpoint.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Subscription is a stored webhook registration.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
