package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu    sync.Mutex
	trips map[string]model.Trip           // id -> trip
	byTen map[string][]string             // tenant -> trip ids, insertion order
	subs  map[string][]model.Subscription // tenant -> subscriptions
	// Webhooks queue state
	deliveries         map[string]*memDelivery
	deliveriesByTenant map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		trips:              map[string]model.Trip{},
		byTen:              map[string][]string{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func cloneTrip(t model.Trip) model.Trip {
	out := t
	out.Stops = append([]model.TripStop(nil), t.Stops...)
	return out
}

func (m *Memory) CreateTrip(ctx context.Context, t model.Trip) (model.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.Version = 1
	if t.Status == "" {
		t.Status = model.TripStatusPlanned
	}
	t.CreatedAt, t.UpdatedAt = now, now
	m.trips[t.ID] = cloneTrip(t)
	m.byTen[t.TenantID] = append(m.byTen[t.TenantID], t.ID)
	return t, nil
}

func (m *Memory) GetTrip(ctx context.Context, tenantID, tripID string) (model.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok || t.TenantID != tenantID {
		return model.Trip{}, ErrNotFound
	}
	return cloneTrip(t), nil
}

func (m *Memory) ListTrips(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Trip, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.Trip{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		t := m.trips[ids[i]]
		if status == "" || t.Status == status {
			out = append(out, cloneTrip(t))
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) PatchTrip(ctx context.Context, tenantID, tripID string, patch model.TripPatch) (model.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok || t.TenantID != tenantID {
		return model.Trip{}, ErrNotFound
	}
	if patch.Status != "" {
		t.Status = patch.Status
	}
	if patch.RepID != "" {
		t.RepID = patch.RepID
	}
	if patch.Name != "" {
		t.Name = patch.Name
	}
	if patch.Notes != "" {
		t.Notes = patch.Notes
	}
	if patch.StartAt != "" {
		if at, err := time.Parse(time.RFC3339, patch.StartAt); err == nil {
			t.StartAt = at
		}
	}
	if patch.DwellMinutes != nil {
		t.DwellMinutes = *patch.DwellMinutes
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	m.trips[tripID] = t
	return cloneTrip(t), nil
}

func (m *Memory) DeleteTrip(ctx context.Context, tenantID, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok || t.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.trips, tripID)
	ids := m.byTen[tenantID]
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != tripID {
			out = append(out, id)
		}
	}
	m.byTen[tenantID] = out
	return nil
}

func (m *Memory) ReplaceStops(ctx context.Context, tenantID, tripID string, stops []model.TripStop, totalKm, totalMinutes float64, optimizedAt time.Time) (model.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok || t.TenantID != tenantID {
		return model.Trip{}, ErrNotFound
	}
	t.Stops = append([]model.TripStop(nil), stops...)
	t.TotalKm = totalKm
	t.TotalMinutes = totalMinutes
	if !optimizedAt.IsZero() {
		t.OptimizedAt = &optimizedAt
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	m.trips[tripID] = t
	return cloneTrip(t), nil
}

func (m *Memory) RemoveStop(ctx context.Context, tenantID, tripID, stopID string) (model.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok || t.TenantID != tenantID {
		return model.Trip{}, ErrNotFound
	}
	kept := make([]model.TripStop, 0, len(t.Stops))
	found := false
	for _, s := range t.Stops {
		if s.ID == stopID {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return model.Trip{}, ErrNotFound
	}
	// Keep stop_order contiguous even before the caller re-optimizes.
	for i := range kept {
		kept[i].StopOrder = i
	}
	t.Stops = kept
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	m.trips[tripID] = t
	return cloneTrip(t), nil
}

func (m *Memory) CompleteStop(ctx context.Context, tenantID, tripID, stopID string, at time.Time) (model.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok || t.TenantID != tenantID {
		return model.Trip{}, ErrNotFound
	}
	found := false
	for i := range t.Stops {
		if t.Stops[i].ID == stopID {
			t.Stops[i].Status = model.StopStatusCompleted
			t.Stops[i].CompletedAt = &at
			found = true
			break
		}
	}
	if !found {
		return model.Trip{}, ErrNotFound
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	m.trips[tripID] = t
	return cloneTrip(t), nil
}

func (m *Memory) CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: tenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[tenantID] = append(m.subs[tenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs[tenantID] = out
	return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.iterDeliveryIDs() {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.deliveriesByTenant[tenantID] {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if status == "" || d.Status == status {
			item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
			if !d.NextAttemptAt.IsZero() {
				item["nextAttemptAt"] = d.NextAttemptAt
			}
			if d.LastError != "" {
				item["lastError"] = d.LastError
			}
			out = append(out, item)
		}
	}
	return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil && d.TenantID == tenantID {
		d.Status = "pending"
		d.NextAttemptAt = time.Now()
	}
	return nil
}

func (m *Memory) TripStats(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trips, stops, completed := 0, 0, 0
	totalKm := 0.0
	for _, id := range m.byTen[tenantID] {
		t := m.trips[id]
		trips++
		stops += len(t.Stops)
		totalKm += t.TotalKm
		for _, s := range t.Stops {
			if s.Status == model.StopStatusCompleted {
				completed++
			}
		}
	}
	return map[string]any{"trips": trips, "stops": stops, "completedStops": completed, "totalKm": totalKm}, nil
}

// helper: iterate delivery IDs by tenant order
func (m *Memory) iterDeliveryIDs() []string {
	ids := []string{}
	for _, lst := range m.deliveriesByTenant {
		ids = append(ids, lst...)
	}
	return ids
}
