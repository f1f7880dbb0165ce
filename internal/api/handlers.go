package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldroute/internal/model"
	"fieldroute/internal/opt"
	"fieldroute/internal/store"
	"fieldroute/internal/trip"
)

// emit publishes a trip event on the live stream and enqueues it for
// webhook delivery.
func (s *Server) emit(r *http.Request, tenant, tripID, eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["tripId"] = tripID
	data["ts"] = time.Now().UTC().Format(time.RFC3339)
	s.Broker.Publish(tripID, SSEEvent{Type: eventType, Data: data})
	s.Pub.Emit(r.Context(), tenant, eventType, data)
}

// TripsHandler handles POST/GET /v1/trips
func (s *Server) TripsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanPlan() {
			writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var req model.TripCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateTripCreateRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid trip request", err.Error(), r.URL.Path)
			return
		}
		startAt := time.Now().UTC()
		if req.StartAt != "" {
			startAt, _ = time.Parse(time.RFC3339, req.StartAt)
		}
		t := model.Trip{
			TenantID:     p.Tenant,
			RepID:        req.RepID,
			Name:         req.Name,
			Notes:        req.Notes,
			Status:       model.TripStatusDraft,
			Start:        req.Start,
			StartAt:      startAt,
			DwellMinutes: req.DwellMinutes,
		}
		var createPlan *trip.Plan
		// Unoptimized stops keep submission order until an optimize run.
		for i, in := range req.Stops {
			t.Stops = append(t.Stops, model.TripStop{
				ID:        uuid.NewString(),
				AccountID: in.AccountID,
				Location:  in.Location,
				StopOrder: i,
				Status:    model.StopStatusPending,
			})
		}
		if req.Optimize != nil {
			opts := tripOptions(req.Optimize)
			if req.DwellMinutes > 0 {
				opts.DwellMinutes = req.DwellMinutes
				opts.HasDwell = true
			}
			plan, err := s.Optimizer.Optimize(r.Context(), t.Start, visitsFromStops(t.Stops), startAt, opts)
			if err != nil {
				writeErr(w, err, "Optimize failed", r.URL.Path)
				return
			}
			now := time.Now().UTC()
			t.Stops = plan.Stops
			t.TotalKm = plan.TotalKm
			t.TotalMinutes = plan.TotalMinutes
			t.OptimizedAt = &now
			t.Status = model.TripStatusPlanned
			createPlan = plan
		}
		created, err := s.Store.CreateTrip(r.Context(), t)
		if err != nil {
			writeErr(w, err, "Create trip failed", r.URL.Path)
			return
		}
		if createPlan != nil {
			opt.RecordMetrics(p.Tenant, created.ID, createPlan.Metrics)
			s.emit(r, p.Tenant, created.ID, model.EventTripOptimized, map[string]any{
				"totalKm":      created.TotalKm,
				"totalMinutes": created.TotalMinutes,
				"stops":        len(created.Stops),
			})
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		status := r.URL.Query().Get("status")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListTrips(r.Context(), tenant, status, cursor, limit)
		if err != nil {
			writeErr(w, err, "List trips failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// TripByIDHandler handles /v1/trips/{id} and its subresources:
// optimize, stops, stops/{stopId}, stops/{stopId}/complete,
// events/stream.
func (s *Server) TripByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/trips/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]

	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		s.tripEventsSSE(w, r, id)
		return
	}
	if len(parts) > 1 && parts[1] == "optimize" {
		s.optimizeTrip(w, r, id)
		return
	}
	if len(parts) > 1 && parts[1] == "stops" {
		switch {
		case len(parts) == 2:
			s.addStop(w, r, id)
		case len(parts) == 3 && r.Method == http.MethodDelete:
			s.removeStop(w, r, id, parts[2])
		case len(parts) == 4 && parts[3] == "complete":
			s.completeStop(w, r, id, parts[2])
		default:
			writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		t, err := s.Store.GetTrip(r.Context(), tenant, id)
		if err != nil {
			writeErr(w, err, "Get trip failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodPatch:
		p := s.getPrincipal(r)
		if !p.CanPlan() {
			writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var patch model.TripPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if patch.Status != "" && !validTripStatus(patch.Status) {
			writeProblem(w, http.StatusBadRequest, "Invalid status", patch.Status, r.URL.Path)
			return
		}
		before, err := s.Store.GetTrip(r.Context(), p.Tenant, id)
		if err != nil {
			writeErr(w, err, "Get trip failed", r.URL.Path)
			return
		}
		t, err := s.Store.PatchTrip(r.Context(), p.Tenant, id, patch)
		if err != nil {
			writeErr(w, err, "Update trip failed", r.URL.Path)
			return
		}
		if patch.Status != "" && patch.Status != before.Status {
			s.emit(r, p.Tenant, id, model.EventTripStatusChanged, map[string]any{
				"from": before.Status,
				"to":   patch.Status,
			})
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		p := s.getPrincipal(r)
		if !p.CanPlan() {
			writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		if err := s.Store.DeleteTrip(r.Context(), p.Tenant, id); err != nil {
			writeErr(w, err, "Delete trip failed", r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// optimizeTrip handles POST /v1/trips/{id}/optimize. Re-optimization
// rebuilds the sequence from the current pending stops; completed and
// skipped stops keep their identity but are re-sequenced with the rest.
func (s *Server) optimizeTrip(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var body model.OptimizeOptions
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body) // body is optional
	}
	if err := validateOptimizeOptions(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	t, err := s.Store.GetTrip(r.Context(), p.Tenant, id)
	if err != nil {
		writeErr(w, err, "Get trip failed", r.URL.Path)
		return
	}
	plan, err := s.Optimizer.Reoptimize(r.Context(), &t, tripOptions(&body))
	if err != nil {
		writeErr(w, err, "Optimize failed", r.URL.Path)
		return
	}
	updated, err := s.Store.ReplaceStops(r.Context(), p.Tenant, id, plan.Stops, plan.TotalKm, plan.TotalMinutes, time.Now().UTC())
	if err != nil {
		writeErr(w, err, "Save plan failed", r.URL.Path)
		return
	}
	if updated.Status == model.TripStatusDraft {
		updated, _ = s.Store.PatchTrip(r.Context(), p.Tenant, id, model.TripPatch{Status: model.TripStatusPlanned})
	}
	opt.RecordMetrics(p.Tenant, id, plan.Metrics)
	s.emit(r, p.Tenant, id, model.EventTripOptimized, map[string]any{
		"totalKm":      updated.TotalKm,
		"totalMinutes": updated.TotalMinutes,
		"stops":        len(updated.Stops),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"trip": updated,
		"solve": map[string]any{
			"passes":          plan.Metrics.Passes,
			"improvements":    plan.Metrics.Improvements,
			"constructionKm":  plan.Metrics.ConstructionKm,
			"finalKm":         plan.Metrics.FinalKm,
			"elapsedMs":       plan.Metrics.Elapsed.Milliseconds(),
			"budgetExhausted": plan.Metrics.BudgetExhausted,
		},
	})
}

// addStop handles POST /v1/trips/{id}/stops. Without reoptimize the
// stop is appended at the end of the current sequence.
func (s *Server) addStop(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req model.StopAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateLocation("location", req.Location); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid stop", err.Error(), r.URL.Path)
		return
	}
	t, err := s.Store.GetTrip(r.Context(), p.Tenant, id)
	if err != nil {
		writeErr(w, err, "Get trip failed", r.URL.Path)
		return
	}
	added := model.TripStop{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		Location:  req.Location,
		StopOrder: len(t.Stops),
		Status:    model.StopStatusPending,
	}
	t.Stops = append(t.Stops, added)

	var updated model.Trip
	if req.Reoptimize {
		plan, err := s.Optimizer.Reoptimize(r.Context(), &t, tripOptions(req.Optimize))
		if err != nil {
			writeErr(w, err, "Optimize failed", r.URL.Path)
			return
		}
		updated, err = s.Store.ReplaceStops(r.Context(), p.Tenant, id, plan.Stops, plan.TotalKm, plan.TotalMinutes, time.Now().UTC())
		if err != nil {
			writeErr(w, err, "Save plan failed", r.URL.Path)
			return
		}
		opt.RecordMetrics(p.Tenant, id, plan.Metrics)
	} else {
		updated, err = s.Store.ReplaceStops(r.Context(), p.Tenant, id, t.Stops, t.TotalKm, t.TotalMinutes, time.Time{})
		if err != nil {
			writeErr(w, err, "Save stops failed", r.URL.Path)
			return
		}
	}
	s.emit(r, p.Tenant, id, model.EventTripStopAdded, map[string]any{
		"accountId":   added.AccountID,
		"reoptimized": req.Reoptimize,
	})
	writeJSON(w, http.StatusCreated, updated)
}

func (s *Server) removeStop(w http.ResponseWriter, r *http.Request, id, stopID string) {
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	updated, err := s.Store.RemoveStop(r.Context(), p.Tenant, id, stopID)
	if err != nil {
		writeErr(w, err, "Remove stop failed", r.URL.Path)
		return
	}
	// Re-optimize the remainder so legs and arrival estimates stay
	// consistent with the reduced stop set.
	if updated.OptimizedAt != nil && len(updated.Stops) > 0 {
		if plan, err := s.Optimizer.Reoptimize(r.Context(), &updated, trip.Options{}); err == nil {
			if t2, err := s.Store.ReplaceStops(r.Context(), p.Tenant, id, plan.Stops, plan.TotalKm, plan.TotalMinutes, time.Now().UTC()); err == nil {
				updated = t2
				opt.RecordMetrics(p.Tenant, id, plan.Metrics)
			}
		}
	}
	s.emit(r, p.Tenant, id, model.EventTripStopRemoved, map[string]any{"stopId": stopID})
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) completeStop(w http.ResponseWriter, r *http.Request, id, stopID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	updated, err := s.Store.CompleteStop(r.Context(), tenant, id, stopID, time.Now().UTC())
	if err != nil {
		writeErr(w, err, "Complete stop failed", r.URL.Path)
		return
	}
	s.emit(r, tenant, id, model.EventTripStopCompleted, map[string]any{"stopId": stopID})
	// Completing the last stop completes the trip.
	allDone := len(updated.Stops) > 0
	for _, st := range updated.Stops {
		if st.Status == model.StopStatusPending {
			allDone = false
			break
		}
	}
	if allDone && updated.Status != model.TripStatusCompleted {
		from := updated.Status
		if t2, err := s.Store.PatchTrip(r.Context(), tenant, id, model.TripPatch{Status: model.TripStatusCompleted}); err == nil {
			updated = t2
			s.emit(r, tenant, id, model.EventTripStatusChanged, map[string]any{
				"from": from,
				"to":   model.TripStatusCompleted,
			})
		}
	}
	writeJSON(w, http.StatusOK, updated)
}

// tripEventsSSE streams trip events over SSE with periodic heartbeats.
func (s *Server) tripEventsSSE(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	if !pr.CanPlan() {
		// reps may stream only their own trips
		_, tenant := s.withTenant(r)
		t, err := s.Store.GetTrip(r.Context(), tenant, id)
		if err != nil {
			writeErr(w, err, "Get trip failed", r.URL.Path)
			return
		}
		if pr.Role != "rep" || pr.RepID == "" || t.RepID == "" || pr.RepID != t.RepID {
			writeProblem(w, 403, "Forbidden", "not authorized for trip events", r.URL.Path)
			return
		}
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"tripId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"tripId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), p.Tenant, req)
		if err != nil {
			writeErr(w, err, "Create subscription failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeErr(w, err, "List subscriptions failed", r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		writeErr(w, err, "Delete subscription failed", r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(405)
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
	if err != nil {
		writeErr(w, err, "List deliveries failed", r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil {
		writeErr(w, err, "Retry delivery failed", r.URL.Path)
		return
	}
	writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Admin: solve metrics for recent optimization runs
func (s *Server) SolveMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/solve-metrics" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	tripID := r.URL.Query().Get("tripId")
	ms := opt.GetMetrics(p.Tenant, tripID)
	items := []map[string]any{}
	for id, m := range ms {
		items = append(items, map[string]any{
			"tripId":          id,
			"passes":          m.Passes,
			"improvements":    m.Improvements,
			"constructionKm":  m.ConstructionKm,
			"finalKm":         m.FinalKm,
			"elapsedMs":       m.Elapsed.Milliseconds(),
			"budgetExhausted": m.BudgetExhausted,
		})
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

// Admin: trip stats for the tenant
func (s *Server) TripStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/trips/stats" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	stats, err := s.Store.TripStats(r.Context(), p.Tenant)
	if err != nil {
		writeErr(w, err, "Stats failed", r.URL.Path)
		return
	}
	writeJSON(w, 200, stats)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	if pg, ok := s.Store.(*store.Postgres); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}

func validTripStatus(s string) bool {
	switch s {
	case model.TripStatusDraft, model.TripStatusPlanned, model.TripStatusInProgress,
		model.TripStatusCompleted, model.TripStatusCancelled:
		return true
	}
	return false
}

func visitsFromStops(stops []model.TripStop) []trip.Visit {
	out := make([]trip.Visit, 0, len(stops))
	for _, st := range stops {
		out = append(out, trip.Visit{
			ID:          st.ID,
			AccountID:   st.AccountID,
			Location:    st.Location,
			Status:      st.Status,
			CompletedAt: st.CompletedAt,
		})
	}
	return out
}
