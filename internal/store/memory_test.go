package store

import (
	"context"
	"testing"
	"time"

	"fieldroute/internal/model"
)

func seedTrip(t *testing.T, m *Memory, tenant string, nStops int) model.Trip {
	t.Helper()
	stops := make([]model.TripStop, nStops)
	for i := range stops {
		stops[i] = model.TripStop{
			ID:        string(rune('a' + i)),
			Location:  model.Location{Lat: 50 + float64(i), Lng: 4},
			StopOrder: i,
			Status:    model.StopStatusPending,
		}
	}
	tr, err := m.CreateTrip(context.Background(), model.Trip{
		TenantID: tenant,
		Start:    model.Location{Lat: 50, Lng: 4},
		StartAt:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Stops:    stops,
	})
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	return tr
}

func TestMemoryTripCRUD(t *testing.T) {
	m := NewMemory()
	tr := seedTrip(t, m, "t1", 3)
	if tr.ID == "" || tr.Version != 1 || tr.Status != model.TripStatusPlanned {
		t.Fatalf("created trip: %+v", tr)
	}

	got, err := m.GetTrip(context.Background(), "t1", tr.ID)
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	if len(got.Stops) != 3 {
		t.Fatalf("got %d stops", len(got.Stops))
	}
	if _, err := m.GetTrip(context.Background(), "other-tenant", tr.ID); err != ErrNotFound {
		t.Fatalf("cross-tenant read: %v", err)
	}

	patched, err := m.PatchTrip(context.Background(), "t1", tr.ID, model.TripPatch{Status: model.TripStatusInProgress})
	if err != nil {
		t.Fatalf("PatchTrip: %v", err)
	}
	if patched.Status != model.TripStatusInProgress || patched.Version != 2 {
		t.Fatalf("patched: %+v", patched)
	}

	if err := m.DeleteTrip(context.Background(), "t1", tr.ID); err != nil {
		t.Fatalf("DeleteTrip: %v", err)
	}
	if _, err := m.GetTrip(context.Background(), "t1", tr.ID); err != ErrNotFound {
		t.Fatalf("deleted trip still readable: %v", err)
	}
}

func TestMemoryListTripsPagination(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		seedTrip(t, m, "t1", 1)
	}
	page1, next, err := m.ListTrips(context.Background(), "t1", "", "", 2)
	if err != nil {
		t.Fatalf("ListTrips: %v", err)
	}
	if len(page1) != 2 || next == "" {
		t.Fatalf("page1: %d items, next %q", len(page1), next)
	}
	page2, _, err := m.ListTrips(context.Background(), "t1", "", next, 10)
	if err != nil {
		t.Fatalf("ListTrips page2: %v", err)
	}
	if len(page2) != 3 {
		t.Fatalf("page2: %d items", len(page2))
	}
	for _, a := range page1 {
		for _, b := range page2 {
			if a.ID == b.ID {
				t.Fatalf("trip %s on both pages", a.ID)
			}
		}
	}
}

func TestMemoryRemoveStopRenumbers(t *testing.T) {
	m := NewMemory()
	tr := seedTrip(t, m, "t1", 4)
	got, err := m.RemoveStop(context.Background(), "t1", tr.ID, tr.Stops[1].ID)
	if err != nil {
		t.Fatalf("RemoveStop: %v", err)
	}
	if len(got.Stops) != 3 {
		t.Fatalf("got %d stops", len(got.Stops))
	}
	for i, s := range got.Stops {
		if s.StopOrder != i {
			t.Fatalf("stop_order not contiguous: %d at %d", s.StopOrder, i)
		}
		if s.ID == tr.Stops[1].ID {
			t.Fatalf("removed stop still present")
		}
	}
	if _, err := m.RemoveStop(context.Background(), "t1", tr.ID, "nope"); err != ErrNotFound {
		t.Fatalf("missing stop: %v", err)
	}
}

func TestMemoryCompleteStop(t *testing.T) {
	m := NewMemory()
	tr := seedTrip(t, m, "t1", 2)
	at := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	got, err := m.CompleteStop(context.Background(), "t1", tr.ID, tr.Stops[0].ID, at)
	if err != nil {
		t.Fatalf("CompleteStop: %v", err)
	}
	s := got.Stops[0]
	if s.Status != model.StopStatusCompleted || s.CompletedAt == nil || !s.CompletedAt.Equal(at) {
		t.Fatalf("completed stop: %+v", s)
	}
}

func TestMemorySubscriptionsAndQueue(t *testing.T) {
	m := NewMemory()
	sub, err := m.CreateSubscription(context.Background(), "t1", model.SubscriptionRequest{
		URL: "https://example.com/hook", Events: []string{model.EventTripOptimized}, Secret: "s",
	})
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	hits, err := m.GetSubscriptionsForEvent(context.Background(), "t1", model.EventTripOptimized)
	if err != nil || len(hits) != 1 {
		t.Fatalf("GetSubscriptionsForEvent: %v, %d hits", err, len(hits))
	}
	if hits, _ := m.GetSubscriptionsForEvent(context.Background(), "t1", model.EventTripStopAdded); len(hits) != 0 {
		t.Fatalf("unexpected match for unsubscribed event")
	}

	id, err := m.EnqueueWebhook(context.Background(), "t1", sub.ID, model.EventTripOptimized, sub.URL, "s", []byte(`{}`))
	if err != nil {
		t.Fatalf("EnqueueWebhook: %v", err)
	}
	due, err := m.FetchDueWebhookDeliveries(context.Background(), 10)
	if err != nil || len(due) != 1 || due[0].ID != id {
		t.Fatalf("FetchDue: %v, %d due", err, len(due))
	}

	// Failed attempt schedules a retry in the future.
	next := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(context.Background(), id, false, &next, "boom", 500, 12); err != nil {
		t.Fatalf("MarkWebhookDelivery: %v", err)
	}
	if due, _ := m.FetchDueWebhookDeliveries(context.Background(), 10); len(due) != 0 {
		t.Fatalf("retry scheduled in the future should not be due")
	}
	if err := m.RetryWebhookDelivery(context.Background(), "t1", id); err != nil {
		t.Fatalf("RetryWebhookDelivery: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(context.Background(), 10)
	if len(due) != 1 {
		t.Fatalf("manual retry should be due now")
	}
	if err := m.MarkWebhookDelivery(context.Background(), id, true, nil, "", 200, 8); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if due, _ := m.FetchDueWebhookDeliveries(context.Background(), 10); len(due) != 0 {
		t.Fatalf("delivered item still due")
	}
}
