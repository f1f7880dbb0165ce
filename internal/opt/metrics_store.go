package opt

import "sync"

type key struct {
	Tenant string
	TripID string
}

var (
	mu    sync.Mutex
	store = map[key]Metrics{}
)

// RecordMetrics keeps the latest solver metrics per tenant and trip so
// the admin endpoint can expose them.
func RecordMetrics(tenant, tripID string, m Metrics) {
	mu.Lock()
	store[key{Tenant: tenant, TripID: tripID}] = m
	mu.Unlock()
}

// GetMetrics returns recorded solver metrics for a tenant, keyed by
// trip ID. If tripID is non-empty only that trip is returned.
func GetMetrics(tenant, tripID string) map[string]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]Metrics{}
	for k, v := range store {
		if k.Tenant != tenant {
			continue
		}
		if tripID != "" && k.TripID != tripID {
			continue
		}
		out[k.TripID] = v
	}
	return out
}
