package store

// WebhookDelivery is one queued attempt to push a trip event to a
// subscriber endpoint.
type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}
