package domain

// Routing keys published on the listing events exchange.
const (
	RoutingListingCreated = "listing.created"
	RoutingListingRemoved = "listing.removed"
	RoutingNotifyPrefix   = "notify."
)

// Notification event types.
const (
	NotifyListingApproved    = "listing_approved"
	NotifyListingRejected    = "listing_rejected"
	NotifyListingDeactivated = "listing_deactivated"
	NotifyStagingConflicted  = "listing_staging_conflicted"
)

// ListingCreatedEvent asks billing to account for a new slot.
type ListingCreatedEvent struct {
	ListingID string `json:"listing_id"`
	HostID    string `json:"host_id"`
}

// ListingRemovedEvent asks billing to release slots.
type ListingRemovedEvent struct {
	ListingID string `json:"listing_id"`
	HostID    string `json:"host_id"`
	Count     int    `json:"count"`
}

// Notification is the fire-and-forget notify(eventType, recipientId, payload) contract.
type Notification struct {
	EventType   string                 `json:"event_type"`
	RecipientID string                 `json:"recipient_id"`
	Payload     map[string]interface{} `json:"payload"`
}

// RoutingKey returns the routing key a notification is published under.
func (n Notification) RoutingKey() string {
	return RoutingNotifyPrefix + n.EventType
}

// OutboxEvent is a message staged for publication in the same transaction as a listing write.
type OutboxEvent struct {
	RoutingKey string
	Payload    interface{}
}

// NotificationEvent wraps a notification as an outbox event.
func NotificationEvent(n Notification) OutboxEvent {
	return OutboxEvent{RoutingKey: n.RoutingKey(), Payload: n}
}
