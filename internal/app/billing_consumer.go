package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/IVSOLOV/car-connect-sub000/pkg/rabbitmq"
)

const billingSyncTimeout = 30 * time.Second

// BillingSyncConsumer applies listing.created and listing.removed events to the billing
// provider. Failures are logged and the message is acked; quantity drift is left to
// out-of-band reconciliation rather than retried inline.
type BillingSyncConsumer struct {
	sync   *SubscriptionSync
	logger *slog.Logger
}

func NewBillingSyncConsumer(sync *SubscriptionSync, logger *slog.Logger) *BillingSyncConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingSyncConsumer{sync: sync, logger: logger}
}

// Bindings returns the routing key handlers to register on the billing sync queue.
func (c *BillingSyncConsumer) Bindings() map[string]rabbitmq.Handler {
	return map[string]rabbitmq.Handler{
		domain.RoutingListingCreated: c.HandleListingCreated,
		domain.RoutingListingRemoved: c.HandleListingRemoved,
	}
}

func (c *BillingSyncConsumer) HandleListingCreated(body []byte) bool {
	var event domain.ListingCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil || event.HostID == "" {
		c.logger.Error("dropping malformed listing.created event", "error", err, "body", string(body))
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingSyncTimeout)
	defer cancel()

	if err := c.sync.OnListingCreated(ctx, event.HostID); err != nil {
		c.logger.Error("billing sync failed for created listing", "listing_id", event.ListingID, "host_id", event.HostID, "error", err)
	}
	return true
}

func (c *BillingSyncConsumer) HandleListingRemoved(body []byte) bool {
	var event domain.ListingRemovedEvent
	if err := json.Unmarshal(body, &event); err != nil || event.HostID == "" {
		c.logger.Error("dropping malformed listing.removed event", "error", err, "body", string(body))
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingSyncTimeout)
	defer cancel()

	if err := c.sync.OnListingRemoved(ctx, event.HostID, event.Count); err != nil {
		c.logger.Error("billing sync failed for removed listing", "listing_id", event.ListingID, "host_id", event.HostID, "error", err)
	}
	return true
}
