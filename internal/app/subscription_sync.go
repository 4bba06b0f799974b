package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

// BillingClient is the billing provider boundary. It is a black box to the engine.
type BillingClient interface {
	GetEntitlement(ctx context.Context, hostID string) (domain.Entitlement, error)
	SetQuantity(ctx context.Context, hostID string, quantity int) error
	CancelSubscription(ctx context.Context, hostID string) error
	StartCheckout(ctx context.Context, req domain.CheckoutRequest) (string, error)
	StartSubscription(ctx context.Context, hostID string, quantity int, trialDays int) error
}

// ListingCounter counts the listings that hold a paid slot for a host.
type ListingCounter interface {
	CountListingsByOwner(ctx context.Context, ownerID string) (int, error)
}

// SubscriptionSync keeps a host's billed quantity in line with the number of listings they keep.
type SubscriptionSync struct {
	billing   BillingClient
	listings  ListingCounter
	trialDays int
	logger    *slog.Logger
}

func NewSubscriptionSync(billing BillingClient, listings ListingCounter, trialDays int, logger *slog.Logger) *SubscriptionSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionSync{billing: billing, listings: listings, trialDays: trialDays, logger: logger}
}

// CanCreateListing reports whether the host has a spare paid slot for one more listing.
// Every listing needs a slot; there is no free tier.
func (s *SubscriptionSync) CanCreateListing(ctx context.Context, hostID string) (bool, error) {
	count, err := s.listings.CountListingsByOwner(ctx, hostID)
	if err != nil {
		return false, fmt.Errorf("failed to count listings: %w", err)
	}
	entitlement, err := s.billing.GetEntitlement(ctx, hostID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrBillingUnavailable, err)
	}
	return entitlement.Paying() && entitlement.Quantity >= count+1, nil
}

// OnListingCreated makes sure the billed quantity covers the host's listings, starting a
// trial subscription when the host has none. Redelivered events settle on the same quantity.
func (s *SubscriptionSync) OnListingCreated(ctx context.Context, hostID string) error {
	count, err := s.listings.CountListingsByOwner(ctx, hostID)
	if err != nil {
		return fmt.Errorf("failed to count listings: %w", err)
	}
	if count == 0 {
		return nil
	}

	entitlement, err := s.billing.GetEntitlement(ctx, hostID)
	if err != nil {
		return fmt.Errorf("failed to load entitlement: %w", err)
	}

	if !entitlement.Paying() {
		s.logger.Info("starting subscription for host", "host_id", hostID, "quantity", count, "trial_days", s.trialDays)
		return s.billing.StartSubscription(ctx, hostID, count, s.trialDays)
	}
	if entitlement.Quantity >= count {
		return nil
	}

	s.logger.Info("raising subscription quantity", "host_id", hostID, "from", entitlement.Quantity, "to", count)
	return s.billing.SetQuantity(ctx, hostID, count)
}

// OnListingRemoved releases count slots. The quantity never drops below the listings the host
// still keeps, so a redelivered event settles on the same quantity. The subscription is
// cancelled only once no listings remain.
func (s *SubscriptionSync) OnListingRemoved(ctx context.Context, hostID string, count int) error {
	if count < 1 {
		count = 1
	}
	remaining, err := s.listings.CountListingsByOwner(ctx, hostID)
	if err != nil {
		return fmt.Errorf("failed to count listings: %w", err)
	}
	entitlement, err := s.billing.GetEntitlement(ctx, hostID)
	if err != nil {
		return fmt.Errorf("failed to load entitlement: %w", err)
	}
	if !entitlement.Paying() {
		return nil
	}

	quantity := max(entitlement.Quantity-count, remaining)
	if quantity <= 0 {
		s.logger.Info("cancelling subscription with no remaining listings", "host_id", hostID)
		return s.billing.CancelSubscription(ctx, hostID)
	}
	if quantity >= entitlement.Quantity {
		return nil
	}

	s.logger.Info("lowering subscription quantity", "host_id", hostID, "from", entitlement.Quantity, "to", quantity)
	return s.billing.SetQuantity(ctx, hostID, quantity)
}
