/**
 * @description
 * CreationGate is the entry point for new listings. A host with a spare paid slot gets a
 * pending listing straight away; otherwise the submission is staged against a token and the
 * host is sent to checkout. The listing only comes into existence when the payment callback
 * consumes that token, which happens at most once.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/IVSOLOV/car-connect-sub000/internal/store"
	"github.com/google/uuid"
)

const createRateLimitScope = "listing_create"

// StagingRepository persists submissions waiting for payment.
type StagingRepository interface {
	CreateStagedSubmission(ctx context.Context, staged *domain.StagedSubmission) error
	GetStagedSubmission(ctx context.Context, token string) (*domain.StagedSubmission, error)
	// ConsumeStagedSubmission flips a pending token to consumed and inserts the listing in one
	// transaction. It returns store.ErrStagingTokenConsumed when the token is no longer pending.
	ConsumeStagedSubmission(ctx context.Context, token string, listing *domain.Listing, record domain.SensitiveListingRecord, events []domain.OutboxEvent) error
	// ResolveStagedSubmission moves a pending token to a final status. It reports false when the
	// token was already resolved.
	ResolveStagedSubmission(ctx context.Context, token string, status domain.StagedStatus, events []domain.OutboxEvent) (bool, error)
	ExpireStagedSubmissions(ctx context.Context, now time.Time) (int64, error)
}

// GateConfig tunes the creation gate.
type GateConfig struct {
	Photos               PhotoBounds
	StagingTTL           time.Duration
	CheckoutSuccessURL   string
	CheckoutCancelURL    string
	CreateLimitPerMinute int
}

// CreationGate orchestrates listing creation under the paid-slot rule.
type CreationGate struct {
	listings ListingRepository
	staging  StagingRepository
	billing  BillingClient
	sync     *SubscriptionSync
	limiter  RateLimiter
	cfg      GateConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewCreationGate wires the gate. limiter may be nil to disable rate limiting.
func NewCreationGate(
	listings ListingRepository,
	staging StagingRepository,
	billing BillingClient,
	sync *SubscriptionSync,
	limiter RateLimiter,
	cfg GateConfig,
	logger *slog.Logger,
) *CreationGate {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Photos.Min <= 0 && cfg.Photos.Max <= 0 {
		cfg.Photos = DefaultPhotoBounds
	}
	if cfg.StagingTTL <= 0 {
		cfg.StagingTTL = 24 * time.Hour
	}
	return &CreationGate{
		listings: listings,
		staging:  staging,
		billing:  billing,
		sync:     sync,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the submission and either persists a pending listing or stages it for checkout.
func (g *CreationGate) Create(ctx context.Context, hostID string, sub domain.ListingSubmission) (*domain.CreateResult, error) {
	if hostID == "" {
		return nil, domain.ErrForbidden
	}
	if err := g.checkRateLimit(ctx, hostID); err != nil {
		return nil, err
	}

	sub = NormalizeSubmission(sub)
	if err := ValidateSubmission(sub, g.cfg.Photos, g.now()); err != nil {
		return nil, err
	}

	// Fast path only; the unique index on the registration record is the authority.
	inUse, err := g.listings.PlateInUse(ctx, sub.LicensePlate, sub.PlateState, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check plate uniqueness: %w", err)
	}
	if inUse {
		return nil, domain.ErrDuplicateVehicle
	}

	entitled, err := g.sync.CanCreateListing(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if entitled {
		listing, err := g.persist(ctx, hostID, sub)
		if err != nil {
			return nil, err
		}
		return &domain.CreateResult{Listing: listing}, nil
	}

	redirect, err := g.stage(ctx, hostID, sub)
	if err != nil {
		return nil, err
	}
	return &domain.CreateResult{Checkout: redirect}, nil
}

func (g *CreationGate) persist(ctx context.Context, hostID string, sub domain.ListingSubmission) (*domain.Listing, error) {
	listing, record := g.buildListing(hostID, sub)
	if err := g.listings.CreateListing(ctx, listing, record, listingCreatedEvents(listing)); err != nil {
		return nil, err
	}
	g.logger.Info("listing created", "listing_id", listing.ID, "host_id", hostID)
	return listing, nil
}

func (g *CreationGate) stage(ctx context.Context, hostID string, sub domain.ListingSubmission) (*domain.CheckoutRedirect, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode staged submission: %w", err)
	}

	count, err := g.listings.CountListingsByOwner(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	now := g.now()
	staged := &domain.StagedSubmission{
		Token:     uuid.NewString(),
		HostID:    hostID,
		Payload:   payload,
		Status:    domain.StagedPending,
		ExpiresAt: now.Add(g.cfg.StagingTTL),
		CreatedAt: now,
	}
	if err := g.staging.CreateStagedSubmission(ctx, staged); err != nil {
		return nil, err
	}

	url, err := g.billing.StartCheckout(ctx, domain.CheckoutRequest{
		HostID:       hostID,
		Quantity:     count + 1,
		StagingToken: staged.Token,
		SuccessURL:   g.cfg.CheckoutSuccessURL,
		CancelURL:    g.cfg.CheckoutCancelURL,
	})
	if err != nil {
		if _, discardErr := g.staging.ResolveStagedSubmission(ctx, staged.Token, domain.StagedDiscarded, nil); discardErr != nil {
			g.logger.Error("failed to discard staged submission after checkout error", "staging_token", staged.Token, "error", discardErr)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrBillingUnavailable, err)
	}

	g.logger.Info("listing staged for checkout", "staging_token", staged.Token, "host_id", hostID)
	return &domain.CheckoutRedirect{StagingToken: staged.Token, CheckoutURL: url}, nil
}

// ConfirmPayment turns a staged submission into a pending listing. Repeated confirmations of
// the same token succeed without creating anything.
func (g *CreationGate) ConfirmPayment(ctx context.Context, token string) (*domain.Listing, error) {
	staged, err := g.staging.GetStagedSubmission(ctx, token)
	if err != nil {
		return nil, err
	}
	if staged.Status != domain.StagedPending {
		g.logger.Info("ignoring confirmation for resolved staging token", "staging_token", token, "status", string(staged.Status))
		return nil, nil
	}

	var sub domain.ListingSubmission
	if err := json.Unmarshal(staged.Payload, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode staged submission: %w", err)
	}

	listing, record := g.buildListing(staged.HostID, sub)
	err = g.staging.ConsumeStagedSubmission(ctx, token, listing, record, listingCreatedEvents(listing))
	switch {
	case err == nil:
		g.logger.Info("staged listing created", "listing_id", listing.ID, "host_id", staged.HostID, "staging_token", token)
		return listing, nil
	case errors.Is(err, store.ErrStagingTokenConsumed):
		g.logger.Info("duplicate confirmation for staging token", "staging_token", token)
		return nil, nil
	case errors.Is(err, domain.ErrDuplicateVehicle):
		g.logger.Warn("staged listing conflicts with an existing vehicle", "staging_token", token, "host_id", staged.HostID)
		notice := domain.Notification{
			EventType:   domain.NotifyStagingConflicted,
			RecipientID: staged.HostID,
			Payload: map[string]interface{}{
				"staging_token": token,
				"license_plate": sub.LicensePlate,
				"plate_state":   sub.PlateState,
			},
		}
		if _, resolveErr := g.staging.ResolveStagedSubmission(ctx, token, domain.StagedConflicted, []domain.OutboxEvent{domain.NotificationEvent(notice)}); resolveErr != nil {
			return nil, resolveErr
		}
		return nil, nil
	default:
		return nil, err
	}
}

// DiscardStaged drops a staged submission after a cancelled, failed or expired checkout.
func (g *CreationGate) DiscardStaged(ctx context.Context, token string) error {
	changed, err := g.staging.ResolveStagedSubmission(ctx, token, domain.StagedDiscarded, nil)
	if err != nil {
		return err
	}
	if changed {
		g.logger.Info("staged submission discarded", "staging_token", token)
	}
	return nil
}

// ExpireStaged discards every pending submission whose checkout window has passed.
func (g *CreationGate) ExpireStaged(ctx context.Context) (int64, error) {
	return g.staging.ExpireStagedSubmissions(ctx, g.now())
}

func (g *CreationGate) checkRateLimit(ctx context.Context, hostID string) error {
	if g.limiter == nil || g.cfg.CreateLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := g.limiter.ConsumeRateLimit(ctx, createRateLimitScope, hostID, g.cfg.CreateLimitPerMinute, time.Minute)
	if err != nil {
		g.logger.Warn("create rate limiter unavailable", "host_id", hostID, "error", err)
		return nil
	}
	if count > g.cfg.CreateLimitPerMinute {
		g.logger.Warn("create rate limit exceeded", "host_id", hostID, "retry_after_seconds", retryAfter)
		return domain.ErrRateLimited
	}
	return nil
}

func (g *CreationGate) buildListing(hostID string, sub domain.ListingSubmission) (*domain.Listing, domain.SensitiveListingRecord) {
	now := g.now()
	listing := &domain.Listing{
		ID:             uuid.NewString(),
		OwnerID:        hostID,
		VehicleDetails: sub.VehicleDetails,
		Prices:         sub.Prices,
		ApprovalStatus: domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	record := domain.SensitiveListingRecord{
		ListingID:    listing.ID,
		LicensePlate: domain.NormalizePlate(sub.LicensePlate),
		PlateState:   domain.NormalizeState(sub.PlateState),
	}
	return listing, record
}

func listingCreatedEvents(l *domain.Listing) []domain.OutboxEvent {
	return []domain.OutboxEvent{{
		RoutingKey: domain.RoutingListingCreated,
		Payload:    domain.ListingCreatedEvent{ListingID: l.ID, HostID: l.OwnerID},
	}}
}
