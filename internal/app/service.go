/**
 * @description
 * ListingService orchestrates host edits, moderator actions, deletion and browsing.
 * Side effects on other systems (billing, notifications) are written to the outbox in the
 * same transaction as the listing change and published later by the OutboxDispatcher.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

// ListingRepository is the persistence boundary for listings and their registration records.
type ListingRepository interface {
	ListingCounter
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	GetPrivateRecord(ctx context.Context, listingID string) (*domain.SensitiveListingRecord, error)
	ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error)
	PlateInUse(ctx context.Context, plate, state, excludeListingID string) (bool, error)
	CreateListing(ctx context.Context, listing *domain.Listing, record domain.SensitiveListingRecord, events []domain.OutboxEvent) error
	UpdateListing(ctx context.Context, listing *domain.Listing, record *domain.SensitiveListingRecord, events []domain.OutboxEvent) error
	DeleteListing(ctx context.Context, id string, events []domain.OutboxEvent) error
}

// BookingRepository is the persistence boundary for booking intervals.
type BookingRepository interface {
	GetBooking(ctx context.Context, id string) (*domain.BookingInterval, error)
	ListBookings(ctx context.Context, listingIDs []string) ([]domain.BookingInterval, error)
	CreateBooking(ctx context.Context, booking *domain.BookingInterval) error
	UpdateBooking(ctx context.Context, booking *domain.BookingInterval) error
	DeleteBooking(ctx context.Context, id string) error
}

// ListingService provides the business logic for listing management.
type ListingService struct {
	listings ListingRepository
	bookings BookingRepository
	cache    SearchCache
	photos   PhotoBounds
	logger   *slog.Logger
	now      func() time.Time
}

// NewListingService creates a new listing service. cache may be nil.
func NewListingService(listings ListingRepository, bookings BookingRepository, cache SearchCache, photos PhotoBounds, logger *slog.Logger) *ListingService {
	if logger == nil {
		logger = slog.Default()
	}
	if photos.Min <= 0 && photos.Max <= 0 {
		photos = DefaultPhotoBounds
	}
	return &ListingService{
		listings: listings,
		bookings: bookings,
		cache:    cache,
		photos:   photos,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetListing returns a listing. Listings that are not approved are visible only to their
// owner and to moderators; the registration record is attached for the same audience.
func (s *ListingService) GetListing(ctx context.Context, actor domain.Actor, id string) (*domain.ListingWithRecord, error) {
	listing, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(actor, listing) {
		return nil, domain.ErrListingNotFound
	}
	privileged := actor.CanManage(listing.OwnerID)

	result := &domain.ListingWithRecord{Listing: *listing}
	if privileged {
		record, err := s.listings.GetPrivateRecord(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrListingNotFound) {
			return nil, err
		}
		result.Record = record
	}
	return result, nil
}

func visibleTo(actor domain.Actor, l *domain.Listing) bool {
	return l.ApprovalStatus == domain.StatusApproved || actor.CanManage(l.OwnerID)
}

// ListOwnListings returns every listing of the host regardless of status.
func (s *ListingService) ListOwnListings(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	return s.listings.ListListings(ctx, domain.ListingFilter{OwnerID: ownerID})
}

// ModerationQueue lists listings in the given status, pending by default.
func (s *ListingService) ModerationQueue(ctx context.Context, actor domain.Actor, status domain.ApprovalStatus, limit, offset int) ([]domain.Listing, error) {
	if !actor.Moderator {
		return nil, domain.ErrForbidden
	}
	if status == "" {
		status = domain.StatusPending
	}
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: "is not a known approval status"}
	}
	return s.listings.ListListings(ctx, domain.ListingFilter{Status: status, Limit: limit, Offset: offset})
}

// EditListing applies a host edit. Cosmetic edits of approved listings publish immediately;
// anything else returns the listing to the moderation queue.
func (s *ListingService) EditListing(ctx context.Context, actor domain.Actor, id string, sub domain.ListingSubmission) (*domain.Listing, error) {
	current, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != actor.UserID {
		return nil, domain.ErrForbidden
	}

	sub = NormalizeSubmission(sub)
	if err := ValidateSubmission(sub, s.photos, s.now()); err != nil {
		return nil, err
	}

	inUse, err := s.listings.PlateInUse(ctx, sub.LicensePlate, sub.PlateState, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check plate uniqueness: %w", err)
	}
	if inUse {
		return nil, domain.ErrDuplicateVehicle
	}

	updated, kind, err := ApplyEdit(*current, sub.VehicleDetails, sub.Prices)
	if err != nil {
		return nil, err
	}
	if err := CheckModerationState(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now()

	record := domain.SensitiveListingRecord{ListingID: id, LicensePlate: sub.LicensePlate, PlateState: sub.PlateState}
	if err := s.listings.UpdateListing(ctx, &updated, &record, nil); err != nil {
		return nil, err
	}

	s.logger.Info("listing edited",
		"listing_id", id,
		"host_id", actor.UserID,
		"edit", string(kind),
		"from_status", string(current.ApprovalStatus),
		"to_status", string(updated.ApprovalStatus),
	)
	return &updated, nil
}

// DeleteListing removes the host's listing together with its bookings and releases its slot.
func (s *ListingService) DeleteListing(ctx context.Context, actor domain.Actor, id string) error {
	listing, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if listing.OwnerID != actor.UserID {
		return domain.ErrForbidden
	}

	events := []domain.OutboxEvent{{
		RoutingKey: domain.RoutingListingRemoved,
		Payload:    domain.ListingRemovedEvent{ListingID: id, HostID: listing.OwnerID, Count: 1},
	}}
	if err := s.listings.DeleteListing(ctx, id, events); err != nil {
		return err
	}
	s.logger.Info("listing deleted", "listing_id", id, "host_id", listing.OwnerID)
	return nil
}

// Approve publishes a pending listing and records the approval snapshot.
func (s *ListingService) Approve(ctx context.Context, actor domain.Actor, id string) (*domain.Listing, error) {
	return s.moderate(ctx, actor, id, ActionApprove, "")
}

// Reject refuses a pending listing. reason must be non-empty.
func (s *ListingService) Reject(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Listing, error) {
	return s.moderate(ctx, actor, id, ActionReject, reason)
}

// Deactivate takes an approved listing down. Moderators cannot deactivate their own listings.
func (s *ListingService) Deactivate(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Listing, error) {
	return s.moderate(ctx, actor, id, ActionDeactivate, reason)
}

func (s *ListingService) moderate(ctx context.Context, actor domain.Actor, id string, action Action, reason string) (*domain.Listing, error) {
	if !actor.Moderator {
		return nil, domain.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if action != ActionApprove && reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Message: "is required"}
	}

	current, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if action == ActionDeactivate && current.OwnerID == actor.UserID {
		return nil, domain.ErrForbidden
	}

	updated, err := Moderate(*current, action, reason)
	if err != nil {
		return nil, err
	}
	if err := CheckModerationState(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now()

	var events []domain.OutboxEvent
	if n, ok := moderationNotification(updated, action, reason); ok {
		events = append(events, domain.NotificationEvent(n))
	}
	if err := s.listings.UpdateListing(ctx, &updated, nil, events); err != nil {
		return nil, err
	}

	s.logger.Info("listing moderated",
		"listing_id", id,
		"moderator_id", actor.UserID,
		"action", string(action),
		"status", string(updated.ApprovalStatus),
	)
	return &updated, nil
}

func moderationNotification(l domain.Listing, action Action, reason string) (domain.Notification, bool) {
	payload := map[string]interface{}{
		"listing_id": l.ID,
		"title":      fmt.Sprintf("%d %s %s", l.Year, l.Make, l.Model),
	}
	var eventType string
	switch action {
	case ActionApprove:
		eventType = domain.NotifyListingApproved
	case ActionReject:
		eventType = domain.NotifyListingRejected
		payload["reason"] = reason
	case ActionDeactivate:
		eventType = domain.NotifyListingDeactivated
		payload["reason"] = reason
	default:
		return domain.Notification{}, false
	}
	return domain.Notification{EventType: eventType, RecipientID: l.OwnerID, Payload: payload}, true
}
