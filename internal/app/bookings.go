package app

import (
	"context"
	"strings"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/google/uuid"
)

// CheckAvailability answers whether the listing has no booking overlapping the range.
// Listings hidden from the actor are reported as not found.
func (s *ListingService) CheckAvailability(ctx context.Context, actor domain.Actor, listingID string, r domain.DateRange) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return false, err
	}
	if !visibleTo(actor, listing) {
		return false, domain.ErrListingNotFound
	}
	intervals, err := s.bookings.ListBookings(ctx, []string{listingID})
	if err != nil {
		return false, err
	}
	return IsAvailable(listingID, r, intervals), nil
}

// ListBookings returns the listing's calendar to its owner or a moderator.
func (s *ListingService) ListBookings(ctx context.Context, actor domain.Actor, listingID string) ([]domain.BookingInterval, error) {
	if _, err := s.authorizeListing(ctx, actor, listingID); err != nil {
		return nil, err
	}
	return s.bookings.ListBookings(ctx, []string{listingID})
}

// AddBooking records a booking. Overlaps are allowed so hosts can force manual entries;
// the result reports whether the new booking collides with an existing one.
func (s *ListingService) AddBooking(ctx context.Context, actor domain.Actor, listingID string, req domain.BookingRequest) (*domain.BookingResult, error) {
	if _, err := s.authorizeListing(ctx, actor, listingID); err != nil {
		return nil, err
	}
	r, err := parseBookingRange(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	booking := domain.BookingInterval{
		ID:        uuid.NewString(),
		ListingID: listingID,
		DateRange: r,
		GuestName: trimmedOrNil(req.GuestName),
		Notes:     trimmedOrNil(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.storeBooking(ctx, booking, true)
}

// UpdateBooking changes the dates or notes of an existing booking.
func (s *ListingService) UpdateBooking(ctx context.Context, actor domain.Actor, bookingID string, req domain.BookingRequest) (*domain.BookingResult, error) {
	existing, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeListing(ctx, actor, existing.ListingID); err != nil {
		return nil, err
	}
	r, err := parseBookingRange(req)
	if err != nil {
		return nil, err
	}

	booking := *existing
	booking.DateRange = r
	booking.GuestName = trimmedOrNil(req.GuestName)
	booking.Notes = trimmedOrNil(req.Notes)
	booking.UpdatedAt = s.now()
	return s.storeBooking(ctx, booking, false)
}

// DeleteBooking removes a booking from the listing's calendar.
func (s *ListingService) DeleteBooking(ctx context.Context, actor domain.Actor, bookingID string) error {
	existing, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if _, err := s.authorizeListing(ctx, actor, existing.ListingID); err != nil {
		return err
	}
	return s.bookings.DeleteBooking(ctx, bookingID)
}

func (s *ListingService) storeBooking(ctx context.Context, booking domain.BookingInterval, create bool) (*domain.BookingResult, error) {
	existing, err := s.bookings.ListBookings(ctx, []string{booking.ListingID})
	if err != nil {
		return nil, err
	}
	overlaps := overlapsAny(booking, existing)

	if create {
		err = s.bookings.CreateBooking(ctx, &booking)
	} else {
		err = s.bookings.UpdateBooking(ctx, &booking)
	}
	if err != nil {
		return nil, err
	}
	if overlaps {
		s.logger.Warn("booking overlaps an existing booking", "listing_id", booking.ListingID, "booking_id", booking.ID)
	}
	return &domain.BookingResult{Booking: booking, OverlapsExisting: overlaps}, nil
}

func (s *ListingService) authorizeListing(ctx context.Context, actor domain.Actor, listingID string) (*domain.Listing, error) {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(listing.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return listing, nil
}

func parseBookingRange(req domain.BookingRequest) (domain.DateRange, error) {
	r, err := domain.ParseDateRange(strings.TrimSpace(req.StartDate), strings.TrimSpace(req.EndDate))
	if err != nil {
		return domain.DateRange{}, err
	}
	if err := r.Validate(); err != nil {
		return domain.DateRange{}, err
	}
	return r, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
