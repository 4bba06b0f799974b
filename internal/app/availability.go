package app

import (
	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

// Overlaps reports whether two closed day ranges share at least one day.
func Overlaps(a, b domain.DateRange) bool {
	return !a.Start.After(b.End) && !a.End.Before(b.Start)
}

// IsAvailable reports whether no stored interval of listingID overlaps the candidate.
// Intervals belonging to other listings are ignored, so callers may pass a mixed slice.
func IsAvailable(listingID string, candidate domain.DateRange, intervals []domain.BookingInterval) bool {
	for _, interval := range intervals {
		if interval.ListingID != listingID {
			continue
		}
		if Overlaps(interval.DateRange, candidate) {
			return false
		}
	}
	return true
}

// overlapsAny reports whether b collides with any interval other than itself.
func overlapsAny(b domain.BookingInterval, existing []domain.BookingInterval) bool {
	for _, other := range existing {
		if other.ID == b.ID {
			continue
		}
		if Overlaps(other.DateRange, b.DateRange) {
			return true
		}
	}
	return false
}
