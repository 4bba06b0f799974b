package domain

import "time"

// DateLayout is the calendar-day format used for booking dates on the wire.
const DateLayout = "2006-01-02"

// DateRange is a closed range of calendar days. Both ends are inclusive and carry
// no time-of-day component; callers normalize to a single timezone first.
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// NewDateRange truncates both ends to the calendar day in UTC.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: CalendarDay(start), End: CalendarDay(end)}
}

// ParseDateRange parses two YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, &ValidationError{Field: "start_date", Message: "must be formatted as YYYY-MM-DD"}
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, &ValidationError{Field: "end_date", Message: "must be formatted as YYYY-MM-DD"}
	}
	return NewDateRange(s, e), nil
}

// Validate checks that the range is not inverted.
func (r DateRange) Validate() error {
	if r.Start.IsZero() {
		return &ValidationError{Field: "start_date", Message: "is required"}
	}
	if r.End.IsZero() {
		return &ValidationError{Field: "end_date", Message: "is required"}
	}
	if r.End.Before(r.Start) {
		return &ValidationError{Field: "end_date", Message: "must be on or after start_date"}
	}
	return nil
}

// CalendarDay drops the time-of-day component, keeping the date as seen in t's location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BookingInterval is a reserved span of days on a listing's calendar.
type BookingInterval struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	DateRange
	GuestName *string   `json:"guest_name,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookingRequest is the payload for recording or editing a booking.
type BookingRequest struct {
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	GuestName *string `json:"guest_name,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// BookingResult reports the stored booking and whether it collides with another one.
// Overlapping bookings are accepted; the flag lets the caller warn the host.
type BookingResult struct {
	Booking          BookingInterval `json:"booking"`
	OverlapsExisting bool            `json:"overlaps_existing"`
}
