package app

import (
	"testing"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    domain.DateRange
		b    domain.DateRange
		want bool
	}{
		{name: "shared boundary day", a: dateRange("2024-03-10", "2024-03-15"), b: dateRange("2024-03-15", "2024-03-20"), want: true},
		{name: "adjacent days", a: dateRange("2024-03-10", "2024-03-14"), b: dateRange("2024-03-15", "2024-03-20"), want: false},
		{name: "containment", a: dateRange("2024-03-01", "2024-03-31"), b: dateRange("2024-03-10", "2024-03-12"), want: true},
		{name: "single day inside", a: dateRange("2024-03-12", "2024-03-12"), b: dateRange("2024-03-10", "2024-03-15"), want: true},
		{name: "identical single days", a: dateRange("2024-03-12", "2024-03-12"), b: dateRange("2024-03-12", "2024-03-12"), want: true},
		{name: "disjoint before", a: dateRange("2024-02-01", "2024-02-05"), b: dateRange("2024-03-01", "2024-03-05"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a, tt.b); got != tt.want {
				t.Fatalf("Overlaps(a, b) = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.b, tt.a); got != tt.want {
				t.Fatalf("Overlaps(b, a) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAvailable(t *testing.T) {
	intervals := []domain.BookingInterval{
		{ID: "b1", ListingID: "L1", DateRange: dateRange("2024-03-10", "2024-03-15")},
		{ID: "b2", ListingID: "L2", DateRange: dateRange("2024-04-01", "2024-04-30")},
	}

	tests := []struct {
		name      string
		listingID string
		candidate domain.DateRange
		want      bool
	}{
		{name: "touches last booked day", listingID: "L1", candidate: dateRange("2024-03-15", "2024-03-20"), want: false},
		{name: "starts the day after", listingID: "L1", candidate: dateRange("2024-03-16", "2024-03-20"), want: true},
		{name: "other listing's bookings ignored", listingID: "L1", candidate: dateRange("2024-04-10", "2024-04-12"), want: true},
		{name: "no bookings at all", listingID: "L3", candidate: dateRange("2024-03-10", "2024-03-15"), want: true},
		{name: "booked on other listing", listingID: "L2", candidate: dateRange("2024-04-30", "2024-05-02"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAvailable(tt.listingID, tt.candidate, intervals); got != tt.want {
				t.Fatalf("IsAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlapsAnySkipsItself(t *testing.T) {
	existing := []domain.BookingInterval{
		{ID: "b1", ListingID: "L1", DateRange: dateRange("2024-03-10", "2024-03-15")},
	}
	moved := domain.BookingInterval{ID: "b1", ListingID: "L1", DateRange: dateRange("2024-03-12", "2024-03-18")}
	if overlapsAny(moved, existing) {
		t.Fatal("expected a booking not to collide with its own previous dates")
	}

	other := domain.BookingInterval{ID: "b2", ListingID: "L1", DateRange: dateRange("2024-03-15", "2024-03-16")}
	if !overlapsAny(other, existing) {
		t.Fatal("expected a second booking on the boundary day to collide")
	}
}
