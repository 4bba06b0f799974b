package app

import (
	"testing"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

func assertOriginalsAboveCurrent(t *testing.T, l domain.Listing) {
	t.Helper()
	if l.OriginalDaily != nil && *l.OriginalDaily <= l.Daily {
		t.Fatalf("original daily %d must exceed current %d", *l.OriginalDaily, l.Daily)
	}
	if l.OriginalWeekly != nil && (l.Weekly == nil || *l.OriginalWeekly <= *l.Weekly) {
		t.Fatalf("original weekly %d must exceed current %v", *l.OriginalWeekly, l.Weekly)
	}
	if l.OriginalMonthly != nil && (l.Monthly == nil || *l.OriginalMonthly <= *l.Monthly) {
		t.Fatalf("original monthly %d must exceed current %v", *l.OriginalMonthly, l.Monthly)
	}
}

func TestPriceHistoryAcrossEdits(t *testing.T) {
	l := approvedListing("L1", "host-1")
	l.Daily = 100
	l.ApprovedSnapshot = l.Snapshot()

	steps := []struct {
		name         string
		daily        int64
		city         string
		wantStatus   domain.ApprovalStatus
		wantOriginal *int64
	}{
		{name: "markdown to 80", daily: 80, wantStatus: domain.StatusApproved, wantOriginal: int64Ptr(100)},
		{name: "partial raise to 90", daily: 90, wantStatus: domain.StatusApproved, wantOriginal: int64Ptr(100)},
		{name: "city change", daily: 90, city: "Dallas", wantStatus: domain.StatusPending, wantOriginal: nil},
	}

	for _, step := range steps {
		details := l.VehicleDetails
		if step.city != "" {
			details.City = step.city
		}
		next, _, err := ApplyEdit(l, details, domain.Prices{Daily: step.daily})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.name, err)
		}
		if next.ApprovalStatus != step.wantStatus {
			t.Fatalf("%s: expected status %s, got %s", step.name, step.wantStatus, next.ApprovalStatus)
		}
		switch {
		case step.wantOriginal == nil && next.OriginalDaily != nil:
			t.Fatalf("%s: expected no original daily price, got %d", step.name, *next.OriginalDaily)
		case step.wantOriginal != nil && (next.OriginalDaily == nil || *next.OriginalDaily != *step.wantOriginal):
			t.Fatalf("%s: expected original daily %d, got %v", step.name, *step.wantOriginal, next.OriginalDaily)
		}
		assertOriginalsAboveCurrent(t, next)
		l = next
	}
}

func TestApplyPriceUpdate(t *testing.T) {
	approvedDaily := &domain.Prices{Daily: 100}
	approvedAll := &domain.Prices{Daily: 100, Weekly: int64Ptr(500), Monthly: int64Ptr(1800)}

	tests := []struct {
		name        string
		current     domain.Listing
		approved    *domain.Prices
		next        domain.Prices
		material    bool
		wantDaily   *int64
		wantWeekly  *int64
		wantMonthly *int64
	}{
		{
			name:      "decrease without history records approved price",
			current:   domain.Listing{Prices: domain.Prices{Daily: 100}},
			approved:  approvedDaily,
			next:      domain.Prices{Daily: 80},
			wantDaily: int64Ptr(100),
		},
		{
			name:      "further decrease keeps first original",
			current:   domain.Listing{Prices: domain.Prices{Daily: 80}, OriginalPrices: domain.OriginalPrices{OriginalDaily: int64Ptr(100)}},
			approved:  approvedDaily,
			next:      domain.Prices{Daily: 60},
			wantDaily: int64Ptr(100),
		},
		{
			name:      "partial raise keeps original",
			current:   domain.Listing{Prices: domain.Prices{Daily: 80}, OriginalPrices: domain.OriginalPrices{OriginalDaily: int64Ptr(100)}},
			approved:  approvedDaily,
			next:      domain.Prices{Daily: 90},
			wantDaily: int64Ptr(100),
		},
		{
			name:     "raise back to approved price clears it",
			current:  domain.Listing{Prices: domain.Prices{Daily: 80}, OriginalPrices: domain.OriginalPrices{OriginalDaily: int64Ptr(100)}},
			approved: approvedDaily,
			next:     domain.Prices{Daily: 100},
		},
		{
			name:     "raise above approved price clears it",
			current:  domain.Listing{Prices: domain.Prices{Daily: 80}, OriginalPrices: domain.OriginalPrices{OriginalDaily: int64Ptr(100)}},
			approved: approvedDaily,
			next:     domain.Prices{Daily: 120},
		},
		{
			name:     "material update drops every original",
			current:  domain.Listing{Prices: domain.Prices{Daily: 80, Weekly: int64Ptr(400)}, OriginalPrices: domain.OriginalPrices{OriginalDaily: int64Ptr(100), OriginalWeekly: int64Ptr(500)}},
			approved: approvedAll,
			next:     domain.Prices{Daily: 70, Weekly: int64Ptr(300)},
			material: true,
		},
		{
			name:       "tiers are tracked independently",
			current:    domain.Listing{Prices: domain.Prices{Daily: 100, Weekly: int64Ptr(500), Monthly: int64Ptr(1800)}},
			approved:   approvedAll,
			next:       domain.Prices{Daily: 100, Weekly: int64Ptr(450), Monthly: int64Ptr(1800)},
			wantWeekly: int64Ptr(500),
		},
		{
			name:     "removed tier loses its original",
			current:  domain.Listing{Prices: domain.Prices{Daily: 100, Weekly: int64Ptr(400)}, OriginalPrices: domain.OriginalPrices{OriginalWeekly: int64Ptr(500)}},
			approved: approvedAll,
			next:     domain.Prices{Daily: 100},
		},
		{
			name:       "re-added tier below approved value takes the approved baseline",
			current:    domain.Listing{Prices: domain.Prices{Daily: 100}},
			approved:   approvedAll,
			next:       domain.Prices{Daily: 100, Weekly: int64Ptr(450)},
			wantWeekly: int64Ptr(500),
		},
		{
			name:     "new tier has no original",
			current:  domain.Listing{Prices: domain.Prices{Daily: 100}},
			approved: approvedDaily,
			next:     domain.Prices{Daily: 100, Monthly: int64Ptr(1500)},
		},
		{
			name:    "never approved listing has no baseline",
			current: domain.Listing{Prices: domain.Prices{Daily: 100}},
			next:    domain.Prices{Daily: 80},
		},
	}

	check := func(t *testing.T, label string, got, want *int64) {
		t.Helper()
		switch {
		case want == nil && got != nil:
			t.Fatalf("expected no original %s price, got %d", label, *got)
		case want != nil && got == nil:
			t.Fatalf("expected original %s price %d, got none", label, *want)
		case want != nil && *got != *want:
			t.Fatalf("expected original %s price %d, got %d", label, *want, *got)
		}
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyPriceUpdate(tt.current, tt.approved, tt.next, tt.material)
			if got.Daily != tt.next.Daily {
				t.Fatalf("expected daily price %d, got %d", tt.next.Daily, got.Daily)
			}
			check(t, "daily", got.OriginalDaily, tt.wantDaily)
			check(t, "weekly", got.OriginalWeekly, tt.wantWeekly)
			check(t, "monthly", got.OriginalMonthly, tt.wantMonthly)
			assertOriginalsAboveCurrent(t, got)
		})
	}
}

func TestApplyPriceUpdateDoesNotAliasInput(t *testing.T) {
	weekly := int64Ptr(500)
	next := domain.Prices{Daily: 100, Weekly: weekly}
	got := ApplyPriceUpdate(domain.Listing{Prices: domain.Prices{Daily: 100}}, &domain.Prices{Daily: 100}, next, false)

	*weekly = 1
	if got.Weekly == nil || *got.Weekly != 500 {
		t.Fatalf("expected listing to own its weekly price, got %v", got.Weekly)
	}
}

func TestReaddedTierNeverRecordsUnapprovedOriginal(t *testing.T) {
	l := approvedListing("L1", "host-1")
	l.Weekly = int64Ptr(500)
	l.ApprovedSnapshot = l.Snapshot()

	steps := []struct {
		name       string
		weekly     *int64
		wantWeekly *int64
	}{
		{name: "drop weekly tier", weekly: nil, wantWeekly: nil},
		{name: "re-add weekly at 450", weekly: int64Ptr(450), wantWeekly: int64Ptr(500)},
		{name: "mark weekly down to 400", weekly: int64Ptr(400), wantWeekly: int64Ptr(500)},
	}

	for _, step := range steps {
		next, kind, err := ApplyEdit(l, l.VehicleDetails, domain.Prices{Daily: l.Daily, Weekly: step.weekly})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.name, err)
		}
		if kind != EditCosmetic || next.ApprovalStatus != domain.StatusApproved {
			t.Fatalf("%s: expected cosmetic edit to stay approved, got %v/%s", step.name, kind, next.ApprovalStatus)
		}
		switch {
		case step.wantWeekly == nil && next.OriginalWeekly != nil:
			t.Fatalf("%s: expected no original weekly price, got %d", step.name, *next.OriginalWeekly)
		case step.wantWeekly != nil && (next.OriginalWeekly == nil || *next.OriginalWeekly != *step.wantWeekly):
			t.Fatalf("%s: expected original weekly %d, got %v", step.name, *step.wantWeekly, next.OriginalWeekly)
		}
		assertOriginalsAboveCurrent(t, next)
		l = next
	}
}
