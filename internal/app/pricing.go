package app

import "github.com/IVSOLOV/car-connect-sub000/internal/domain"

// ApplyPriceUpdate moves the listing to the next prices and maintains the original_* baseline
// for each tier independently. The baseline is always the last approved price of the tier;
// a material update, or a listing that was never approved, drops every baseline.
//
// Within a cosmetic update a price below the approved one keeps an original that is already
// held, so the largest markdown since approval is what gets displayed.
func ApplyPriceUpdate(l domain.Listing, approved *domain.Prices, next domain.Prices, material bool) domain.Listing {
	if material || approved == nil {
		l.OriginalPrices.Clear()
	} else {
		daily := approved.Daily
		l.OriginalDaily = trackTier(&daily, &next.Daily, l.OriginalDaily)
		l.OriginalWeekly = trackTier(approved.Weekly, next.Weekly, l.OriginalWeekly)
		l.OriginalMonthly = trackTier(approved.Monthly, next.Monthly, l.OriginalMonthly)
	}

	l.Daily = next.Daily
	l.Weekly = cloneInt64(next.Weekly)
	l.Monthly = cloneInt64(next.Monthly)
	return l
}

func trackTier(approved, next, original *int64) *int64 {
	if approved == nil || next == nil || *next >= *approved {
		return nil
	}
	if original != nil {
		return cloneInt64(original)
	}
	return cloneInt64(approved)
}

func approvedPrices(snapshot *domain.ApprovedSnapshot) *domain.Prices {
	if snapshot == nil {
		return nil
	}
	return &snapshot.Prices
}

// priceIncreased reports whether any tier of next sits above the approved prices.
// Offering a tier that had no approved value counts as an increase.
func priceIncreased(approved, next domain.Prices) bool {
	if next.Daily > approved.Daily {
		return true
	}
	return tierIncreased(approved.Weekly, next.Weekly) || tierIncreased(approved.Monthly, next.Monthly)
}

func tierIncreased(approved, next *int64) bool {
	if next == nil {
		return false
	}
	if approved == nil {
		return true
	}
	return *next > *approved
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
