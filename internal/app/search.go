package app

import (
	"context"
	"strconv"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchQuery filters the public catalogue. Range, when set, hides listings that are booked
// on any day within it.
type SearchQuery struct {
	City        string
	State       string
	VehicleType domain.VehicleType
	FuelType    domain.FuelType
	Range       *domain.DateRange
	Limit       int
	Offset      int
}

func (q SearchQuery) cacheParams() map[string]string {
	params := map[string]string{
		"city":         q.City,
		"state":        q.State,
		"vehicle_type": string(q.VehicleType),
		"fuel_type":    string(q.FuelType),
		"limit":        strconv.Itoa(q.Limit),
		"offset":       strconv.Itoa(q.Offset),
	}
	if q.Range != nil {
		params["start"] = q.Range.Start.Format(domain.DateLayout)
		params["end"] = q.Range.End.Format(domain.DateLayout)
	}
	return params
}

// Search returns approved listings matching the query. Results may be served from the cache
// and can trail recent bookings by up to the cache TTL.
func (s *ListingService) Search(ctx context.Context, q SearchQuery) ([]domain.Listing, error) {
	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}
	if q.Limit > maxSearchLimit {
		q.Limit = maxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Range != nil {
		if err := q.Range.Validate(); err != nil {
			return nil, err
		}
	}

	var key string
	if s.cache != nil {
		key = s.cache.Key(q.cacheParams())
		var cached []domain.Listing
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("search cache read failed", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	results, err := s.search(ctx, q)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, results); err != nil {
			s.logger.Warn("search cache write failed", "error", err)
		}
	}
	return results, nil
}

func (s *ListingService) search(ctx context.Context, q SearchQuery) ([]domain.Listing, error) {
	filter := domain.ListingFilter{
		Status:      domain.StatusApproved,
		City:        q.City,
		State:       domain.NormalizeState(q.State),
		VehicleType: q.VehicleType,
		FuelType:    q.FuelType,
	}
	if q.Range == nil {
		filter.Limit, filter.Offset = q.Limit, q.Offset
		return s.listings.ListListings(ctx, filter)
	}

	candidates, err := s.listings.ListListings(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.Listing{}, nil
	}

	ids := make([]string, len(candidates))
	for i, l := range candidates {
		ids[i] = l.ID
	}
	intervals, err := s.bookings.ListBookings(ctx, ids)
	if err != nil {
		return nil, err
	}

	available := make([]domain.Listing, 0, len(candidates))
	for _, l := range candidates {
		if IsAvailable(l.ID, *q.Range, intervals) {
			available = append(available, l)
		}
	}
	return paginate(available, q.Limit, q.Offset), nil
}

func paginate(listings []domain.Listing, limit, offset int) []domain.Listing {
	if offset >= len(listings) {
		return []domain.Listing{}
	}
	end := offset + limit
	if end > len(listings) {
		end = len(listings)
	}
	return listings[offset:end]
}
