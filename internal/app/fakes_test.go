package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/IVSOLOV/car-connect-sub000/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

func dateRange(start, end string) domain.DateRange {
	r, err := domain.ParseDateRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

func validSubmission(plate string) domain.ListingSubmission {
	return domain.ListingSubmission{
		VehicleDetails: domain.VehicleDetails{
			Year:        2020,
			Make:        "Toyota",
			Model:       "Camry",
			VehicleType: domain.VehicleSedan,
			FuelType:    domain.FuelGas,
			TitleStatus: domain.TitleClear,
			City:        "Austin",
			State:       "tx",
			Description: strPtr("Clean and reliable"),
			Images:      []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"},
		},
		Prices:       domain.Prices{Daily: 10000},
		LicensePlate: plate,
	}
}

// memoryStore is an in-memory ListingRepository, BookingRepository and StagingRepository.
// Plate uniqueness is enforced under the same lock as the insert, like the unique index.
type memoryStore struct {
	mu       sync.Mutex
	listings map[string]domain.Listing
	records  map[string]domain.SensitiveListingRecord
	bookings map[string]domain.BookingInterval
	staged   map[string]domain.StagedSubmission
	events   []domain.OutboxEvent

	listErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		listings: map[string]domain.Listing{},
		records:  map[string]domain.SensitiveListingRecord{},
		bookings: map[string]domain.BookingInterval{},
		staged:   map[string]domain.StagedSubmission{},
	}
}

func (m *memoryStore) put(l domain.Listing, plate, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
	m.records[l.ID] = domain.SensitiveListingRecord{ListingID: l.ID, LicensePlate: plate, PlateState: state}
}

func (m *memoryStore) get(id string) domain.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listings[id]
}

func (m *memoryStore) listingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listings)
}

func (m *memoryStore) routingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.events))
	for _, e := range m.events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}

func (m *memoryStore) plateTakenLocked(plate, state, excludeID string) bool {
	for id, rec := range m.records {
		if id != excludeID && rec.LicensePlate == plate && rec.PlateState == state {
			return true
		}
	}
	return false
}

func (m *memoryStore) CountListingsByOwner(ctx context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, l := range m.listings {
		if l.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return &l, nil
}

func (m *memoryStore) GetPrivateRecord(ctx context.Context, listingID string) (*domain.SensitiveListingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[listingID]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return &rec, nil
}

func (m *memoryStore) ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Listing{}
	for _, l := range m.listings {
		switch {
		case filter.OwnerID != "" && l.OwnerID != filter.OwnerID:
			continue
		case filter.Status != "" && l.ApprovalStatus != filter.Status:
			continue
		case filter.City != "" && !strings.EqualFold(l.City, filter.City):
			continue
		case filter.State != "" && l.State != filter.State:
			continue
		case filter.VehicleType != "" && l.VehicleType != filter.VehicleType:
			continue
		case filter.FuelType != "" && l.FuelType != filter.FuelType:
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Listing{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryStore) PlateInUse(ctx context.Context, plate, state, excludeListingID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plateTakenLocked(plate, state, excludeListingID), nil
}

func (m *memoryStore) CreateListing(ctx context.Context, listing *domain.Listing, record domain.SensitiveListingRecord, events []domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plateTakenLocked(record.LicensePlate, record.PlateState, "") {
		return domain.ErrDuplicateVehicle
	}
	m.listings[listing.ID] = *listing
	m.records[listing.ID] = record
	m.events = append(m.events, events...)
	return nil
}

func (m *memoryStore) UpdateListing(ctx context.Context, listing *domain.Listing, record *domain.SensitiveListingRecord, events []domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[listing.ID]; !ok {
		return domain.ErrListingNotFound
	}
	if record != nil {
		if m.plateTakenLocked(record.LicensePlate, record.PlateState, listing.ID) {
			return domain.ErrDuplicateVehicle
		}
		m.records[listing.ID] = *record
	}
	m.listings[listing.ID] = *listing
	m.events = append(m.events, events...)
	return nil
}

func (m *memoryStore) DeleteListing(ctx context.Context, id string, events []domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[id]; !ok {
		return domain.ErrListingNotFound
	}
	delete(m.listings, id)
	delete(m.records, id)
	for bid, b := range m.bookings {
		if b.ListingID == id {
			delete(m.bookings, bid)
		}
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *memoryStore) GetBooking(ctx context.Context, id string) (*domain.BookingInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return &b, nil
}

func (m *memoryStore) ListBookings(ctx context.Context, listingIDs []string) ([]domain.BookingInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(listingIDs))
	for _, id := range listingIDs {
		wanted[id] = true
	}
	out := []domain.BookingInterval{}
	for _, b := range m.bookings {
		if wanted[b.ListingID] {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memoryStore) CreateBooking(ctx context.Context, booking *domain.BookingInterval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = *booking
	return nil
}

func (m *memoryStore) UpdateBooking(ctx context.Context, booking *domain.BookingInterval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[booking.ID]; !ok {
		return domain.ErrBookingNotFound
	}
	m.bookings[booking.ID] = *booking
	return nil
}

func (m *memoryStore) DeleteBooking(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return domain.ErrBookingNotFound
	}
	delete(m.bookings, id)
	return nil
}

func (m *memoryStore) CreateStagedSubmission(ctx context.Context, staged *domain.StagedSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged[staged.Token] = *staged
	return nil
}

func (m *memoryStore) GetStagedSubmission(ctx context.Context, token string) (*domain.StagedSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staged[token]
	if !ok {
		return nil, domain.ErrStagingTokenNotFound
	}
	return &s, nil
}

func (m *memoryStore) ConsumeStagedSubmission(ctx context.Context, token string, listing *domain.Listing, record domain.SensitiveListingRecord, events []domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staged[token]
	if !ok {
		return domain.ErrStagingTokenNotFound
	}
	if s.Status != domain.StagedPending {
		return store.ErrStagingTokenConsumed
	}
	if m.plateTakenLocked(record.LicensePlate, record.PlateState, "") {
		return domain.ErrDuplicateVehicle
	}
	now := time.Now().UTC()
	s.Status = domain.StagedConsumed
	s.ListingID = &listing.ID
	s.ConsumedAt = &now
	m.staged[token] = s
	m.listings[listing.ID] = *listing
	m.records[listing.ID] = record
	m.events = append(m.events, events...)
	return nil
}

func (m *memoryStore) ResolveStagedSubmission(ctx context.Context, token string, status domain.StagedStatus, events []domain.OutboxEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staged[token]
	if !ok {
		return false, domain.ErrStagingTokenNotFound
	}
	if s.Status != domain.StagedPending {
		return false, nil
	}
	s.Status = status
	m.staged[token] = s
	m.events = append(m.events, events...)
	return true, nil
}

func (m *memoryStore) ExpireStagedSubmissions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired int64
	for token, s := range m.staged {
		if s.Status == domain.StagedPending && s.ExpiresAt.Before(now) {
			s.Status = domain.StagedDiscarded
			m.staged[token] = s
			expired++
		}
	}
	return expired, nil
}

func (m *memoryStore) stagedStatus(token string) domain.StagedStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staged[token].Status
}

type startedSubscription struct {
	quantity  int
	trialDays int
}

// billingStub keeps one entitlement per host and records every mutating call.
type billingStub struct {
	mu           sync.Mutex
	entitlements map[string]domain.Entitlement
	getErr       error
	checkoutErr  error

	quantities []int
	cancelled  []string
	started    []startedSubscription
	checkouts  []domain.CheckoutRequest
}

func newBillingStub() *billingStub {
	return &billingStub{entitlements: map[string]domain.Entitlement{}}
}

func (b *billingStub) GetEntitlement(ctx context.Context, hostID string) (domain.Entitlement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return domain.Entitlement{}, b.getErr
	}
	e, ok := b.entitlements[hostID]
	if !ok {
		return domain.Entitlement{Status: domain.EntitlementNone}, nil
	}
	return e, nil
}

func (b *billingStub) SetQuantity(ctx context.Context, hostID string, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entitlements[hostID]
	e.Quantity = quantity
	b.entitlements[hostID] = e
	b.quantities = append(b.quantities, quantity)
	return nil
}

func (b *billingStub) CancelSubscription(ctx context.Context, hostID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entitlements[hostID] = domain.Entitlement{Status: domain.EntitlementNone}
	b.cancelled = append(b.cancelled, hostID)
	return nil
}

func (b *billingStub) StartCheckout(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.checkoutErr != nil {
		return "", b.checkoutErr
	}
	b.checkouts = append(b.checkouts, req)
	return "https://billing.test/checkout/" + req.StagingToken, nil
}

func (b *billingStub) StartSubscription(ctx context.Context, hostID string, quantity int, trialDays int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entitlements[hostID] = domain.Entitlement{Status: domain.EntitlementTrialing, Quantity: quantity}
	b.started = append(b.started, startedSubscription{quantity: quantity, trialDays: trialDays})
	return nil
}

var errBillingDown = errors.New("billing down")
