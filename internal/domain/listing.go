/**
 * @description
 * This file defines the core domain models for the listing-service: the public
 * Listing row, the access-controlled registration record, and the submission
 * payload a host sends when creating or editing a listing.
 */
package domain

import (
	"strings"
	"time"
)

// ApprovalStatus is the moderation state of a listing.
type ApprovalStatus string

const (
	StatusPending     ApprovalStatus = "pending"
	StatusApproved    ApprovalStatus = "approved"
	StatusRejected    ApprovalStatus = "rejected"
	StatusDeactivated ApprovalStatus = "deactivated"
)

// Valid reports whether s is one of the known moderation states.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDeactivated:
		return true
	}
	return false
}

// VehicleType enumerates the vehicle body styles a host can list.
type VehicleType string

const (
	VehicleSedan    VehicleType = "sedan"
	VehicleSUV      VehicleType = "suv"
	VehicleMinivan  VehicleType = "minivan"
	VehicleTruck    VehicleType = "truck"
	VehicleVan      VehicleType = "van"
	VehicleCargoVan VehicleType = "cargo_van"
	VehicleBoxTruck VehicleType = "box_truck"
)

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleSedan, VehicleSUV, VehicleMinivan, VehicleTruck, VehicleVan, VehicleCargoVan, VehicleBoxTruck:
		return true
	}
	return false
}

// FuelType enumerates the supported fuel kinds.
type FuelType string

const (
	FuelGas      FuelType = "gas"
	FuelDiesel   FuelType = "diesel"
	FuelHybrid   FuelType = "hybrid"
	FuelElectric FuelType = "electric"
	FuelOther    FuelType = "other"
)

func (f FuelType) Valid() bool {
	switch f {
	case FuelGas, FuelDiesel, FuelHybrid, FuelElectric, FuelOther:
		return true
	}
	return false
}

// TitleStatus is the legal title state of the vehicle.
type TitleStatus string

const (
	TitleClear   TitleStatus = "clear"
	TitleRebuild TitleStatus = "rebuild"
)

func (t TitleStatus) Valid() bool {
	return t == TitleClear || t == TitleRebuild
}

// Prices groups the three price tiers. Daily is required, weekly and monthly are optional.
type Prices struct {
	Daily   int64  `json:"daily_price"`
	Weekly  *int64 `json:"weekly_price,omitempty"`
	Monthly *int64 `json:"monthly_price,omitempty"`
}

// OriginalPrices holds the pre-discount baseline for each tier. A field is set only
// while the corresponding current price sits below a previously approved value.
type OriginalPrices struct {
	OriginalDaily   *int64 `json:"original_daily_price,omitempty"`
	OriginalWeekly  *int64 `json:"original_weekly_price,omitempty"`
	OriginalMonthly *int64 `json:"original_monthly_price,omitempty"`
}

// Clear drops all discount history.
func (o *OriginalPrices) Clear() {
	o.OriginalDaily, o.OriginalWeekly, o.OriginalMonthly = nil, nil, nil
}

// IsEmpty reports whether no tier carries an original price.
func (o OriginalPrices) IsEmpty() bool {
	return o.OriginalDaily == nil && o.OriginalWeekly == nil && o.OriginalMonthly == nil
}

// VehicleDetails are the descriptive attributes of a listing.
type VehicleDetails struct {
	Year        int         `json:"year"`
	Make        string      `json:"make"`
	Model       string      `json:"model"`
	VehicleType VehicleType `json:"vehicle_type"`
	FuelType    FuelType    `json:"fuel_type"`
	TitleStatus TitleStatus `json:"title_status"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	Description *string     `json:"description,omitempty"`
	// Images is ordered; the first entry is the cover photo.
	Images []string `json:"images"`
}

// ApprovedSnapshot captures the fields that decide whether a later edit is cosmetic.
// It is written every time a moderator approves the listing.
type ApprovedSnapshot struct {
	Year        int         `json:"year"`
	Make        string      `json:"make"`
	Model       string      `json:"model"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	TitleStatus TitleStatus `json:"title_status"`
	Description *string     `json:"description,omitempty"`
	Images      []string    `json:"images"`
	Prices      Prices      `json:"prices"`
}

// Listing is a vehicle offered for rent by a host.
type Listing struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	VehicleDetails
	Prices
	OriginalPrices
	ApprovalStatus     ApprovalStatus    `json:"approval_status"`
	RejectionReason    *string           `json:"rejection_reason,omitempty"`
	DeactivationReason *string           `json:"deactivation_reason,omitempty"`
	ApprovedSnapshot   *ApprovedSnapshot `json:"-"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Snapshot builds the approval snapshot from the listing's current values.
func (l *Listing) Snapshot() *ApprovedSnapshot {
	images := make([]string, len(l.Images))
	copy(images, l.Images)
	return &ApprovedSnapshot{
		Year:        l.Year,
		Make:        l.Make,
		Model:       l.Model,
		City:        l.City,
		State:       l.State,
		TitleStatus: l.TitleStatus,
		Description: cloneString(l.Description),
		Images:      images,
		Prices: Prices{
			Daily:   l.Daily,
			Weekly:  cloneInt64(l.Weekly),
			Monthly: cloneInt64(l.Monthly),
		},
	}
}

// SensitiveListingRecord is kept apart from Listing so it never leaves the owner/moderator scope.
type SensitiveListingRecord struct {
	ListingID    string `json:"listing_id"`
	LicensePlate string `json:"license_plate"`
	PlateState   string `json:"plate_state"`
}

// NormalizePlate uppercases a plate and strips surrounding and inner whitespace.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), ""))
}

// NormalizeState uppercases a two-letter state code.
func NormalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

// ListingSubmission is the payload a host sends to create or edit a listing.
type ListingSubmission struct {
	VehicleDetails
	Prices
	LicensePlate string `json:"license_plate"`
	PlateState   string `json:"plate_state"`
}

// ListingWithRecord pairs a listing with its registration record for owner views.
type ListingWithRecord struct {
	Listing
	Record *SensitiveListingRecord `json:"registration,omitempty"`
}

// ListingFilter narrows listing queries.
type ListingFilter struct {
	OwnerID     string
	Status      ApprovalStatus
	City        string
	State       string
	VehicleType VehicleType
	FuelType    FuelType
	Limit       int
	Offset      int
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
