package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

const minVehicleYear = 1900

// PhotoBounds is the accepted range for the number of listing images.
type PhotoBounds struct {
	Min int
	Max int
}

// DefaultPhotoBounds is used when configuration does not override it.
var DefaultPhotoBounds = PhotoBounds{Min: 5, Max: 10}

// NormalizeSubmission trims text fields and canonicalizes plate and state codes.
func NormalizeSubmission(sub domain.ListingSubmission) domain.ListingSubmission {
	sub.Make = strings.TrimSpace(sub.Make)
	sub.Model = strings.TrimSpace(sub.Model)
	sub.City = strings.TrimSpace(sub.City)
	sub.State = domain.NormalizeState(sub.State)
	sub.LicensePlate = domain.NormalizePlate(sub.LicensePlate)
	sub.PlateState = domain.NormalizeState(sub.PlateState)
	if sub.PlateState == "" {
		sub.PlateState = sub.State
	}
	sub.VehicleType = domain.VehicleType(strings.ToLower(strings.TrimSpace(string(sub.VehicleType))))
	sub.FuelType = domain.FuelType(strings.ToLower(strings.TrimSpace(string(sub.FuelType))))
	sub.TitleStatus = domain.TitleStatus(strings.ToLower(strings.TrimSpace(string(sub.TitleStatus))))
	if sub.Description != nil {
		trimmed := strings.TrimSpace(*sub.Description)
		if trimmed == "" {
			sub.Description = nil
		} else {
			sub.Description = &trimmed
		}
	}
	images := make([]string, 0, len(sub.Images))
	for _, img := range sub.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	sub.Images = images
	return sub
}

// ValidateSubmission checks a normalized submission. The first failing field is reported.
func ValidateSubmission(sub domain.ListingSubmission, photos PhotoBounds, now time.Time) error {
	switch {
	case sub.Year < minVehicleYear || sub.Year > now.Year()+1:
		return &domain.ValidationError{Field: "year", Message: "is required and must be a valid model year"}
	case sub.Make == "":
		return &domain.ValidationError{Field: "make", Message: "is required"}
	case sub.Model == "":
		return &domain.ValidationError{Field: "model", Message: "is required"}
	case sub.City == "":
		return &domain.ValidationError{Field: "city", Message: "is required"}
	case sub.State == "":
		return &domain.ValidationError{Field: "state", Message: "is required"}
	case sub.LicensePlate == "":
		return &domain.ValidationError{Field: "license_plate", Message: "is required"}
	case !sub.VehicleType.Valid():
		return &domain.ValidationError{Field: "vehicle_type", Message: "is not a supported vehicle type"}
	case !sub.FuelType.Valid():
		return &domain.ValidationError{Field: "fuel_type", Message: "is not a supported fuel type"}
	case !sub.TitleStatus.Valid():
		return &domain.ValidationError{Field: "title_status", Message: "must be clear or rebuild"}
	}
	if err := validatePrices(sub.Prices); err != nil {
		return err
	}
	if len(sub.Images) < photos.Min {
		return &domain.ValidationError{Field: "images", Message: "must contain at least " + strconv.Itoa(photos.Min) + " photos"}
	}
	if photos.Max > 0 && len(sub.Images) > photos.Max {
		return &domain.ValidationError{Field: "images", Message: "must contain at most " + strconv.Itoa(photos.Max) + " photos"}
	}
	return nil
}

func validatePrices(p domain.Prices) error {
	if p.Daily <= 0 {
		return &domain.ValidationError{Field: "daily_price", Message: "must be greater than zero"}
	}
	if p.Weekly != nil && *p.Weekly <= 0 {
		return &domain.ValidationError{Field: "weekly_price", Message: "must be greater than zero when set"}
	}
	if p.Monthly != nil && *p.Monthly <= 0 {
		return &domain.ValidationError{Field: "monthly_price", Message: "must be greater than zero when set"}
	}
	return nil
}
