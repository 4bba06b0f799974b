package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
)

const listingColumns = `
	id, owner_id, year, make, model, vehicle_type, fuel_type, title_status, city, state,
	description, images, daily_price, weekly_price, monthly_price,
	original_daily_price, original_weekly_price, original_monthly_price,
	approval_status, rejection_reason, deactivation_reason, approved_snapshot,
	created_at, updated_at`

// GetListing retrieves a listing by id.
func (r *PostgresRepository) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	row := r.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id::text = $1`, id)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}
	return listing, nil
}

// GetPrivateRecord retrieves the registration record of a listing.
func (r *PostgresRepository) GetPrivateRecord(ctx context.Context, listingID string) (*domain.SensitiveListingRecord, error) {
	var rec domain.SensitiveListingRecord
	err := r.db.QueryRow(ctx, `
		SELECT listing_id::text, license_plate, plate_state
		FROM listing_private
		WHERE listing_id::text = $1
	`, listingID).Scan(&rec.ListingID, &rec.LicensePlate, &rec.PlateState)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListListings returns listings matching filter, newest first. A zero Limit returns every match.
func (r *PostgresRepository) ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	where, args := listingFilterClause(filter)
	query := `SELECT ` + listingColumns + ` FROM listings` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []domain.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *listing)
	}
	return listings, rows.Err()
}

// CountListingsByOwner counts every listing the host holds, in any status.
func (r *PostgresRepository) CountListingsByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE owner_id = $1`, ownerID).Scan(&count)
	return count, err
}

// PlateInUse reports whether another listing already holds the plate/state pair.
func (r *PostgresRepository) PlateInUse(ctx context.Context, plate, state, excludeListingID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM listing_private
			WHERE license_plate = upper($1)
			  AND plate_state = upper($2)
			  AND ($3 = '' OR listing_id::text <> $3)
		)
	`, domain.NormalizePlate(plate), domain.NormalizeState(state), excludeListingID).Scan(&exists)
	return exists, err
}

// CreateListing inserts a listing with its registration record and events.
// A plate/state collision surfaces as domain.ErrDuplicateVehicle and nothing is written.
func (r *PostgresRepository) CreateListing(ctx context.Context, listing *domain.Listing, record domain.SensitiveListingRecord, events []domain.OutboxEvent) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertListingTx(ctx, tx, listing, record); err != nil {
			return err
		}
		return enqueueEventsTx(ctx, tx, r.exchange, events)
	})
}

// UpdateListing writes the listing and, when given, its registration record.
func (r *PostgresRepository) UpdateListing(ctx context.Context, listing *domain.Listing, record *domain.SensitiveListingRecord, events []domain.OutboxEvent) error {
	snapshot, err := encodeSnapshot(listing.ApprovedSnapshot)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE listings SET
				year = $2, make = $3, model = $4, vehicle_type = $5, fuel_type = $6, title_status = $7,
				city = $8, state = $9, description = $10, images = $11,
				daily_price = $12, weekly_price = $13, monthly_price = $14,
				original_daily_price = $15, original_weekly_price = $16, original_monthly_price = $17,
				approval_status = $18, rejection_reason = $19, deactivation_reason = $20,
				approved_snapshot = $21::jsonb, updated_at = $22
			WHERE id::text = $1
		`,
			listing.ID,
			listing.Year, listing.Make, listing.Model,
			string(listing.VehicleType), string(listing.FuelType), string(listing.TitleStatus),
			listing.City, listing.State, listing.Description, imagesOrEmpty(listing.Images),
			listing.Daily, listing.Weekly, listing.Monthly,
			listing.OriginalDaily, listing.OriginalWeekly, listing.OriginalMonthly,
			string(listing.ApprovalStatus), listing.RejectionReason, listing.DeactivationReason,
			snapshot, listing.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrListingNotFound
		}

		if record != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE listing_private SET license_plate = $2, plate_state = $3
				WHERE listing_id::text = $1
			`, listing.ID, domain.NormalizePlate(record.LicensePlate), domain.NormalizeState(record.PlateState)); err != nil {
				return mapPlateViolation(err)
			}
		}
		return enqueueEventsTx(ctx, tx, r.exchange, events)
	})
}

// DeleteListing removes a listing; its registration record and bookings cascade.
func (r *PostgresRepository) DeleteListing(ctx context.Context, id string, events []domain.OutboxEvent) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM listings WHERE id::text = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrListingNotFound
		}
		return enqueueEventsTx(ctx, tx, r.exchange, events)
	})
}

func insertListingTx(ctx context.Context, tx pgx.Tx, listing *domain.Listing, record domain.SensitiveListingRecord) error {
	snapshot, err := encodeSnapshot(listing.ApprovedSnapshot)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO listings (
			id, owner_id, year, make, model, vehicle_type, fuel_type, title_status, city, state,
			description, images, daily_price, weekly_price, monthly_price,
			original_daily_price, original_weekly_price, original_monthly_price,
			approval_status, rejection_reason, deactivation_reason, approved_snapshot,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22::jsonb,
			$23, $24
		)
	`,
		listing.ID, listing.OwnerID, listing.Year, listing.Make, listing.Model,
		string(listing.VehicleType), string(listing.FuelType), string(listing.TitleStatus),
		listing.City, listing.State,
		listing.Description, imagesOrEmpty(listing.Images), listing.Daily, listing.Weekly, listing.Monthly,
		listing.OriginalDaily, listing.OriginalWeekly, listing.OriginalMonthly,
		string(listing.ApprovalStatus), listing.RejectionReason, listing.DeactivationReason, snapshot,
		listing.CreatedAt, listing.UpdatedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO listing_private (listing_id, license_plate, plate_state)
		VALUES ($1, $2, $3)
	`, listing.ID, domain.NormalizePlate(record.LicensePlate), domain.NormalizeState(record.PlateState))
	return mapPlateViolation(err)
}

// listingFilterClause builds the WHERE clause and arguments for filter, ignoring paging.
func listingFilterClause(filter domain.ListingFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if filter.OwnerID != "" {
		add("owner_id = $%d", filter.OwnerID)
	}
	if filter.Status != "" {
		add("approval_status = $%d", string(filter.Status))
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		add("lower(city) = lower($%d)", city)
	}
	if state := strings.TrimSpace(filter.State); state != "" {
		add("state = upper($%d)", state)
	}
	if filter.VehicleType != "" {
		add("vehicle_type = $%d", string(filter.VehicleType))
	}
	if filter.FuelType != "" {
		add("fuel_type = $%d", string(filter.FuelType))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		l                                    domain.Listing
		vehicleType, fuelType, title, status string
		snapshot                             []byte
	)
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Year, &l.Make, &l.Model, &vehicleType, &fuelType, &title, &l.City, &l.State,
		&l.Description, &l.Images, &l.Daily, &l.Weekly, &l.Monthly,
		&l.OriginalDaily, &l.OriginalWeekly, &l.OriginalMonthly,
		&status, &l.RejectionReason, &l.DeactivationReason, &snapshot,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.VehicleType = domain.VehicleType(vehicleType)
	l.FuelType = domain.FuelType(fuelType)
	l.TitleStatus = domain.TitleStatus(title)
	l.ApprovalStatus = domain.ApprovalStatus(status)
	if l.Images == nil {
		l.Images = []string{}
	}
	if len(snapshot) > 0 {
		var snap domain.ApprovedSnapshot
		if err := json.Unmarshal(snapshot, &snap); err != nil {
			return nil, fmt.Errorf("failed to decode approved snapshot for listing %s: %w", l.ID, err)
		}
		l.ApprovedSnapshot = &snap
	}
	return &l, nil
}

func encodeSnapshot(snapshot *domain.ApprovedSnapshot) (*string, error) {
	if snapshot == nil {
		return nil, nil
	}
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	s := string(blob)
	return &s, nil
}

func imagesOrEmpty(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}
