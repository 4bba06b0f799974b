package store

import (
	"context"
	"errors"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id::text, listing_id::text, start_date, end_date, guest_name, notes, created_at, updated_at`

// GetBooking retrieves a booking by id.
func (r *PostgresRepository) GetBooking(ctx context.Context, id string) (*domain.BookingInterval, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM booking_intervals WHERE id::text = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListBookings returns every booking of the given listings ordered by start date.
func (r *PostgresRepository) ListBookings(ctx context.Context, listingIDs []string) ([]domain.BookingInterval, error) {
	bookings := []domain.BookingInterval{}
	if len(listingIDs) == 0 {
		return bookings, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM booking_intervals
		WHERE listing_id::text = ANY($1)
		ORDER BY listing_id, start_date, end_date
	`, listingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// CreateBooking stores a booking. Overlapping bookings are accepted.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b *domain.BookingInterval) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO booking_intervals (id, listing_id, start_date, end_date, guest_name, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.ListingID, b.Start, b.End, b.GuestName, b.Notes, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *PostgresRepository) UpdateBooking(ctx context.Context, b *domain.BookingInterval) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE booking_intervals
		SET start_date = $2, end_date = $3, guest_name = $4, notes = $5, updated_at = $6
		WHERE id::text = $1
	`, b.ID, b.Start, b.End, b.GuestName, b.Notes, b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteBooking(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM booking_intervals WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (*domain.BookingInterval, error) {
	var b domain.BookingInterval
	if err := row.Scan(&b.ID, &b.ListingID, &b.Start, &b.End, &b.GuestName, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.DateRange = domain.NewDateRange(b.Start, b.End)
	return &b, nil
}
