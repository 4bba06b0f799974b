package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		owner_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		fuel_type TEXT NOT NULL,
		title_status TEXT NOT NULL,
		city TEXT NOT NULL,
		state TEXT NOT NULL,
		description TEXT,
		images TEXT[] NOT NULL DEFAULT '{}',
		daily_price BIGINT NOT NULL CHECK (daily_price > 0),
		weekly_price BIGINT CHECK (weekly_price IS NULL OR weekly_price > 0),
		monthly_price BIGINT CHECK (monthly_price IS NULL OR monthly_price > 0),
		original_daily_price BIGINT CHECK (original_daily_price IS NULL OR original_daily_price >= daily_price),
		original_weekly_price BIGINT CHECK (original_weekly_price IS NULL OR original_weekly_price >= weekly_price),
		original_monthly_price BIGINT CHECK (original_monthly_price IS NULL OR original_monthly_price >= monthly_price),
		approval_status TEXT NOT NULL DEFAULT 'pending'
			CHECK (approval_status IN ('pending', 'approved', 'rejected', 'deactivated')),
		rejection_reason TEXT,
		deactivation_reason TEXT,
		approved_snapshot JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT listings_rejection_reason_check
			CHECK ((approval_status = 'rejected') = (rejection_reason IS NOT NULL AND btrim(rejection_reason) <> '')),
		CONSTRAINT listings_deactivation_reason_check
			CHECK ((approval_status = 'deactivated') = (deactivation_reason IS NOT NULL AND btrim(deactivation_reason) <> ''))
	)`,
	`CREATE INDEX IF NOT EXISTS listings_owner_idx ON listings (owner_id)`,
	`CREATE INDEX IF NOT EXISTS listings_status_idx ON listings (approval_status, created_at)`,
	`CREATE TABLE IF NOT EXISTS listing_private (
		listing_id UUID PRIMARY KEY REFERENCES listings (id) ON DELETE CASCADE,
		license_plate TEXT NOT NULL CHECK (license_plate = upper(license_plate)),
		plate_state TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + plateStateIndex + ` ON listing_private (license_plate, plate_state)`,
	`CREATE TABLE IF NOT EXISTS booking_intervals (
		id UUID PRIMARY KEY,
		listing_id UUID NOT NULL REFERENCES listings (id) ON DELETE CASCADE,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		guest_name TEXT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (end_date >= start_date)
	)`,
	`CREATE INDEX IF NOT EXISTS booking_intervals_listing_idx ON booking_intervals (listing_id, start_date)`,
	`CREATE TABLE IF NOT EXISTS staged_listings (
		token UUID PRIMARY KEY,
		host_id TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'consumed', 'discarded', 'conflicted')),
		listing_id UUID,
		expires_at TIMESTAMPTZ NOT NULL,
		consumed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS staged_listings_pending_idx ON staged_listings (expires_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS event_outbox (
		id BIGSERIAL PRIMARY KEY,
		exchange TEXT NOT NULL,
		routing_key TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'processing', 'published')),
		attempts INTEGER NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processing_started_at TIMESTAMPTZ,
		published_at TIMESTAMPTZ,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS event_outbox_ready_idx ON event_outbox (status, next_attempt_at)`,
}

// EnsureSchema creates missing tables and indexes. It is safe to run on every start.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	return nil
}
