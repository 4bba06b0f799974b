package store

import (
	"context"
	"errors"
	"time"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
)

// CreateStagedSubmission stores a submission waiting for checkout.
func (r *PostgresRepository) CreateStagedSubmission(ctx context.Context, s *domain.StagedSubmission) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO staged_listings (token, host_id, payload, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $6)
	`, s.Token, s.HostID, string(s.Payload), string(s.Status), s.ExpiresAt, s.CreatedAt)
	return err
}

func (r *PostgresRepository) GetStagedSubmission(ctx context.Context, token string) (*domain.StagedSubmission, error) {
	var (
		s       domain.StagedSubmission
		status  string
		payload []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT token::text, host_id, payload, status, listing_id::text, expires_at, consumed_at, created_at
		FROM staged_listings
		WHERE token::text = $1
	`, token).Scan(&s.Token, &s.HostID, &payload, &status, &s.ListingID, &s.ExpiresAt, &s.ConsumedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStagingTokenNotFound
		}
		return nil, err
	}
	s.Payload = payload
	s.Status = domain.StagedStatus(status)
	return &s, nil
}

// ConsumeStagedSubmission marks the token consumed and inserts the listing in one transaction.
// Concurrent deliveries of the same token serialize on the row lock; only the first sees
// status 'pending', the rest get ErrStagingTokenConsumed.
func (r *PostgresRepository) ConsumeStagedSubmission(
	ctx context.Context,
	token string,
	listing *domain.Listing,
	record domain.SensitiveListingRecord,
	events []domain.OutboxEvent,
) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE staged_listings
			SET status = 'consumed', consumed_at = NOW(), listing_id = $2, updated_at = NOW()
			WHERE token::text = $1 AND status = 'pending'
		`, token, listing.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStagingTokenConsumed
		}

		if err := insertListingTx(ctx, tx, listing, record); err != nil {
			return err
		}
		return enqueueEventsTx(ctx, tx, r.exchange, events)
	})
}

// ResolveStagedSubmission moves a pending token to status. Events are enqueued only when
// the token actually changed.
func (r *PostgresRepository) ResolveStagedSubmission(
	ctx context.Context,
	token string,
	status domain.StagedStatus,
	events []domain.OutboxEvent,
) (bool, error) {
	changed := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE staged_listings SET status = $2, updated_at = NOW()
			WHERE token::text = $1 AND status = 'pending'
		`, token, string(status))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM staged_listings WHERE token::text = $1)`, token).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrStagingTokenNotFound
			}
			return nil
		}
		changed = true
		return enqueueEventsTx(ctx, tx, r.exchange, events)
	})
	return changed, err
}

// ExpireStagedSubmissions discards pending submissions that expired before now.
func (r *PostgresRepository) ExpireStagedSubmissions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE staged_listings SET status = 'discarded', updated_at = NOW()
		WHERE status = 'pending' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
