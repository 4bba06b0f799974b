/**
 * @description
 * PostgreSQL data access for the listing-service. Every write that must be announced to other
 * systems also inserts its events into event_outbox inside the same transaction.
 */
package store

import (
	"context"
	"errors"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStagingTokenConsumed is returned when a staging token is no longer pending.
var ErrStagingTokenConsumed = errors.New("staging token already consumed")

const (
	uniqueViolationCode = "23505"
	plateStateIndex     = "listing_private_plate_state_key"
)

// PostgresRepository implements the listing, booking, staging and outbox repositories.
type PostgresRepository struct {
	db       *pgxpool.Pool
	exchange string
}

// NewPostgresRepository creates a repository that enqueues events for exchange.
func NewPostgresRepository(db *pgxpool.Pool, exchange string) *PostgresRepository {
	return &PostgresRepository{db: db, exchange: exchange}
}

// inTx runs fn in a transaction and commits when it returns nil.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// mapPlateViolation turns a unique violation on the plate/state index into ErrDuplicateVehicle.
func mapPlateViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == plateStateIndex {
		return domain.ErrDuplicateVehicle
	}
	return err
}
