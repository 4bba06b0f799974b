/**
 * @description
 * Scheduled maintenance jobs for the listing-service.
 */
package app

import (
	"context"
	"log/slog"
	"time"
)

// StagingExpirer discards staged submissions whose checkout window has passed.
type StagingExpirer interface {
	ExpireStaged(ctx context.Context) (int64, error)
}

// OutboxPurger removes published outbox rows older than the retention window.
type OutboxPurger interface {
	PurgePublishedOutbox(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	staging         StagingExpirer
	outbox          OutboxPurger
	outboxRetention time.Duration
	logger          *slog.Logger
}

func NewJobs(staging StagingExpirer, outbox OutboxPurger, outboxRetention time.Duration, logger *slog.Logger) *Jobs {
	return &Jobs{
		staging:         staging,
		outbox:          outbox,
		outboxRetention: outboxRetention,
		logger:          logger,
	}
}

// ExpireStagedSubmissions discards abandoned checkouts so they can never become listings.
func (j *Jobs) ExpireStagedSubmissions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	expired, err := j.staging.ExpireStaged(ctx)
	if err != nil {
		j.logger.Error("failed to expire staged submissions", "error", err)
		return
	}
	if expired > 0 {
		j.logger.Info("expired staged submissions", "count", expired)
	}
}

// PurgePublishedOutbox trims the outbox table.
func (j *Jobs) PurgePublishedOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	purged, err := j.outbox.PurgePublishedOutbox(ctx, j.outboxRetention)
	if err != nil {
		j.logger.Error("failed to purge published outbox rows", "error", err)
		return
	}
	j.logger.Info("purged published outbox rows", "count", purged, "retention", j.outboxRetention.String())
}
