package app

import (
	"context"
	"log/slog"

	"github.com/IVSOLOV/car-connect-sub000/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the maintenance jobs on their cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{cron: c, jobs: jobs, logger: logger, config: cfg}
}

// Start registers the jobs and starts the scheduler. A bad schedule is logged and skipped.
func (s *Scheduler) Start() {
	s.register("staged submission expiry", s.config.StagingExpirySchedule, s.jobs.ExpireStagedSubmissions)
	s.register("outbox purge", s.config.OutboxPurgeSchedule, s.jobs.PurgePublishedOutbox)
	s.cron.Start()
}

func (s *Scheduler) register(name, schedule string, job func()) {
	if _, err := s.cron.AddFunc(schedule, job); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "schedule", schedule, "error", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "schedule", schedule)
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
