package scheduler

import (
	"context"
	"log/slog"
	"time"

	"newsdesk/internal/logger"
	"newsdesk/internal/pipeline"

	"github.com/go-co-op/gocron"
)

// Scheduler periodically refreshes every configured category in the
// background. The server starts one when a refresh interval is configured.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    *pipeline.Runner
	log       *slog.Logger
}

// New creates a scheduler around the pipeline runner.
func New(runner *pipeline.Runner) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		log:       logger.Get(),
	}
}

// Start schedules a full refresh at the given interval and begins running
// jobs asynchronously. Refreshes are not forced: recently extracted articles
// are re-used rather than re-scraped.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	_, err := s.scheduler.Every(interval).Tag("refresh-all").Do(func() {
		categories, err := s.runner.Submit(ctx, nil, false)
		if err != nil {
			s.log.Error("scheduled refresh submission failed", "error", err.Error())
			return
		}
		s.log.Info("scheduled refresh submitted", "categories", categories)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("refresh scheduler started", "interval", interval.String())
	return nil
}

// Stop halts the scheduler; running jobs finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
