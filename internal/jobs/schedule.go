package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler enqueues jobs on cron expressions.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler that enqueues through d.
func NewScheduler(d *Dispatcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:       cron.New(),
		dispatcher: d,
		logger:     logger.With("component", "job_scheduler"),
	}
}

// Every enqueues name with the payload produced by payload each time the
// standard five-field cron expression spec fires.
func (s *Scheduler) Every(spec string, name Name, payload func() any) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	_, err := s.cron.AddFunc(spec, func() {
		h, err := s.dispatcher.Enqueue(context.Background(), name, payload())
		if err != nil {
			s.logger.Error("failed to enqueue scheduled job", "job_name", string(name), "error", err)
			return
		}
		s.logger.Info("scheduled job enqueued", "job_name", string(name), "job_id", h.ID)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running enqueue to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
