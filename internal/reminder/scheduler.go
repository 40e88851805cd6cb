package reminder

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs the sweep once a day at a fixed wall clock time
type Scheduler struct {
	service *Service
	hour    int
	minute  int
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
}

// NewScheduler creates a scheduler firing at hour:minute in loc
func NewScheduler(service *Service, hour, minute int, loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service: service,
		hour:    hour,
		minute:  minute,
		loc:     loc,
		now:     time.Now,
		logger:  logger.With("component", "scheduler"),
	}
}

// NextRun returns the first hour:minute in loc strictly after now
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start blocks, running a sweep at every firing until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := NextRun(s.now(), s.hour, s.minute, s.loc)
		s.logger.Info("next payment reminder sweep scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.service.Run(ctx); err != nil {
			s.logger.Error("payment reminder sweep failed", "error", err)
		}
	}
}
