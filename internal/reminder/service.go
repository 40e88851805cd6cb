// Package reminder sends the daily payment reminders.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thoriqulumar/kostan-be/internal/billing"
	"github.com/thoriqulumar/kostan-be/internal/notification"
	"github.com/thoriqulumar/kostan-be/internal/room"
)

// Policy decides what happens to due days a month does not have
type Policy string

const (
	// PolicySkip never reminds when the due day is missing from the month
	PolicySkip Policy = "skip"
	// PolicyLastDay reminds on the last day of a month shorter than the due day
	PolicyLastDay Policy = "last_day"
)

// Tenancies lists the rooms a sweep looks at
type Tenancies interface {
	ListActiveTenancies(ctx context.Context) ([]room.Tenancy, error)
}

// Payments reports whether a period is already settled
type Payments interface {
	HasApproved(ctx context.Context, tenantID, roomID uuid.UUID, period billing.Period) (bool, error)
}

// Notifier records and publishes reminders
type Notifier interface {
	HasReminder(ctx context.Context, userID uuid.UUID, period billing.Period) (bool, error)
	Create(ctx context.Context, userID uuid.UUID, msg notification.Message) (*notification.Notification, error)
}

// Summary counts the outcome of one sweep
type Summary struct {
	Date            string `json:"date"`
	Scanned         int    `json:"scanned"`
	Due             int    `json:"due"`
	Sent            int    `json:"sent"`
	AlreadyPaid     int    `json:"already_paid"`
	AlreadyReminded int    `json:"already_reminded"`
	Failed          int    `json:"failed"`
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomePaid
	outcomeReminded
)

// Option configures a Service
type Option func(*Service)

// WithLocation sets the zone whose calendar decides "today"
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithPolicy sets the short month policy
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service runs reminder sweeps. Sweeps never overlap.
type Service struct {
	tenancies Tenancies
	payments  Payments
	notifier  Notifier
	loc       *time.Location
	policy    Policy
	now       func() time.Time
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewService creates a new reminder service
func NewService(tenancies Tenancies, payments Payments, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		tenancies: tenancies,
		payments:  payments,
		notifier:  notifier,
		loc:       time.UTC,
		policy:    PolicySkip,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "reminder")
	return s
}

// IsDue reports whether a tenancy with the given due day is due on today
func IsDue(dueDay int, today time.Time, policy Policy) bool {
	day := today.Day()
	if day == dueDay {
		return true
	}
	if policy != PolicyLastDay {
		return false
	}
	last := time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, today.Location()).Day()
	return day == last && dueDay > last
}

// Run sweeps every tenancy once for the current day. It only fails when the
// tenancies cannot be listed; per tenancy failures are counted in the summary.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().In(s.loc)
	summary := Summary{Date: today.Format(time.DateOnly)}

	tenancies, err := s.tenancies.ListActiveTenancies(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list tenancies: %w", err)
	}

	s.logger.Info("payment reminder sweep started", "date", summary.Date, "tenancies", len(tenancies))

	period := billing.PeriodOf(today)
	for _, t := range tenancies {
		summary.Scanned++
		if !IsDue(t.DueDay(), today, s.policy) {
			continue
		}
		summary.Due++

		result, err := s.remind(ctx, t, period)
		if err != nil {
			summary.Failed++
			s.logger.Error("payment reminder failed",
				"room_id", t.RoomID, "user_id", t.TenantID, "period", period.String(), "error", err)
			continue
		}

		switch result {
		case outcomeSent:
			summary.Sent++
		case outcomePaid:
			summary.AlreadyPaid++
		case outcomeReminded:
			summary.AlreadyReminded++
		}
	}

	s.logger.Info("payment reminder sweep completed",
		"date", summary.Date,
		"due", summary.Due,
		"sent", summary.Sent,
		"already_paid", summary.AlreadyPaid,
		"already_reminded", summary.AlreadyReminded,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (s *Service) remind(ctx context.Context, t room.Tenancy, period billing.Period) (result outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	paid, err := s.payments.HasApproved(ctx, t.TenantID, t.RoomID, period)
	if err != nil {
		return 0, err
	}
	if paid {
		s.logger.Debug("period already paid", "user_id", t.TenantID, "period", period.String())
		return outcomePaid, nil
	}

	reminded, err := s.notifier.HasReminder(ctx, t.TenantID, period)
	if err != nil {
		return 0, err
	}
	if reminded {
		return outcomeReminded, nil
	}

	_, err = s.notifier.Create(ctx, t.TenantID, notification.PaymentReminder{
		Room:   t.RoomName,
		Period: period,
		Price:  t.Price,
	})
	if errors.Is(err, notification.ErrReminderExists) {
		return outcomeReminded, nil
	}
	if err != nil {
		return 0, err
	}

	s.logger.Info("payment reminder sent", "user_id", t.TenantID, "room", t.RoomName, "period", period.String())
	return outcomeSent, nil
}
