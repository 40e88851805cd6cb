package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thoriqulumar/kostan-be/internal/billing"
	"github.com/thoriqulumar/kostan-be/internal/database"
	"github.com/thoriqulumar/kostan-be/internal/hub"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("not the recipient of this notification")
	ErrReminderExists       = errors.New("payment reminder already sent for this period")
)

// Publisher pushes events to the live connections of a user
type Publisher interface {
	Push(userID uuid.UUID, event string, payload any) int
}

// Sink receives every published notification after it has been stored, for
// delivery over a secondary channel such as email
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *Notification) error
}

// Option configures a Service
type Option func(*Service)

// WithSinks adds secondary delivery channels
func WithSinks(sinks ...Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the time source used for created_at
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the single entry point for creating notifications. It persists
// first, then pushes to live connections, then hands off to sinks.
type Service struct {
	repo      *Repository
	publisher Publisher
	sinks     []Sink
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewService creates a new notification service
func NewService(repo *Repository, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		publisher: publisher,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "notification")
	return s
}

func (s *Service) build(userID uuid.UUID, msg Message) *Notification {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      msg.Kind(),
		Title:     msg.Title(),
		Message:   msg.Body(),
		CreatedAt: s.now().UTC(),
	}
	if p, ok := msg.BillingPeriod(); ok {
		month, year := int(p.Month), p.Year
		n.PaymentMonth, n.PaymentYear = &month, &year
	}
	return n
}

func (s *Service) insert(ctx context.Context, repo *Repository, userID uuid.UUID, msg Message) (*Notification, error) {
	n := s.build(userID, msg)
	if err := repo.Create(ctx, n); err != nil {
		if n.Kind == KindPaymentReminder && database.IsUniqueViolation(err) {
			return nil, ErrReminderExists
		}
		return nil, err
	}
	return n, nil
}

// Create persists a notification for userID and publishes it. Only the
// persistence step can fail the call.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, msg Message) (*Notification, error) {
	n, err := s.insert(ctx, s.repo, userID, msg)
	if err != nil {
		return nil, err
	}
	s.Publish(ctx, n)
	return n, nil
}

// Stage persists a notification inside tx without publishing it. The caller
// must call Publish once tx has committed.
func (s *Service) Stage(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, msg Message) (*Notification, error) {
	return s.insert(ctx, s.repo.WithTx(tx), userID, msg)
}

// Publish pushes a stored notification and the owner's new unread count to
// live connections, then hands it to the sinks in the background. Failures
// are logged and never returned.
func (s *Service) Publish(ctx context.Context, n *Notification) {
	delivered := s.publisher.Push(n.UserID, hub.EventNotification, n.ToResponse())
	s.logger.Info("notification published",
		"notification_id", n.ID, "user_id", n.UserID, "type", n.Kind, "connections", delivered)

	s.pushUnreadCount(ctx, n.UserID)

	if len(s.sinks) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, sink := range s.sinks {
		s.wg.Add(1)
		go func(sink Sink) {
			defer s.wg.Done()
			if err := sink.Deliver(detached, n); err != nil {
				s.logger.Error("sink delivery failed",
					"sink", sink.Name(), "notification_id", n.ID, "user_id", n.UserID, "error", err)
			}
		}(sink)
	}
}

// Wait blocks until every in-flight sink delivery has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) pushUnreadCount(ctx context.Context, userID uuid.UUID) {
	count, err := s.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to compute unread count", "user_id", userID, "error", err)
		return
	}
	s.publisher.Push(userID, hub.EventUnreadCount, UnreadCountResponse{Count: count})
}

// GetByID retrieves a notification by its ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotificationNotFound
	}
	return n, nil
}

// List retrieves a page of notifications for a user
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByUserID(ctx, userID, perPage, offset, unreadOnly)
}

// ListUnread retrieves all unread notifications for a user
func (s *Service) ListUnread(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	return s.repo.ListUnread(ctx, userID)
}

// UnreadCount returns the count of unread notifications
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

// MarkAsRead marks a notification as read and pushes the new unread count
func (s *Service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotificationNotFound
	}
	if n.UserID != userID {
		return ErrNotRecipient
	}

	if !n.IsRead {
		if err := s.repo.MarkAsRead(ctx, id); err != nil {
			return err
		}
	}
	s.pushUnreadCount(ctx, userID)
	return nil
}

// MarkAllAsRead marks every notification of a user as read and pushes the
// new unread count
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.pushUnreadCount(ctx, userID)
	return n, nil
}

// HasReminder reports whether a payment reminder was already recorded for
// the user and period
func (s *Service) HasReminder(ctx context.Context, userID uuid.UUID, period billing.Period) (bool, error) {
	return s.repo.HasReminder(ctx, userID, period)
}
