package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thoriqulumar/kostan-be/internal/billing"
)

const notificationColumns = `id, user_id, type, title, message, is_read, payment_month, payment_year, created_at`

// Repository handles notification data persistence
type Repository struct {
	db sqlx.ExtContext
}

// NewRepository creates a new notification repository
func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository whose writes join tx
func (r *Repository) WithTx(tx *sqlx.Tx) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new notification into the database
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	query := r.db.Rebind(`
		INSERT INTO notifications (id, user_id, type, title, message, is_read, payment_month, payment_year, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Kind, n.Title, n.Message, n.IsRead, n.PaymentMonth, n.PaymentYear, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`)

	n := &Notification{}
	if err := sqlx.GetContext(ctx, r.db, n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// ListByUserID retrieves a page of a user's notifications, newest first
func (r *Repository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*Notification, int, error) {
	filter := ` WHERE user_id = ?`
	if unreadOnly {
		filter += ` AND is_read = FALSE`
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(`SELECT COUNT(*) FROM notifications`+filter), userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications` + filter +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`)

	notifications := []*Notification{}
	if err := sqlx.SelectContext(ctx, r.db, &notifications, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

// ListUnread retrieves every unread notification of a user, newest first
func (r *Repository) ListUnread(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	query := r.db.Rebind(`
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = ? AND is_read = FALSE
		ORDER BY created_at DESC
	`)

	notifications := []*Notification{}
	if err := sqlx.SelectContext(ctx, r.db, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list unread notifications: %w", err)
	}
	return notifications, nil
}

// MarkAsRead marks a notification as read
func (r *Repository) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	query := r.db.Rebind(`UPDATE notifications SET is_read = TRUE WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

// MarkAllAsRead marks all notifications of a user as read and returns how
// many changed
func (r *Repository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := r.db.Rebind(`UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE`)
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// GetUnreadCount returns the count of unread notifications for a user
func (r *Repository) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// HasReminder reports whether a payment reminder for period was already
// recorded for the user
func (r *Repository) HasReminder(ctx context.Context, userID uuid.UUID, period billing.Period) (bool, error) {
	var count int
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND type = ? AND payment_month = ? AND payment_year = ?
	`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, userID, KindPaymentReminder, int(period.Month), period.Year); err != nil {
		return false, fmt.Errorf("failed to check reminder: %w", err)
	}
	return count > 0, nil
}
