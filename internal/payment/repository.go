package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thoriqulumar/kostan-be/internal/billing"
)

const receiptColumns = `id, user_id, room_id, payment_month, payment_year, amount, receipt_file_path, status,
	description, rejection_reason, confirmed_by_admin_id, confirmed_at, created_at, updated_at`

// Repository handles payment receipt persistence
type Repository struct {
	db sqlx.ExtContext
}

// NewRepository creates a new payment repository
func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository whose statements join tx
func (r *Repository) WithTx(tx *sqlx.Tx) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new receipt
func (r *Repository) Create(ctx context.Context, rc *Receipt) error {
	query := r.db.Rebind(`
		INSERT INTO payment_receipts (id, user_id, room_id, payment_month, payment_year, amount,
			receipt_file_path, status, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		rc.ID, rc.UserID, rc.RoomID, rc.PaymentMonth, rc.PaymentYear, rc.Amount,
		rc.ReceiptFilePath, rc.Status, rc.Description, rc.CreatedAt, rc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment receipt: %w", err)
	}
	return nil
}

// GetByID retrieves a receipt by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	query := r.db.Rebind(`SELECT ` + receiptColumns + ` FROM payment_receipts WHERE id = ?`)

	rc := &Receipt{}
	if err := sqlx.GetContext(ctx, r.db, rc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment receipt: %w", err)
	}
	return rc, nil
}

func (r *Repository) list(ctx context.Context, where, order string, args ...any) ([]*Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM payment_receipts`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY ` + order

	receipts := []*Receipt{}
	if err := sqlx.SelectContext(ctx, r.db, &receipts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list payment receipts: %w", err)
	}
	return receipts, nil
}

// ListByUserID retrieves a tenant's receipts, newest period first
func (r *Repository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*Receipt, error) {
	return r.list(ctx, `user_id = ?`, `payment_year DESC, payment_month DESC, created_at DESC`, userID)
}

// ListByStatus retrieves receipts in the given status, newest first
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]*Receipt, error) {
	return r.list(ctx, `status = ?`, `created_at DESC`, status)
}

// ListAll retrieves every receipt, newest first
func (r *Repository) ListAll(ctx context.Context) ([]*Receipt, error) {
	return r.list(ctx, ``, `created_at DESC`)
}

// ListByRoomID retrieves the receipts of a room, newest first. A non-nil
// userID restricts the result to that tenant's receipts.
func (r *Repository) ListByRoomID(ctx context.Context, roomID uuid.UUID, userID *uuid.UUID) ([]*Receipt, error) {
	if userID != nil {
		return r.list(ctx, `room_id = ? AND user_id = ?`, `created_at DESC`, roomID, *userID)
	}
	return r.list(ctx, `room_id = ?`, `created_at DESC`, roomID)
}

// HasApproved reports whether the tenant already has an approved receipt for
// the room and period
func (r *Repository) HasApproved(ctx context.Context, userID, roomID uuid.UUID, period billing.Period) (bool, error) {
	var count int
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM payment_receipts
		WHERE user_id = ? AND room_id = ? AND payment_month = ? AND payment_year = ? AND status = ?
	`)
	if err := sqlx.GetContext(ctx, r.db, &count, query,
		userID, roomID, int(period.Month), period.Year, StatusApproved); err != nil {
		return false, fmt.Errorf("failed to check approved receipt: %w", err)
	}
	return count > 0, nil
}

// Approve moves a pending receipt to approved. It reports false when the
// receipt was no longer pending.
func (r *Repository) Approve(ctx context.Context, id, adminID uuid.UUID, at time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE payment_receipts
		SET status = ?, confirmed_by_admin_id = ?, confirmed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	return r.exec(ctx, "approve payment receipt", query, StatusApproved, adminID, at, at, id, StatusPending)
}

// Reject moves a pending receipt to rejected. It reports false when the
// receipt was no longer pending.
func (r *Repository) Reject(ctx context.Context, id, adminID uuid.UUID, reason string, at time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE payment_receipts
		SET status = ?, rejection_reason = ?, confirmed_by_admin_id = ?, confirmed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	return r.exec(ctx, "reject payment receipt", query, StatusRejected, reason, adminID, at, at, id, StatusPending)
}

// Delete removes a receipt unless it is approved. It reports false when
// nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := r.db.Rebind(`DELETE FROM payment_receipts WHERE id = ? AND status <> ?`)
	return r.exec(ctx, "delete payment receipt", query, id, StatusApproved)
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
