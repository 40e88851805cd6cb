package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/thoriqulumar/kostan-be/internal/billing"
)

// Kind represents the type of notification
type Kind string

const (
	KindPaymentReminder Kind = "payment_reminder"
	KindPaymentApproved Kind = "payment_approved"
	KindPaymentRejected Kind = "payment_rejected"
)

// Notification represents a notification delivered to a user. Only IsRead
// changes after creation.
type Notification struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	Kind         Kind      `db:"type"`
	Title        string    `db:"title"`
	Message      string    `db:"message"`
	IsRead       bool      `db:"is_read"`
	PaymentMonth *int      `db:"payment_month"`
	PaymentYear  *int      `db:"payment_year"`
	CreatedAt    time.Time `db:"created_at"`
}

// Period returns the billing period the notification refers to, if any
func (n *Notification) Period() (billing.Period, bool) {
	if n.PaymentMonth == nil || n.PaymentYear == nil {
		return billing.Period{}, false
	}
	return billing.Period{Month: time.Month(*n.PaymentMonth), Year: *n.PaymentYear}, true
}
