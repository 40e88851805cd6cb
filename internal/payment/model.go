package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thoriqulumar/kostan-be/internal/billing"
)

// Status represents the review state of a receipt
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Receipt is a tenant's proof of payment for one billing month. Approved is
// terminal; a rejected period is retried with a new receipt.
type Receipt struct {
	ID                 uuid.UUID       `db:"id"`
	UserID             uuid.UUID       `db:"user_id"`
	RoomID             uuid.UUID       `db:"room_id"`
	PaymentMonth       int             `db:"payment_month"`
	PaymentYear        int             `db:"payment_year"`
	Amount             decimal.Decimal `db:"amount"`
	ReceiptFilePath    string          `db:"receipt_file_path"`
	Status             Status          `db:"status"`
	Description        *string         `db:"description"`
	RejectionReason    *string         `db:"rejection_reason"`
	ConfirmedByAdminID *uuid.UUID      `db:"confirmed_by_admin_id"`
	ConfirmedAt        *time.Time      `db:"confirmed_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// Period returns the billing month the receipt pays for
func (r *Receipt) Period() billing.Period {
	return billing.Period{Month: time.Month(r.PaymentMonth), Year: r.PaymentYear}
}

// Income is the ledger entry written when a receipt is approved
type Income struct {
	ID                 uuid.UUID       `db:"id"`
	PaymentReceiptID   uuid.UUID       `db:"payment_receipt_id"`
	RoomID             uuid.UUID       `db:"room_id"`
	UserID             uuid.UUID       `db:"user_id"`
	Amount             decimal.Decimal `db:"amount"`
	PaymentMonth       int             `db:"payment_month"`
	PaymentYear        int             `db:"payment_year"`
	Description        string          `db:"description"`
	ConfirmedByAdminID uuid.UUID       `db:"confirmed_by_admin_id"`
	CreatedAt          time.Time       `db:"created_at"`

	// Populated via JOIN
	RoomName string `db:"room_name"`
	UserName string `db:"user_name"`
}

// MonthlyIncome is the income total of one billing month
type MonthlyIncome struct {
	Month int             `db:"payment_month"`
	Year  int             `db:"payment_year"`
	Total decimal.Decimal `db:"total"`
}

// IncomeSummary totals the ledger, newest month first
type IncomeSummary struct {
	Total   decimal.Decimal
	ByMonth []MonthlyIncome
}
