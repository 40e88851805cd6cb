package notification

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thoriqulumar/kostan-be/internal/billing"
)

// Message is the content of a notification. The set of messages is closed:
// only the types in this file implement it.
type Message interface {
	Kind() Kind
	Title() string
	Body() string
	// BillingPeriod returns the period the message refers to, if any.
	BillingPeriod() (billing.Period, bool)

	message()
}

// PaymentReminder asks a tenant to pay the rent of the given period
type PaymentReminder struct {
	Room   string
	Period billing.Period
	Price  decimal.Decimal
}

func (PaymentReminder) Kind() Kind { return KindPaymentReminder }

func (m PaymentReminder) Title() string {
	return "Pengingat pembayaran kost " + billing.IndonesianMonth(m.Period.Month)
}

func (m PaymentReminder) Body() string {
	return fmt.Sprintf("Kamar: %s • Bulan: %s • Jumlah: %s",
		m.Room, m.Period.Indonesian(), billing.FormatRupiah(m.Price))
}

func (m PaymentReminder) BillingPeriod() (billing.Period, bool) { return m.Period, true }

func (PaymentReminder) message() {}

// PaymentApproved tells a tenant an uploaded receipt was accepted
type PaymentApproved struct {
	Room        string
	Period      billing.Period
	Amount      decimal.Decimal
	Description string
}

func (PaymentApproved) Kind() Kind { return KindPaymentApproved }

func (PaymentApproved) Title() string { return "Payment Approved" }

func (m PaymentApproved) Body() string {
	body := fmt.Sprintf("Your payment for %s has been approved. Room: %s • Amount: %s",
		m.Period, m.Room, billing.FormatRupiah(m.Amount))
	if m.Description != "" {
		body += " • Note: " + m.Description
	}
	return body
}

func (m PaymentApproved) BillingPeriod() (billing.Period, bool) { return m.Period, true }

func (PaymentApproved) message() {}

// PaymentRejected tells a tenant an uploaded receipt was refused
type PaymentRejected struct {
	Room   string
	Period billing.Period
	Reason string
}

func (PaymentRejected) Kind() Kind { return KindPaymentRejected }

func (PaymentRejected) Title() string { return "Payment Rejected" }

func (m PaymentRejected) Body() string {
	if m.Room == "" {
		return fmt.Sprintf("Your payment for %s has been rejected. Reason: %s", m.Period, m.Reason)
	}
	return fmt.Sprintf("Your payment for %s has been rejected. Room: %s • Reason: %s", m.Period, m.Room, m.Reason)
}

func (m PaymentRejected) BillingPeriod() (billing.Period, bool) { return m.Period, true }

func (PaymentRejected) message() {}

// TestMessage checks the live stream end to end. It carries no period and so
// never counts towards reminder idempotency.
type TestMessage struct {
	SentAt time.Time
}

func (TestMessage) Kind() Kind { return KindPaymentReminder }

func (TestMessage) Title() string { return "Test Notification" }

func (m TestMessage) Body() string {
	return "This is a test notification sent at " + m.SentAt.Format("15.04.05")
}

func (TestMessage) BillingPeriod() (billing.Period, bool) { return billing.Period{}, false }

func (TestMessage) message() {}
