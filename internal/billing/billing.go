package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"
)

// MinYear is the earliest billing year accepted
const MinYear = 2020

var (
	ErrInvalidMonth  = errors.New("payment month must be between 1 and 12")
	ErrInvalidYear   = fmt.Errorf("payment year must be %d or later", MinYear)
	ErrInvalidAmount = errors.New("amount must be greater than zero")
)

// Period identifies a billing month
type Period struct {
	Month time.Month `json:"month"`
	Year  int        `json:"year"`
}

// NewPeriod builds a validated Period from raw month and year values
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: time.Month(month), Year: year}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the billing period containing t
func PeriodOf(t time.Time) Period {
	return Period{Month: t.Month(), Year: t.Year()}
}

// Validate checks the month and year ranges
func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return ErrInvalidMonth
	}
	if p.Year < MinYear {
		return ErrInvalidYear
	}
	return nil
}

// String renders the period as "October 2025"
func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

// Indonesian renders the period with the Indonesian month name: "Oktober 2025"
func (p Period) Indonesian() string {
	return fmt.Sprintf("%s %d", IndonesianMonth(p.Month), p.Year)
}

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// IndonesianMonth returns the Indonesian name of m
func IndonesianMonth(m time.Month) string {
	if m < time.January || m > time.December {
		return m.String()
	}
	return indonesianMonths[m-1]
}

// IsZero reports whether the period is unset
func (p Period) IsZero() bool {
	return p.Month == 0 && p.Year == 0
}

// ValidateAmount rejects zero and negative amounts
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

var rupiah = message.NewPrinter(language.Indonesian)

// FormatRupiah formats an amount the way Indonesian invoices do: "Rp 1.500.000".
// Fractional rupiah are dropped.
func FormatRupiah(amount decimal.Decimal) string {
	return rupiah.Sprintf("Rp %d", amount.IntPart())
}

// CleanText trims user supplied text and normalizes it to NFC so that
// visually identical input is stored identically.
func CleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
