package payment

import "github.com/shopspring/decimal"

// UploadReceiptRequest carries the form fields of a receipt upload
type UploadReceiptRequest struct {
	PaymentMonth int
	PaymentYear  int
	Amount       decimal.Decimal
	Description  string
}

// RejectRequest represents the request to reject a receipt
type RejectRequest struct {
	RejectionReason string `json:"rejection_reason" validate:"notblank"`
}

// ReceiptResponse represents the response for a receipt
type ReceiptResponse struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	RoomID             string          `json:"room_id"`
	PaymentMonth       int             `json:"payment_month"`
	PaymentYear        int             `json:"payment_year"`
	Amount             decimal.Decimal `json:"amount"`
	Status             Status          `json:"status"`
	Description        *string         `json:"description,omitempty"`
	RejectionReason    *string         `json:"rejection_reason,omitempty"`
	ConfirmedByAdminID *string         `json:"confirmed_by_admin_id,omitempty"`
	ConfirmedAt        *string         `json:"confirmed_at,omitempty"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
}

// IncomeResponse represents one ledger entry
type IncomeResponse struct {
	ID               string          `json:"id"`
	PaymentReceiptID string          `json:"payment_receipt_id"`
	RoomID           string          `json:"room_id"`
	RoomName         string          `json:"room_name"`
	UserID           string          `json:"user_id"`
	UserName         string          `json:"user_name"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentMonth     int             `json:"payment_month"`
	PaymentYear      int             `json:"payment_year"`
	Description      string          `json:"description"`
	CreatedAt        string          `json:"created_at"`
}

// MonthlyIncomeResponse is one row of the income summary
type MonthlyIncomeResponse struct {
	Month int             `json:"month"`
	Year  int             `json:"year"`
	Total decimal.Decimal `json:"total"`
}

// IncomeSummaryResponse represents the income summary
type IncomeSummaryResponse struct {
	TotalIncome   decimal.Decimal          `json:"total_income"`
	IncomeByMonth []*MonthlyIncomeResponse `json:"income_by_month"`
}

const timeLayout = "2006-01-02T15:04:05Z"

// ToResponse converts a Receipt model to a ReceiptResponse DTO
func (r *Receipt) ToResponse() *ReceiptResponse {
	resp := &ReceiptResponse{
		ID:              r.ID.String(),
		UserID:          r.UserID.String(),
		RoomID:          r.RoomID.String(),
		PaymentMonth:    r.PaymentMonth,
		PaymentYear:     r.PaymentYear,
		Amount:          r.Amount,
		Status:          r.Status,
		Description:     r.Description,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:       r.UpdatedAt.UTC().Format(timeLayout),
	}
	if r.ConfirmedByAdminID != nil {
		id := r.ConfirmedByAdminID.String()
		resp.ConfirmedByAdminID = &id
	}
	if r.ConfirmedAt != nil {
		at := r.ConfirmedAt.UTC().Format(timeLayout)
		resp.ConfirmedAt = &at
	}
	return resp
}

// ToResponse converts an Income model to an IncomeResponse DTO
func (i *Income) ToResponse() *IncomeResponse {
	return &IncomeResponse{
		ID:               i.ID.String(),
		PaymentReceiptID: i.PaymentReceiptID.String(),
		RoomID:           i.RoomID.String(),
		RoomName:         i.RoomName,
		UserID:           i.UserID.String(),
		UserName:         i.UserName,
		Amount:           i.Amount,
		PaymentMonth:     i.PaymentMonth,
		PaymentYear:      i.PaymentYear,
		Description:      i.Description,
		CreatedAt:        i.CreatedAt.UTC().Format(timeLayout),
	}
}

// ToResponse converts an IncomeSummary to its DTO
func (s *IncomeSummary) ToResponse() *IncomeSummaryResponse {
	resp := &IncomeSummaryResponse{
		TotalIncome:   s.Total,
		IncomeByMonth: make([]*MonthlyIncomeResponse, len(s.ByMonth)),
	}
	for i, m := range s.ByMonth {
		resp.IncomeByMonth[i] = &MonthlyIncomeResponse{Month: m.Month, Year: m.Year, Total: m.Total}
	}
	return resp
}

func toReceiptResponses(receipts []*Receipt) []*ReceiptResponse {
	out := make([]*ReceiptResponse, len(receipts))
	for i, r := range receipts {
		out[i] = r.ToResponse()
	}
	return out
}
