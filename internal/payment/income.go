package payment

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// IncomeRepository handles the income ledger
type IncomeRepository struct {
	db sqlx.ExtContext
}

// NewIncomeRepository creates a new income repository
func NewIncomeRepository(db sqlx.ExtContext) *IncomeRepository {
	return &IncomeRepository{db: db}
}

// WithTx returns a repository whose statements join tx
func (r *IncomeRepository) WithTx(tx *sqlx.Tx) *IncomeRepository {
	return &IncomeRepository{db: tx}
}

// Create appends a ledger entry. The receipt id is unique, so a second entry
// for the same receipt fails with a unique violation.
func (r *IncomeRepository) Create(ctx context.Context, inc *Income) error {
	query := r.db.Rebind(`
		INSERT INTO incomes (id, payment_receipt_id, room_id, user_id, amount, payment_month, payment_year,
			description, confirmed_by_admin_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		inc.ID, inc.PaymentReceiptID, inc.RoomID, inc.UserID, inc.Amount, inc.PaymentMonth, inc.PaymentYear,
		inc.Description, inc.ConfirmedByAdminID, inc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create income: %w", err)
	}
	return nil
}

// List retrieves ledger entries with room and tenant names, newest period
// first. A zero year lists every year.
func (r *IncomeRepository) List(ctx context.Context, year int) ([]*Income, error) {
	query := `
		SELECT i.id, i.payment_receipt_id, i.room_id, i.user_id, i.amount, i.payment_month, i.payment_year,
		       i.description, i.confirmed_by_admin_id, i.created_at,
		       COALESCE(rm.name, '') AS room_name, COALESCE(u.full_name, '') AS user_name
		FROM incomes i
		LEFT JOIN rooms rm ON rm.id = i.room_id
		LEFT JOIN users u ON u.id = i.user_id
	`
	var args []any
	if year != 0 {
		query += ` WHERE i.payment_year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY i.payment_year DESC, i.payment_month DESC, i.created_at DESC`

	incomes := []*Income{}
	if err := sqlx.SelectContext(ctx, r.db, &incomes, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list incomes: %w", err)
	}
	return incomes, nil
}

// Summary totals the ledger per billing month. A zero year covers every year.
func (r *IncomeRepository) Summary(ctx context.Context, year int) (*IncomeSummary, error) {
	query := `SELECT payment_month, payment_year, SUM(amount) AS total FROM incomes`
	var args []any
	if year != 0 {
		query += ` WHERE payment_year = ?`
		args = append(args, year)
	}
	query += ` GROUP BY payment_year, payment_month ORDER BY payment_year DESC, payment_month DESC`

	months := []MonthlyIncome{}
	if err := sqlx.SelectContext(ctx, r.db, &months, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to summarize incomes: %w", err)
	}

	total := decimal.Zero
	for _, m := range months {
		total = total.Add(m.Total)
	}
	return &IncomeSummary{Total: total, ByMonth: months}, nil
}
