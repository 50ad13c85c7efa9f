package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/debts"
)

var _ debts.Store = (*Store)(nil)

const debtColumns = `id, kind, counterparty_name, counterparty_phone, vehicle_id,
	amount, paid_amount, status, due_date, note, created_at, updated_at`

// GetDebt returns the debt with its full payment history.
func (s *Store) GetDebt(ctx context.Context, id core.DebtID) (*debts.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getDebt(ctx, id)
}

func (s *Store) getDebt(ctx context.Context, id core.DebtID) (*debts.Debt, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+debtColumns+" FROM debts WHERE id = ?", id)
	d, err := scanDebt(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "debt", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	d.Payments, err = s.queryPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDebt inserts a debt with an empty payment history.
func (s *Store) CreateDebt(ctx context.Context, d debts.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowStamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debts (id, kind, counterparty_name, counterparty_phone, vehicle_id,
			amount, paid_amount, status, due_date, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Kind, d.CounterpartyName, d.CounterpartyPhone, d.VehicleID,
		d.Amount.String(), d.PaidAmount.String(), d.Status,
		d.DueDate.UTC().Format(time.RFC3339), d.Note, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert debt: %w", err)
	}
	return nil
}

// ListDebts returns all debts with their payment histories, due soonest first.
func (s *Store) ListDebts(ctx context.Context) ([]debts.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDebts(ctx,
		"SELECT "+debtColumns+" FROM debts ORDER BY due_date, rowid")
}

// AppendPayment appends to the payment history and persists the recomputed
// paid amount and status in the same transaction, so the cached columns can
// never drift from the history they summarize.
func (s *Store) AppendPayment(ctx context.Context, id core.DebtID, p debts.Payment) (*debts.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.getDebt(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO debt_payments (id, debt_id, amount, paid_at, note)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, id, p.Amount.String(), p.PaidAt.UTC().Format(time.RFC3339), p.Note,
	); err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	d.Payments = append(d.Payments, p)
	d.Recompute()

	if _, err := tx.ExecContext(ctx, `
		UPDATE debts SET paid_amount = ?, status = ?, updated_at = ? WHERE id = ?`,
		d.PaidAmount.String(), d.Status, nowStamp(), id,
	); err != nil {
		return nil, fmt.Errorf("failed to update debt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.getDebt(ctx, id)
}

// ListUnpaidDueBy returns every non-paid debt with a due date on or before
// the given day, including overdue ones, with payment histories loaded.
func (s *Store) ListUnpaidDueBy(ctx context.Context, by time.Time) ([]debts.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDebts(ctx, `
		SELECT `+debtColumns+` FROM debts
		WHERE status != ? AND DATE(due_date) <= DATE(?)
		ORDER BY due_date, rowid`,
		debts.StatusPaid, by.UTC().Format(time.RFC3339))
}

func (s *Store) queryDebts(ctx context.Context, query string, args ...any) ([]debts.Debt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query debts: %w", err)
	}
	defer rows.Close()

	var result []debts.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Payments, err = s.queryPayments(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) queryPayments(ctx context.Context, id core.DebtID) ([]debts.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, amount, paid_at, note FROM debt_payments WHERE debt_id = ? ORDER BY rowid",
		id)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []debts.Payment
	for rows.Next() {
		var p debts.Payment
		var amount, paidAt string
		if err := rows.Scan(&p.ID, &amount, &paidAt, &p.Note); err != nil {
			return nil, err
		}
		p.Amount = parseDecimal(amount)
		p.PaidAt = parseTime(paidAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanDebt(row rowScanner) (*debts.Debt, error) {
	var d debts.Debt
	var amount, paidAmount, dueDate, createdAt, updatedAt string

	err := row.Scan(&d.ID, &d.Kind, &d.CounterpartyName, &d.CounterpartyPhone,
		&d.VehicleID, &amount, &paidAmount, &d.Status, &dueDate, &d.Note,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.Amount = parseDecimal(amount)
	d.PaidAmount = parseDecimal(paidAmount)
	d.DueDate = parseTime(dueDate)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}
