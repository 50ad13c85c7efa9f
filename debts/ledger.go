/*
ledger.go - Debt ledger operations

PURPOSE:
  Appends payments and derives status. The payment history is append-only;
  paidAmount and status are recomputed from it inside the same transaction
  that appends (Store.AppendPayment), so the cached columns can never drift
  from the history they summarize.

  Upcoming is a pure read used by callers and by the daily reminder job:
  no mutation, failures surface to the caller (the reminder job logs and
  swallows them).
*/
package debts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence contract for debt records.
type Store interface {
	GetDebt(ctx context.Context, id core.DebtID) (*Debt, error)
	CreateDebt(ctx context.Context, d Debt) error
	ListDebts(ctx context.Context) ([]Debt, error)

	// AppendPayment appends to the payment history and persists the
	// recomputed paid amount and status in the same transaction.
	AppendPayment(ctx context.Context, id core.DebtID, p Payment) (*Debt, error)

	// ListUnpaidDueBy returns every non-paid debt with a due date on or
	// before the given day, including overdue ones.
	ListUnpaidDueBy(ctx context.Context, by time.Time) ([]Debt, error)
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

// Create validates and persists a new debt. An empty payment history
// derives the pending status.
func (l *Ledger) Create(ctx context.Context, d Debt) (*Debt, error) {
	if d.Kind != KindReceivable && d.Kind != KindPayable {
		return nil, &core.ValidationError{Field: "kind", Message: "must be receivable or payable"}
	}
	d.CounterpartyName = strings.TrimSpace(d.CounterpartyName)
	if d.CounterpartyName == "" {
		return nil, &core.ValidationError{Field: "counterparty_name", Message: "required"}
	}
	if !d.Amount.IsPositive() {
		return nil, &core.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if d.DueDate.IsZero() {
		return nil, &core.ValidationError{Field: "due_date", Message: "required"}
	}
	if d.ID == "" {
		d.ID = core.DebtID(uuid.NewString())
	}
	d.Payments = nil
	d.Recompute()
	if err := l.Store.CreateDebt(ctx, d); err != nil {
		return nil, err
	}
	return l.Store.GetDebt(ctx, d.ID)
}

func (l *Ledger) Get(ctx context.Context, id core.DebtID) (*Debt, error) {
	return l.Store.GetDebt(ctx, id)
}

func (l *Ledger) List(ctx context.Context) ([]Debt, error) {
	return l.Store.ListDebts(ctx)
}

// RecordPayment appends {amount, now, note} to the history, then recomputes
// paidAmount and status. Overpayment is allowed; status caps at paid.
func (l *Ledger) RecordPayment(ctx context.Context, id core.DebtID, amount decimal.Decimal, note string) (*Debt, error) {
	if !amount.IsPositive() {
		return nil, &core.ValidationError{Field: "amount", Message: "must be positive"}
	}
	p := Payment{
		ID:     uuid.NewString(),
		Amount: amount,
		PaidAt: time.Now().UTC(),
		Note:   strings.TrimSpace(note),
	}
	return l.Store.AppendPayment(ctx, id, p)
}

// Upcoming returns every non-paid debt due today, overdue, or within
// withinDays, classified for display. Pure read, no mutation.
func (l *Ledger) Upcoming(ctx context.Context, withinDays int) ([]UpcomingDebt, error) {
	if withinDays < 0 {
		return nil, &core.ValidationError{Field: "within_days", Message: "must not be negative"}
	}
	now := time.Now().UTC()
	by := now.AddDate(0, 0, withinDays)
	due, err := l.Store.ListUnpaidDueBy(ctx, by)
	if err != nil {
		return nil, err
	}
	out := make([]UpcomingDebt, 0, len(due))
	for _, d := range due {
		days, urgency := Classify(d.DueDate, now)
		out = append(out, UpcomingDebt{Debt: d, DaysRemaining: days, Urgency: urgency})
	}
	return out, nil
}
