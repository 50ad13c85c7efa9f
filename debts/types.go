// Package debts owns receivable and payable ledger entries. A debt's status
// and paid amount are always recomputed from its append-only payment
// history, never set directly.
package debts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
)

type Kind string

const (
	KindReceivable Kind = "receivable"
	KindPayable    Kind = "payable"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Payment is one entry of a debt's append-only payment history.
type Payment struct {
	ID     string
	Amount decimal.Decimal
	PaidAt time.Time
	Note   string
}

// Debt is a receivable or payable ledger entry. PaidAmount and Status are
// cached derivations of Payments; Recompute is the only writer.
type Debt struct {
	ID                core.DebtID
	Kind              Kind
	CounterpartyName  string
	CounterpartyPhone string
	VehicleID         core.VehicleID // optional link
	Amount            decimal.Decimal
	PaidAmount        decimal.Decimal
	Status            Status
	DueDate           time.Time
	Note              string
	Payments          []Payment
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Recompute derives PaidAmount and Status from the payment history. It runs
// on every persist, including creation (empty history yields pending).
func (d *Debt) Recompute() {
	paid := decimal.Zero
	for _, p := range d.Payments {
		paid = paid.Add(p.Amount)
	}
	d.PaidAmount = paid
	switch {
	case paid.GreaterThanOrEqual(d.Amount) && paid.IsPositive():
		d.Status = StatusPaid
	case paid.IsPositive():
		d.Status = StatusPartial
	default:
		d.Status = StatusPending
	}
}

// Urgency classifies how close a debt's due date is, for caller display.
type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"
	UrgencyToday    Urgency = "today"
	UrgencyTomorrow Urgency = "tomorrow"
	UrgencyUpcoming Urgency = "upcoming"
)

// UpcomingDebt is a read-only view of a non-paid debt whose due date is
// overdue, today, or within the requested window.
type UpcomingDebt struct {
	Debt          Debt
	DaysRemaining int
	Urgency       Urgency
}

// Classify computes days remaining and urgency relative to now. Pure.
func Classify(due, now time.Time) (int, Urgency) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	days := int(dueDay.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return days, UrgencyOverdue
	case days == 0:
		return days, UrgencyToday
	case days == 1:
		return days, UrgencyTomorrow
	default:
		return days, UrgencyUpcoming
	}
}
