/*
scheduler.go - Daily debt reminder job

PURPOSE:
  Once a day, reads the non-paid debts that are overdue or coming due within
  the configured window and pushes a DebtDue notification for each through
  the notification gateway.

DESIGN:
  - cron-driven (robfig/cron), schedule evaluated in UTC
  - Read-only: the job never mutates debt records
  - Notification failures are logged and swallowed; a broken gateway must
    never affect the ledger

CONFIGURATION:
  - Spec:       cron expression (default "0 8 * * *", daily at 08:00 UTC)
  - WithinDays: reminder window (default 7)

USAGE:
  scheduler := api.NewReminderScheduler(debtLedger, notifier)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - debts/ledger.go: Upcoming (the read this job performs)
  - core/notify.go: Notifier interface
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/debts"
)

// ReminderScheduler pushes daily due-debt notifications.
type ReminderScheduler struct {
	Debts      *debts.Ledger
	Notifier   core.Notifier
	Spec       string
	WithinDays int

	cron *cron.Cron
}

// NewReminderScheduler creates a scheduler with the default daily schedule.
func NewReminderScheduler(ledger *debts.Ledger, notifier core.Notifier) *ReminderScheduler {
	return &ReminderScheduler{
		Debts:      ledger,
		Notifier:   notifier,
		Spec:       "0 8 * * *",
		WithinDays: 7,
	}
}

// Start registers the cron entry and begins scheduling.
func (rs *ReminderScheduler) Start() error {
	rs.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := rs.cron.AddFunc(rs.Spec, rs.RunOnce); err != nil {
		return err
	}
	rs.cron.Start()
	zap.S().Infow("debt reminder scheduler started", "spec", rs.Spec, "within_days", rs.WithinDays)
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (rs *ReminderScheduler) Stop() {
	if rs.cron == nil {
		return
	}
	<-rs.cron.Stop().Done()
	zap.S().Infow("debt reminder scheduler stopped")
}

// RunOnce performs one reminder sweep. Exposed for manual triggering.
func (rs *ReminderScheduler) RunOnce() {
	ctx := context.Background()

	upcoming, err := rs.Debts.Upcoming(ctx, rs.WithinDays)
	if err != nil {
		zap.S().Errorw("debt reminder sweep failed", "error", err)
		return
	}

	for _, u := range upcoming {
		event := core.DebtDue{
			DebtID:        u.Debt.ID,
			Counterparty:  u.Debt.CounterpartyName,
			Amount:        u.Debt.Amount.Sub(u.Debt.PaidAmount),
			DaysRemaining: u.DaysRemaining,
			Urgency:       string(u.Urgency),
		}
		if err := rs.Notifier.Notify(ctx, event); err != nil {
			zap.S().Errorw("debt reminder delivery failed",
				"debt_id", u.Debt.ID, "error", err)
		}
	}

	zap.S().Infow("debt reminder sweep completed", "reminders", len(upcoming))
}
