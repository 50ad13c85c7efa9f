/*
Package earnings credits technician balances when repair work is approved.

PURPOSE:
  A user's earnings balance only ever increases through approvals. The
  atomic flip-and-credit itself lives in the task store (one transaction per
  task); the reconciler is the contract for everything else that touches the
  balance:

  Credit:    direct non-negative increment (the approval transition's
             semantics, invoked exactly once per approval)
  Recompute: drift-repair tool. Sums payment over the assignee's currently
             approved tasks and overwrites the balance. Not part of normal
             operation.

  No decrement operation exists.
*/
package earnings

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
)

// UserStore is the persistence contract for user balances.
type UserStore interface {
	GetUser(ctx context.Context, id core.UserID) (*core.User, error)
	CreateUser(ctx context.Context, u core.User) error
	ListUsers(ctx context.Context) ([]core.User, error)

	// CreditEarnings atomically increases the user's balance.
	CreditEarnings(ctx context.Context, id core.UserID, amount decimal.Decimal) error

	// RecomputeEarnings overwrites the balance with the sum of payment over
	// the user's currently approved tasks and returns the new balance.
	RecomputeEarnings(ctx context.Context, id core.UserID) (decimal.Decimal, error)
}

// Reconciler posts technician earnings.
type Reconciler struct {
	Users UserStore
}

func NewReconciler(users UserStore) *Reconciler {
	return &Reconciler{Users: users}
}

// Credit atomically increases the user's earnings balance. Idempotency is
// the caller's responsibility.
func (r *Reconciler) Credit(ctx context.Context, userID core.UserID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &core.ValidationError{Field: "amount", Message: "must not be negative"}
	}
	return r.Users.CreditEarnings(ctx, userID, amount)
}

// Recompute rebuilds the balance from approved tasks. Used for drift
// correction, not normal operation.
func (r *Reconciler) Recompute(ctx context.Context, userID core.UserID) (decimal.Decimal, error) {
	return r.Users.RecomputeEarnings(ctx, userID)
}
