/*
Package core provides the shared vocabulary of the workshop engine.

PURPOSE:
  Domain packages (inventory, orders, tasks, earnings, debts) all speak in
  terms of the types defined here: strongly-typed identifiers, actor roles,
  the error taxonomy, and the domain event bus.

DESIGN PRINCIPLES:
  1. Type Safety: Strong typing for IDs prevents mixing vehicle/order/task ids
  2. Precision: decimal.Decimal for every monetary value, never float64
  3. Derived values are cached, never authoritative - they are always
     recomputable from their children

SEE ALSO:
  - errors.go: Error taxonomy shared by all domain packages
  - events.go: Domain events and the in-process bus
*/
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type VehicleID string
type OrderID string
type TaskID string
type PartID string
type DebtID string
type UserID string

// =============================================================================
// MONEY
// =============================================================================

// MustDecimal parses a decimal literal, returning zero on malformed input.
// Intended for constants and tests, not for user input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// USERS AND ACTORS
// =============================================================================

type Role string

const (
	RoleTechnician Role = "technician"
	RoleStaff      Role = "staff"
	RoleMaster     Role = "master"
)

// Privileged reports whether the role may mutate entities it does not own.
func (r Role) Privileged() bool {
	return r == RoleStaff || r == RoleMaster
}

// User is a workshop member. Earnings is a running balance mutated only by
// the earnings reconciler; it only ever increases through task approvals.
type User struct {
	ID        UserID
	Name      string
	Role      Role
	Earnings  decimal.Decimal
	CreatedAt time.Time
}

// Actor identifies who is performing an operation. Authentication itself is
// an external collaborator; the engine only consumes the resolved identity.
type Actor struct {
	ID   UserID
	Role Role
}
