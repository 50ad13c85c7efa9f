// Package orders owns a vehicle's repair intake and its service orders:
// the priced line items, the spare parts consumed from inventory, and the
// order state machine that carries a job from pricing to payment.
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
)

// =============================================================================
// LINE ITEMS
// =============================================================================

type LineItemCategory string

const (
	CategoryPart     LineItemCategory = "part"
	CategoryMaterial LineItemCategory = "material"
	CategoryLabor    LineItemCategory = "labor"
)

// LineItem is an ad-hoc priced entry attached to a vehicle or a service
// order: parts, materials, or labor.
type LineItem struct {
	ID        string
	Name      string
	Category  LineItemCategory
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

// Total is unit price times quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(li.Quantity)
}

// SumLineItems is the derived total over a line item list. Derived totals
// are cached on the parent but always recomputable from here.
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Total())
	}
	return total
}

// =============================================================================
// VEHICLE
// =============================================================================

// Vehicle is a customer vehicle under intake. TotalEstimate is recomputed on
// every line item mutation. Deleting a vehicle cascades nothing beyond its
// own line items; callers clean up dependents.
type Vehicle struct {
	ID            core.VehicleID
	Make          string
	Model         string
	Year          int
	Plate         string // unique
	OwnerName     string
	OwnerPhone    string
	LineItems     []LineItem
	TotalEstimate decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// =============================================================================
// SERVICE ORDER
// =============================================================================

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusInProgress OrderStatus = "in-progress"
	StatusReady      OrderStatus = "ready-for-delivery"
	StatusCompleted  OrderStatus = "completed"
	StatusRejected   OrderStatus = "rejected"
)

// Editable reports whether line items and used parts may still be mutated.
func (s OrderStatus) Editable() bool {
	return s == StatusPending || s == StatusInProgress
}

// UsedSparePart is a snapshot of quantity and price taken from inventory at
// consumption time. The unit price is frozen here even if the catalog price
// changes later.
type UsedSparePart struct {
	ID        string
	PartID    core.PartID
	PartName  string
	Quantity  int64
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// SumUsedParts is the derived total over used part snapshots.
func SumUsedParts(parts []UsedSparePart) decimal.Decimal {
	total := decimal.Zero
	for _, up := range parts {
		total = total.Add(up.LineTotal)
	}
	return total
}

// ServiceOrder is a vehicle's priced, trackable repair job. TotalPrice is
// the sum of line items plus used parts, recomputed on every mutation.
// Once parts have been consumed the order is never hard-deleted, and stock
// is not restored by downward edits.
type ServiceOrder struct {
	ID              core.OrderID
	VehicleID       core.VehicleID
	Status          OrderStatus
	LineItems       []LineItem
	UsedParts       []UsedSparePart
	TotalPrice      decimal.Decimal
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Total recomputes the order's derived total from its children.
func (o *ServiceOrder) Total() decimal.Decimal {
	return SumLineItems(o.LineItems).Add(SumUsedParts(o.UsedParts))
}
