// Package inventory owns spare-part stock counts and usage counters and
// exposes the atomic reserve/consume operations every other component goes
// through. Consumption is validated against the current stock level in the
// same operation that decrements it; see Ledger.Consume.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
)

// SparePart is a catalog entry. Quantity is the on-hand count; UsageCount is
// a monotonic usage-frequency signal for ranking, not an inventory quantity.
// Name is soft-unique, case-insensitive, among active parts.
type SparePart struct {
	ID         core.PartID
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int64
	UsageCount int64
	Supplier   string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Consumption is one part's share of a consume request.
type Consumption struct {
	PartID   core.PartID
	Quantity int64
}
