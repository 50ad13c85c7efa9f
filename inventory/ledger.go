/*
ledger.go - Inventory ledger over the part store

PURPOSE:
  Validates and orchestrates stock mutations. The hard invariants live here
  and in the store's conditional update:

  1. On-hand quantity never goes negative. A consume that would violate this
     fails with InsufficientStock and leaves the part unchanged.
  2. UsageCount only increases, and only through consumption. Restocks and
     direct stock edits bypass usage counting.
  3. A multi-part consume is all-or-nothing: a shortfall on any part rolls
     back every decrement in the batch.

CONCURRENCY:
  The store must implement ConsumeParts as a check-and-decrement against the
  CURRENT quantity, not a previously read snapshot. The SQLite store does
  this with a conditional UPDATE (quantity >= requested) inside one
  transaction, so two racing consumers can never both pass validation
  against a stale count.
*/
package inventory

import (
	"context"
	"strings"

	"github.com/warp/workshop-engine/core"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence contract for spare parts.
type Store interface {
	// GetPart returns the part or a NotFound error.
	GetPart(ctx context.Context, id core.PartID) (*SparePart, error)

	// ListParts returns the catalog, optionally restricted to active parts.
	ListParts(ctx context.Context, activeOnly bool) ([]SparePart, error)

	// CreatePart inserts a new part. Returns Conflict if an active part with
	// the same case-insensitive name exists.
	CreatePart(ctx context.Context, p SparePart) error

	// UpdatePart overwrites mutable fields (name, price, quantity, supplier).
	// Direct quantity edits through here bypass usage counting.
	UpdatePart(ctx context.Context, p SparePart) error

	// DeactivatePart soft-deletes a part.
	DeactivatePart(ctx context.Context, id core.PartID) error

	// ConsumeParts atomically decrements quantity and increments usage_count
	// for every consumption, all-or-nothing. Fails with NotFound for an
	// unknown part and InsufficientStock for a shortfall, in both cases
	// leaving every part unchanged.
	ConsumeParts(ctx context.Context, consumptions []Consumption) error

	// RestockPart increases on-hand quantity without touching usage_count.
	RestockPart(ctx context.Context, id core.PartID, qty int64) error

	// SearchParts is a read-only ranked lookup over active parts:
	// usage_count descending, then name.
	SearchParts(ctx context.Context, term string, limit int) ([]SparePart, error)
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger validates inputs and delegates the atomic mutation to the store.
type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

// Consume decrements on-hand quantity by qty and increments usage count by
// the same amount, atomically against the current stock level.
func (l *Ledger) Consume(ctx context.Context, partID core.PartID, qty int64) error {
	return l.ConsumeBatch(ctx, []Consumption{{PartID: partID, Quantity: qty}})
}

// ConsumeBatch consumes several parts in one logical request. Each part is
// checked against its current quantity; any failure leaves every part in
// the batch untouched.
func (l *Ledger) ConsumeBatch(ctx context.Context, consumptions []Consumption) error {
	if len(consumptions) == 0 {
		return nil
	}
	for _, c := range consumptions {
		if c.Quantity <= 0 {
			return &core.ValidationError{Field: "quantity", Message: "must be positive"}
		}
	}
	return l.Store.ConsumeParts(ctx, consumptions)
}

// Restock increases on-hand quantity. Bypasses usage counting.
func (l *Ledger) Restock(ctx context.Context, partID core.PartID, qty int64) (*SparePart, error) {
	if qty <= 0 {
		return nil, &core.ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if err := l.Store.RestockPart(ctx, partID, qty); err != nil {
		return nil, err
	}
	return l.Store.GetPart(ctx, partID)
}

// Search is a read-only ranked lookup. No side effects.
func (l *Ledger) Search(ctx context.Context, term string, limit int) ([]SparePart, error) {
	if limit <= 0 {
		limit = 20
	}
	return l.Store.SearchParts(ctx, strings.TrimSpace(term), limit)
}

// Get returns a single part.
func (l *Ledger) Get(ctx context.Context, partID core.PartID) (*SparePart, error) {
	return l.Store.GetPart(ctx, partID)
}

// List returns the catalog.
func (l *Ledger) List(ctx context.Context, activeOnly bool) ([]SparePart, error) {
	return l.Store.ListParts(ctx, activeOnly)
}

// Create validates and inserts a catalog entry.
func (l *Ledger) Create(ctx context.Context, p SparePart) (*SparePart, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, &core.ValidationError{Field: "name", Message: "required"}
	}
	if p.Quantity < 0 {
		return nil, &core.ValidationError{Field: "quantity", Message: "must not be negative"}
	}
	if p.UnitPrice.IsNegative() {
		return nil, &core.ValidationError{Field: "unit_price", Message: "must not be negative"}
	}
	p.Active = true
	p.UsageCount = 0
	if err := l.Store.CreatePart(ctx, p); err != nil {
		return nil, err
	}
	return l.Store.GetPart(ctx, p.ID)
}

// Update overwrites mutable fields. A direct quantity edit is a manual stock
// correction and deliberately bypasses the usage counter.
func (l *Ledger) Update(ctx context.Context, p SparePart) (*SparePart, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, &core.ValidationError{Field: "name", Message: "required"}
	}
	if p.Quantity < 0 {
		return nil, &core.ValidationError{Field: "quantity", Message: "must not be negative"}
	}
	if p.UnitPrice.IsNegative() {
		return nil, &core.ValidationError{Field: "unit_price", Message: "must not be negative"}
	}
	if err := l.Store.UpdatePart(ctx, p); err != nil {
		return nil, err
	}
	return l.Store.GetPart(ctx, p.ID)
}

// Deactivate soft-deletes a part. Stock already consumed is not restored.
func (l *Ledger) Deactivate(ctx context.Context, partID core.PartID) error {
	return l.Store.DeactivatePart(ctx, partID)
}
