package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/inventory"
)

var _ inventory.Store = (*Store)(nil)

const sparePartColumns = `id, name, unit_price, quantity, usage_count, supplier, active, created_at, updated_at`

// GetPart returns the part or a NotFound error. Deactivated parts are still
// readable; they only disappear from active listings and search.
func (s *Store) GetPart(ctx context.Context, id core.PartID) (*inventory.SparePart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+sparePartColumns+" FROM spare_parts WHERE id = ?", id)
	p, err := scanSparePart(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "spare part", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListParts returns the catalog, optionally restricted to active parts.
func (s *Store) ListParts(ctx context.Context, activeOnly bool) ([]inventory.SparePart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + sparePartColumns + " FROM spare_parts ORDER BY name"
	if activeOnly {
		query = "SELECT " + sparePartColumns + " FROM spare_parts WHERE active ORDER BY name"
	}
	return s.querySpareParts(ctx, query)
}

// CreatePart inserts a new catalog entry. An active part with the same
// case-insensitive name is a Conflict.
func (s *Store) CreatePart(ctx context.Context, p inventory.SparePart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowStamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spare_parts (id, name, unit_price, quantity, usage_count, supplier, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.UnitPrice.String(), p.Quantity, p.UsageCount,
		p.Supplier, p.Active, now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ConflictError{Entity: "spare part", Field: "name", Value: p.Name}
		}
		return fmt.Errorf("failed to insert spare part: %w", err)
	}
	return nil
}

// UpdatePart overwrites mutable fields. A direct quantity write here is a
// manual stock correction and does not touch usage_count.
func (s *Store) UpdatePart(ctx context.Context, p inventory.SparePart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE spare_parts
		SET name = ?, unit_price = ?, quantity = ?, supplier = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.UnitPrice.String(), p.Quantity, p.Supplier, nowStamp(), p.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ConflictError{Entity: "spare part", Field: "name", Value: p.Name}
		}
		return fmt.Errorf("failed to update spare part: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "spare part", ID: string(p.ID)}
	}
	return nil
}

// DeactivatePart soft-deletes a part, freeing its name for reuse.
func (s *Store) DeactivatePart(ctx context.Context, id core.PartID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE spare_parts SET active = FALSE, updated_at = ? WHERE id = ?",
		nowStamp(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate spare part: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "spare part", ID: string(id)}
	}
	return nil
}

// ConsumeParts atomically decrements quantity and increments usage_count for
// every consumption in the batch, all-or-nothing.
//
// The decrement is conditional on the CURRENT quantity (quantity >= requested
// in the same UPDATE), so two racing consumers can never both pass validation
// against a stale read. A zero-row update is diagnosed inside the transaction
// and rolls back every decrement already applied.
func (s *Store) ConsumeParts(ctx context.Context, consumptions []inventory.Consumption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := nowStamp()
	for _, c := range consumptions {
		res, err := tx.ExecContext(ctx, `
			UPDATE spare_parts
			SET quantity = quantity - ?, usage_count = usage_count + ?, updated_at = ?
			WHERE id = ? AND quantity >= ?`,
			c.Quantity, c.Quantity, now, c.PartID, c.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to consume part %s: %w", c.PartID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.diagnoseConsumeFailure(ctx, tx, c)
		}
	}

	return tx.Commit()
}

// diagnoseConsumeFailure distinguishes an unknown part from a shortfall.
func (s *Store) diagnoseConsumeFailure(ctx context.Context, tx *sql.Tx, c inventory.Consumption) error {
	var name string
	var available int64
	err := tx.QueryRowContext(ctx,
		"SELECT name, quantity FROM spare_parts WHERE id = ?", c.PartID,
	).Scan(&name, &available)
	if err == sql.ErrNoRows {
		return &core.NotFoundError{Entity: "spare part", ID: string(c.PartID)}
	}
	if err != nil {
		return err
	}
	return &core.InsufficientStockError{
		PartID: c.PartID, PartName: name,
		Available: available, Requested: c.Quantity,
	}
}

// RestockPart increases on-hand quantity without touching usage_count.
func (s *Store) RestockPart(ctx context.Context, id core.PartID, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE spare_parts SET quantity = quantity + ?, updated_at = ? WHERE id = ?",
		qty, nowStamp(), id)
	if err != nil {
		return fmt.Errorf("failed to restock part: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "spare part", ID: string(id)}
	}
	return nil
}

// SearchParts ranks active parts by usage frequency, then name. An empty
// term lists the most-used parts.
func (s *Store) SearchParts(ctx context.Context, term string, limit int) ([]inventory.SparePart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + sparePartColumns + ` FROM spare_parts
		WHERE active AND (? = '' OR name LIKE '%' || ? || '%')
		ORDER BY usage_count DESC, name
		LIMIT ?`
	return s.querySpareParts(ctx, query, term, term, limit)
}

func (s *Store) querySpareParts(ctx context.Context, query string, args ...any) ([]inventory.SparePart, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spare parts: %w", err)
	}
	defer rows.Close()

	var parts []inventory.SparePart
	for rows.Next() {
		p, err := scanSparePart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, *p)
	}
	return parts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSparePart(row rowScanner) (*inventory.SparePart, error) {
	var p inventory.SparePart
	var unitPrice, createdAt, updatedAt string
	var supplier sql.NullString

	err := row.Scan(&p.ID, &p.Name, &unitPrice, &p.Quantity, &p.UsageCount,
		&supplier, &p.Active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.UnitPrice = parseDecimal(unitPrice)
	p.Supplier = supplier.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
