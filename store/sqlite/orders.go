package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/orders"
)

var _ orders.Store = (*Store)(nil)

// =============================================================================
// VEHICLES
// =============================================================================

// CreateVehicle inserts a vehicle. A duplicate plate is a Conflict.
func (s *Store) CreateVehicle(ctx context.Context, v orders.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowStamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, make, model, year, plate, owner_name, owner_phone, total_estimate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Make, v.Model, v.Year, v.Plate, v.OwnerName, v.OwnerPhone,
		v.TotalEstimate.String(), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ConflictError{Entity: "vehicle", Field: "plate", Value: v.Plate}
		}
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

// GetVehicle returns the vehicle with its line items.
func (s *Store) GetVehicle(ctx context.Context, id core.VehicleID) (*orders.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.getVehicleRow(ctx, id)
	if err != nil {
		return nil, err
	}
	v.LineItems, err = s.queryLineItems(ctx,
		"SELECT id, name, category, unit_price, quantity FROM vehicle_line_items WHERE vehicle_id = ? ORDER BY rowid",
		id)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVehicles returns all vehicles without their line items.
func (s *Store) ListVehicles(ctx context.Context) ([]orders.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, make, model, year, plate, owner_name, owner_phone, total_estimate, created_at, updated_at
		FROM vehicles ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []orders.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

// DeleteVehicle removes the vehicle; its line items cascade.
func (s *Store) DeleteVehicle(ctx context.Context, id core.VehicleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "vehicle", ID: string(id)}
	}
	return nil
}

// ReplaceVehicleLineItems swaps the line item list and persists the
// recomputed estimate in the same transaction.
func (s *Store) ReplaceVehicleLineItems(ctx context.Context, id core.VehicleID, items []orders.LineItem, totalEstimate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE vehicles SET total_estimate = ?, updated_at = ? WHERE id = ?",
		totalEstimate.String(), nowStamp(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "vehicle", ID: string(id)}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM vehicle_line_items WHERE vehicle_id = ?", id); err != nil {
		return err
	}
	for _, li := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vehicle_line_items (id, vehicle_id, name, category, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			li.ID, id, li.Name, li.Category, li.UnitPrice.String(), li.Quantity.String(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) getVehicleRow(ctx context.Context, id core.VehicleID) (*orders.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, make, model, year, plate, owner_name, owner_phone, total_estimate, created_at, updated_at
		FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "vehicle", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func scanVehicle(row rowScanner) (*orders.Vehicle, error) {
	var v orders.Vehicle
	var ownerName, ownerPhone sql.NullString
	var totalEstimate, createdAt, updatedAt string

	err := row.Scan(&v.ID, &v.Make, &v.Model, &v.Year, &v.Plate,
		&ownerName, &ownerPhone, &totalEstimate, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	v.OwnerName = ownerName.String
	v.OwnerPhone = ownerPhone.String
	v.TotalEstimate = parseDecimal(totalEstimate)
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}

// =============================================================================
// SERVICE ORDERS
// =============================================================================

// CreateOrder inserts a service order.
func (s *Store) CreateOrder(ctx context.Context, o orders.ServiceOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowStamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_orders (id, vehicle_id, status, total_price, rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.VehicleID, o.Status, o.TotalPrice.String(), o.RejectionReason, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert service order: %w", err)
	}
	return nil
}

// GetOrder returns the order with its line items and used part snapshots.
func (s *Store) GetOrder(ctx context.Context, id core.OrderID) (*orders.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getOrder(ctx, id)
}

func (s *Store) getOrder(ctx context.Context, id core.OrderID) (*orders.ServiceOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, vehicle_id, status, total_price, rejection_reason, created_at, updated_at
		FROM service_orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "service order", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return s.loadOrderChildren(ctx, o)
}

// ListOrdersByVehicle returns the vehicle's orders, newest first, with
// children loaded.
func (s *Store) ListOrdersByVehicle(ctx context.Context, vehicleID core.VehicleID) ([]orders.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_id, status, total_price, rejection_reason, created_at, updated_at
		FROM service_orders WHERE vehicle_id = ?
		ORDER BY created_at DESC, rowid DESC`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query service orders: %w", err)
	}
	defer rows.Close()

	var result []orders.ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if _, err := s.loadOrderChildren(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// LatestOrderByVehicle returns the most recently created order for the
// vehicle, or a NotFound error when the vehicle has none. Creation-time ties
// fall back to insertion order.
func (s *Store) LatestOrderByVehicle(ctx context.Context, vehicleID core.VehicleID) (*orders.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, vehicle_id, status, total_price, rejection_reason, created_at, updated_at
		FROM service_orders WHERE vehicle_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, vehicleID)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "service order", ID: "latest for vehicle " + string(vehicleID)}
	}
	if err != nil {
		return nil, err
	}
	return s.loadOrderChildren(ctx, o)
}

// ReplaceOrderLineItems swaps the order's line items and persists the
// recomputed total in the same transaction.
func (s *Store) ReplaceOrderLineItems(ctx context.Context, id core.OrderID, items []orders.LineItem, totalPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE service_orders SET total_price = ?, updated_at = ? WHERE id = ?",
		totalPrice.String(), nowStamp(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "service order", ID: string(id)}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_line_items WHERE order_id = ?", id); err != nil {
		return err
	}
	for _, li := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_line_items (id, order_id, name, category, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			li.ID, id, li.Name, li.Category, li.UnitPrice.String(), li.Quantity.String(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AppendUsedParts appends price snapshots and persists the recomputed total
// in the same transaction. Snapshots are never replaced or removed.
func (s *Store) AppendUsedParts(ctx context.Context, id core.OrderID, parts []orders.UsedSparePart, totalPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := nowStamp()
	res, err := tx.ExecContext(ctx,
		"UPDATE service_orders SET total_price = ?, updated_at = ? WHERE id = ?",
		totalPrice.String(), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "service order", ID: string(id)}
	}

	for _, up := range parts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_used_parts (id, order_id, part_id, part_name, quantity, unit_price, line_total, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			up.ID, id, up.PartID, up.PartName, up.Quantity,
			up.UnitPrice.String(), up.LineTotal.String(), now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetOrderStatus conditionally moves the order between statuses, writing the
// rejection reason. The WHERE clause re-checks the expected status so the
// decision and the write are one statement: a racing transition makes this
// a no-op, reported as false.
func (s *Store) SetOrderStatus(ctx context.Context, id core.OrderID, from, to orders.OrderStatus, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE service_orders SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, reason, nowStamp(), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a missing order from a lost race.
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM service_orders WHERE id = ?", id).Scan(&exists)
		if err != nil {
			return false, err
		}
		if exists == 0 {
			return false, &core.NotFoundError{Entity: "service order", ID: string(id)}
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) loadOrderChildren(ctx context.Context, o *orders.ServiceOrder) (*orders.ServiceOrder, error) {
	var err error
	o.LineItems, err = s.queryLineItems(ctx,
		"SELECT id, name, category, unit_price, quantity FROM order_line_items WHERE order_id = ? ORDER BY rowid",
		o.ID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, part_id, part_name, quantity, unit_price, line_total
		FROM order_used_parts WHERE order_id = ? ORDER BY rowid`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	o.UsedParts = nil
	for rows.Next() {
		var up orders.UsedSparePart
		var unitPrice, lineTotal string
		if err := rows.Scan(&up.ID, &up.PartID, &up.PartName, &up.Quantity, &unitPrice, &lineTotal); err != nil {
			return nil, err
		}
		up.UnitPrice = parseDecimal(unitPrice)
		up.LineTotal = parseDecimal(lineTotal)
		o.UsedParts = append(o.UsedParts, up)
	}
	return o, rows.Err()
}

func (s *Store) queryLineItems(ctx context.Context, query string, args ...any) ([]orders.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	var items []orders.LineItem
	for rows.Next() {
		var li orders.LineItem
		var unitPrice, quantity string
		if err := rows.Scan(&li.ID, &li.Name, &li.Category, &unitPrice, &quantity); err != nil {
			return nil, err
		}
		li.UnitPrice = parseDecimal(unitPrice)
		li.Quantity = parseDecimal(quantity)
		items = append(items, li)
	}
	return items, rows.Err()
}

func scanOrder(row rowScanner) (*orders.ServiceOrder, error) {
	var o orders.ServiceOrder
	var totalPrice, createdAt, updatedAt string

	err := row.Scan(&o.ID, &o.VehicleID, &o.Status, &totalPrice,
		&o.RejectionReason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	o.TotalPrice = parseDecimal(totalPrice)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}
