/*
service.go - Vehicle intake and the service order state machine

PURPOSE:
  States: pending -> in-progress -> ready-for-delivery -> {completed,
  rejected}, plus rejected -> in-progress (restart). ready-for-delivery is
  only ever entered by the aggregator (see aggregator.go), never by a
  direct call.

TRANSITIONS AND SIDE EFFECTS:
  Approve:  ready-for-delivery -> completed. Every task of the vehicle
            currently in completed status is approved and its payment
            credited - a per-task saga, each flip+credit in one database
            transaction, resumable without double-crediting.
  Reject:   ready-for-delivery -> rejected, with a reason (defaulted when
            omitted). Completed tasks move to rejected with the same reason.
  Restart:  rejected -> in-progress, clearing the reason. Rejected tasks
            move back to in-progress with their reasons cleared.

  Illegal transitions fail with a descriptive InvalidTransition error and
  no state change. The status write itself is conditional on the status the
  decision was made against, so two racing approvals cannot both cascade.

INVENTORY COUPLING:
  Adding used parts consumes through the inventory ledger's all-or-nothing
  batch, then appends price snapshots and the recomputed total. Stock is
  never restored by later edits or deletion: the part left the shelf.
*/
package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/inventory"
	"github.com/warp/workshop-engine/tasks"
)

// DefaultRejectionReason is used when a rejection supplies no reason.
const DefaultRejectionReason = tasks.DefaultRejectionReason

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence contract for vehicles and service orders.
type Store interface {
	// Vehicles
	CreateVehicle(ctx context.Context, v Vehicle) error // Conflict on duplicate plate
	GetVehicle(ctx context.Context, id core.VehicleID) (*Vehicle, error)
	ListVehicles(ctx context.Context) ([]Vehicle, error)
	DeleteVehicle(ctx context.Context, id core.VehicleID) error
	// ReplaceVehicleLineItems swaps the line item list and persists the
	// recomputed estimate in the same transaction.
	ReplaceVehicleLineItems(ctx context.Context, id core.VehicleID, items []LineItem, totalEstimate decimal.Decimal) error

	// Orders
	CreateOrder(ctx context.Context, o ServiceOrder) error
	GetOrder(ctx context.Context, id core.OrderID) (*ServiceOrder, error)
	ListOrdersByVehicle(ctx context.Context, vehicleID core.VehicleID) ([]ServiceOrder, error)
	// LatestOrderByVehicle returns the most recently created order, or a
	// NotFound error when the vehicle has none.
	LatestOrderByVehicle(ctx context.Context, vehicleID core.VehicleID) (*ServiceOrder, error)
	ReplaceOrderLineItems(ctx context.Context, id core.OrderID, items []LineItem, totalPrice decimal.Decimal) error
	// AppendUsedParts appends snapshots and persists the recomputed total.
	AppendUsedParts(ctx context.Context, id core.OrderID, parts []UsedSparePart, totalPrice decimal.Decimal) error
	// SetOrderStatus conditionally moves the order from one status to
	// another, writing the rejection reason. Returns false without error
	// when the order was no longer in the expected status.
	SetOrderStatus(ctx context.Context, id core.OrderID, from, to OrderStatus, reason string) (bool, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store     Store
	Tasks     *tasks.Service
	Inventory *inventory.Ledger
	Bus       *core.Bus
}

func NewService(store Store, taskSvc *tasks.Service, inv *inventory.Ledger, bus *core.Bus) *Service {
	return &Service{Store: store, Tasks: taskSvc, Inventory: inv, Bus: bus}
}

// -----------------------------------------------------------------------------
// Vehicles
// -----------------------------------------------------------------------------

// CreateVehicle validates intake data and persists the vehicle. A duplicate
// plate is a Conflict naming the field.
func (s *Service) CreateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error) {
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
	if v.Plate == "" {
		return nil, &core.ValidationError{Field: "plate", Message: "required"}
	}
	if strings.TrimSpace(v.Make) == "" {
		return nil, &core.ValidationError{Field: "make", Message: "required"}
	}
	if strings.TrimSpace(v.Model) == "" {
		return nil, &core.ValidationError{Field: "model", Message: "required"}
	}
	if v.ID == "" {
		v.ID = core.VehicleID(uuid.NewString())
	}
	v.LineItems = nil
	v.TotalEstimate = SumLineItems(nil)
	if err := s.Store.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}
	return s.Store.GetVehicle(ctx, v.ID)
}

func (s *Service) GetVehicle(ctx context.Context, id core.VehicleID) (*Vehicle, error) {
	return s.Store.GetVehicle(ctx, id)
}

func (s *Service) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	return s.Store.ListVehicles(ctx)
}

// DeleteVehicle removes the vehicle and its own line items. Orders, tasks
// and debts referencing it are untouched; callers clean up dependents.
func (s *Service) DeleteVehicle(ctx context.Context, id core.VehicleID) error {
	return s.Store.DeleteVehicle(ctx, id)
}

// SetVehicleLineItems replaces the vehicle's line items and recomputes the
// estimate in the same transaction.
func (s *Service) SetVehicleLineItems(ctx context.Context, id core.VehicleID, items []LineItem) (*Vehicle, error) {
	cleaned, err := cleanLineItems(items)
	if err != nil {
		return nil, err
	}
	if err := s.Store.ReplaceVehicleLineItems(ctx, id, cleaned, SumLineItems(cleaned)); err != nil {
		return nil, err
	}
	return s.Store.GetVehicle(ctx, id)
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

// CreateOrder opens a pending order for the vehicle.
func (s *Service) CreateOrder(ctx context.Context, vehicleID core.VehicleID) (*ServiceOrder, error) {
	if _, err := s.Store.GetVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}
	o := ServiceOrder{
		ID:        core.OrderID(uuid.NewString()),
		VehicleID: vehicleID,
		Status:    StatusPending,
	}
	o.TotalPrice = o.Total()
	if err := s.Store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return s.Store.GetOrder(ctx, o.ID)
}

func (s *Service) GetOrder(ctx context.Context, id core.OrderID) (*ServiceOrder, error) {
	return s.Store.GetOrder(ctx, id)
}

func (s *Service) ListOrdersByVehicle(ctx context.Context, vehicleID core.VehicleID) ([]ServiceOrder, error) {
	return s.Store.ListOrdersByVehicle(ctx, vehicleID)
}

// SetOrderLineItems replaces the order's line items and recomputes the
// total. Only legal while the order is pending or in-progress.
func (s *Service) SetOrderLineItems(ctx context.Context, id core.OrderID, items []LineItem) (*ServiceOrder, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.Editable() {
		return nil, &core.InvalidTransitionError{
			Entity: "service order", ID: string(id), From: string(o.Status), To: "edit",
		}
	}
	cleaned, err := cleanLineItems(items)
	if err != nil {
		return nil, err
	}
	total := SumLineItems(cleaned).Add(SumUsedParts(o.UsedParts))
	if err := s.Store.ReplaceOrderLineItems(ctx, id, cleaned, total); err != nil {
		return nil, err
	}
	return s.Store.GetOrder(ctx, id)
}

// AddUsedParts consumes stock for each requested part and appends price
// snapshots to the order. The consume is all-or-nothing across the request:
// a shortfall on any part leaves every part's stock unchanged.
func (s *Service) AddUsedParts(ctx context.Context, id core.OrderID, requests []inventory.Consumption) (*ServiceOrder, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.Editable() {
		return nil, &core.InvalidTransitionError{
			Entity: "service order", ID: string(id), From: string(o.Status), To: "edit",
		}
	}
	if len(requests) == 0 {
		return o, nil
	}

	// Snapshot catalog prices before consuming; the consume itself
	// re-validates quantities against current stock.
	snapshots := make([]UsedSparePart, 0, len(requests))
	for _, req := range requests {
		part, err := s.Inventory.Get(ctx, req.PartID)
		if err != nil {
			return nil, err
		}
		qty := decimal.NewFromInt(req.Quantity)
		snapshots = append(snapshots, UsedSparePart{
			ID:        uuid.NewString(),
			PartID:    part.ID,
			PartName:  part.Name,
			Quantity:  req.Quantity,
			UnitPrice: part.UnitPrice,
			LineTotal: part.UnitPrice.Mul(qty),
		})
	}

	if err := s.Inventory.ConsumeBatch(ctx, requests); err != nil {
		return nil, err
	}

	total := SumLineItems(o.LineItems).Add(SumUsedParts(o.UsedParts)).Add(SumUsedParts(snapshots))
	if err := s.Store.AppendUsedParts(ctx, id, snapshots, total); err != nil {
		// Stock stays consumed: consumption is physical and is never
		// rolled back by bookkeeping failures.
		zap.S().Errorw("used parts consumed but snapshot append failed",
			"order_id", id, "error", err)
		return nil, err
	}
	return s.Store.GetOrder(ctx, id)
}

// -----------------------------------------------------------------------------
// Transitions
// -----------------------------------------------------------------------------

// Approve moves a ready-for-delivery order to completed, then approves and
// credits every completed task of the vehicle.
func (s *Service) Approve(ctx context.Context, id core.OrderID) (*ServiceOrder, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusReady {
		return nil, &core.InvalidTransitionError{
			Entity: "service order", ID: string(id), From: string(o.Status), To: string(StatusCompleted),
		}
	}
	moved, err := s.Store.SetOrderStatus(ctx, id, StatusReady, StatusCompleted, "")
	if err != nil {
		return nil, err
	}
	if !moved {
		// Lost the race to another transition; report against the fresh status.
		fresh, err := s.Store.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &core.InvalidTransitionError{
			Entity: "service order", ID: string(id), From: string(fresh.Status), To: string(StatusCompleted),
		}
	}

	now := time.Now().UTC()
	approved, err := s.Tasks.ApproveCompletedForVehicle(ctx, o.VehicleID, now)
	if err != nil {
		// The order commit stands; the cascade is resumable per task.
		zap.S().Errorw("approval cascade incomplete",
			"order_id", id, "vehicle_id", o.VehicleID, "approved", approved, "error", err)
		return nil, err
	}

	s.Bus.Publish(ctx, core.OrderApproved{OrderID: id, VehicleID: o.VehicleID})
	s.Bus.Publish(ctx, core.VehicleDelivered{OrderID: id, VehicleID: o.VehicleID})
	return s.Store.GetOrder(ctx, id)
}

// Reject moves a ready-for-delivery order to rejected and moves the
// vehicle's completed tasks to rejected with the same reason.
func (s *Service) Reject(ctx context.Context, id core.OrderID, reason string) (*ServiceOrder, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusReady {
		return nil, &core.InvalidTransitionError{
			Entity: "service order", ID: string(id), From: string(o.Status), To: string(StatusRejected),
		}
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultRejectionReason
	}
	moved, err := s.Store.SetOrderStatus(ctx, id, StatusReady, StatusRejected, reason)
	if err != nil {
		return nil, err
	}
	if !moved {
		fresh, err := s.Store.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &core.InvalidTransitionError{
			Entity: "service order", ID: string(id), From: string(fresh.Status), To: string(StatusRejected),
		}
	}

	if _, err := s.Tasks.RejectCompletedForVehicle(ctx, o.VehicleID, reason); err != nil {
		zap.S().Errorw("rejection cascade incomplete",
			"order_id", id, "vehicle_id", o.VehicleID, "error", err)
		return nil, err
	}

	s.Bus.Publish(ctx, core.OrderRejected{OrderID: id, VehicleID: o.VehicleID, Reason: reason})
	return s.Store.GetOrder(ctx, id)
}

// Restart moves a rejected order back to in-progress, clearing its reason,
// and returns the vehicle's rejected tasks to in-progress with their
// reasons cleared.
func (s *Service) Restart(ctx context.Context, id core.OrderID) (*ServiceOrder, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusRejected {
		return nil, &core.InvalidTransitionError{
			Entity: "service order", ID: string(id), From: string(o.Status), To: string(StatusInProgress),
		}
	}
	moved, err := s.Store.SetOrderStatus(ctx, id, StatusRejected, StatusInProgress, "")
	if err != nil {
		return nil, err
	}
	if !moved {
		fresh, err := s.Store.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &core.InvalidTransitionError{
			Entity: "service order", ID: string(id), From: string(fresh.Status), To: string(StatusInProgress),
		}
	}

	if _, err := s.Tasks.RestartRejectedForVehicle(ctx, o.VehicleID); err != nil {
		zap.S().Errorw("restart cascade incomplete",
			"order_id", id, "vehicle_id", o.VehicleID, "error", err)
		return nil, err
	}
	return s.Store.GetOrder(ctx, id)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func cleanLineItems(items []LineItem) ([]LineItem, error) {
	cleaned := make([]LineItem, 0, len(items))
	for _, li := range items {
		li.Name = strings.TrimSpace(li.Name)
		if li.Name == "" {
			return nil, &core.ValidationError{Field: "line_items.name", Message: "required"}
		}
		if !li.Quantity.IsPositive() {
			return nil, &core.ValidationError{Field: "line_items.quantity", Message: "must be positive"}
		}
		if li.UnitPrice.IsNegative() {
			return nil, &core.ValidationError{Field: "line_items.unit_price", Message: "must not be negative"}
		}
		if li.Category == "" {
			li.Category = CategoryPart
		}
		if li.ID == "" {
			li.ID = uuid.NewString()
		}
		cleaned = append(cleaned, li)
	}
	return cleaned, nil
}
