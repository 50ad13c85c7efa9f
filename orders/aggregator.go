/*
aggregator.go - Cross-machine aggregation rule

PURPOSE:
  "All tasks done implies the latest service order advances to
  ready-for-delivery." The rule couples the task and order machines, so it
  lives in a dedicated listener instead of one machine mutating the other
  inline: the task machine publishes TaskCompleted, the aggregator queries
  sibling tasks and advances the order.

SEMANTICS:
  - Only fires when EVERY task of the vehicle is completed or approved.
  - Advances the vehicle's most recently created order, from pending or
    in-progress. Orders already ready, completed or rejected are left alone.
  - A vehicle without orders is not an error; there is nothing to advance.
  - Failures are logged and swallowed: the task's own commit stands.
*/
package orders

import (
	"context"

	"go.uber.org/zap"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/tasks"
)

// Aggregator advances service orders when a vehicle's tasks all finish.
type Aggregator struct {
	Store Store
	Tasks *tasks.Service
	Bus   *core.Bus
}

func NewAggregator(store Store, taskSvc *tasks.Service, bus *core.Bus) *Aggregator {
	return &Aggregator{Store: store, Tasks: taskSvc, Bus: bus}
}

// Register subscribes the aggregator to task completions.
func (a *Aggregator) Register() {
	a.Bus.Subscribe(core.TaskCompleted{}.Name(), func(ctx context.Context, e core.Event) {
		tc, ok := e.(core.TaskCompleted)
		if !ok {
			return
		}
		if err := a.evaluate(ctx, tc.VehicleID); err != nil {
			zap.S().Errorw("order aggregation failed",
				"vehicle_id", tc.VehicleID, "error", err)
		}
	})
}

func (a *Aggregator) evaluate(ctx context.Context, vehicleID core.VehicleID) error {
	done, err := a.Tasks.AllDone(ctx, vehicleID)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}

	latest, err := a.Store.LatestOrderByVehicle(ctx, vehicleID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil // nothing to advance
		}
		return err
	}
	if !latest.Status.Editable() {
		return nil // already ready, completed or rejected
	}

	moved, err := a.Store.SetOrderStatus(ctx, latest.ID, latest.Status, StatusReady, "")
	if err != nil {
		return err
	}
	if !moved {
		return nil // raced with another transition; its outcome wins
	}

	zap.S().Infow("service order ready for delivery",
		"order_id", latest.ID, "vehicle_id", vehicleID)
	a.Bus.Publish(ctx, core.OrderReady{OrderID: latest.ID, VehicleID: vehicleID})
	return nil
}
