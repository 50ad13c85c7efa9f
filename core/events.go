/*
events.go - Domain events and the in-process bus

PURPOSE:
  The task and order state machines are decoupled through events instead of
  one machine mutating the other inline. A task entering "completed" publishes
  TaskCompleted; the order aggregator subscribes, inspects sibling tasks and
  advances the vehicle's latest order when every task is terminal.

  The notification gateway subscribes to order transitions the same way.
  Its failures are logged and swallowed: no subscriber error ever rolls back
  the state change that produced the event.

DELIVERY:
  Publication is synchronous and happens AFTER the triggering state change
  has committed. Handlers must not assume ordering between each other.
*/
package core

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// EVENTS
// =============================================================================

// Event is a domain event published on the bus.
type Event interface {
	Name() string
}

// TaskCompleted is published when a task enters the completed status.
type TaskCompleted struct {
	TaskID    TaskID
	VehicleID VehicleID
	At        time.Time
}

func (TaskCompleted) Name() string { return "task.completed" }

// OrderReady is published when a service order reaches ready-for-delivery.
type OrderReady struct {
	OrderID   OrderID
	VehicleID VehicleID
}

func (OrderReady) Name() string { return "order.ready" }

// OrderApproved is published when a service order is approved.
type OrderApproved struct {
	OrderID   OrderID
	VehicleID VehicleID
}

func (OrderApproved) Name() string { return "order.approved" }

// OrderRejected is published when a service order is rejected.
type OrderRejected struct {
	OrderID   OrderID
	VehicleID VehicleID
	Reason    string
}

func (OrderRejected) Name() string { return "order.rejected" }

// VehicleDelivered is published when an approved order completes the job.
type VehicleDelivered struct {
	OrderID   OrderID
	VehicleID VehicleID
}

func (VehicleDelivered) Name() string { return "vehicle.delivered" }

// DebtDue is emitted by the daily reminder job for every non-paid debt that
// is overdue or coming due. It goes straight to the notifier, not through
// state machines.
type DebtDue struct {
	DebtID        DebtID
	Counterparty  string
	Amount        decimal.Decimal
	DaysRemaining int
	Urgency       string
}

func (DebtDue) Name() string { return "debt.due" }

// =============================================================================
// BUS
// =============================================================================

// EventHandler reacts to a published event. Handlers must swallow their own
// failures; returning is the only signal.
type EventHandler func(ctx context.Context, e Event)

// Bus is a synchronous in-process event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the named event.
func (b *Bus) Subscribe(name string, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish delivers the event to every subscriber, in registration order.
// A panicking handler is recovered and logged so it cannot take down the
// request that produced the event.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Name()]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.S().Errorw("event handler panicked",
						"event", e.Name(),
						"panic", r,
					)
				}
			}()
			h(ctx, e)
		}()
	}
}
