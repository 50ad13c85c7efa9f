package orders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/inventory"
	"github.com/warp/workshop-engine/orders"
	"github.com/warp/workshop-engine/store/sqlite"
	"github.com/warp/workshop-engine/tasks"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var tech = core.Actor{ID: "tech-1", Role: core.RoleTechnician}

type fixture struct {
	Store     *sqlite.Store
	Bus       *core.Bus
	Inventory *inventory.Ledger
	Tasks     *tasks.Service
	Orders    *orders.Service
}

func newFixture(t *testing.T) *fixture {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.CreateUser(context.Background(), core.User{
		ID: "tech-1", Name: "Tech One", Role: core.RoleTechnician,
	}))

	bus := core.NewBus()
	inv := inventory.NewLedger(store)
	taskSvc := tasks.NewService(store, bus)
	orderSvc := orders.NewService(store, taskSvc, inv, bus)
	orders.NewAggregator(store, taskSvc, bus).Register()

	return &fixture{Store: store, Bus: bus, Inventory: inv, Tasks: taskSvc, Orders: orderSvc}
}

func (f *fixture) createVehicle(t *testing.T, plate string) *orders.Vehicle {
	v, err := f.Orders.CreateVehicle(context.Background(), orders.Vehicle{
		Make: "Toyota", Model: "Hilux", Year: 2019, Plate: plate,
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) createOrder(t *testing.T, vehicleID core.VehicleID) *orders.ServiceOrder {
	o, err := f.Orders.CreateOrder(context.Background(), vehicleID)
	require.NoError(t, err)
	return o
}

func (f *fixture) createPart(t *testing.T, id, name, price string, qty int64) *inventory.SparePart {
	p, err := f.Inventory.Create(context.Background(), inventory.SparePart{
		ID: core.PartID(id), Name: name, UnitPrice: core.MustDecimal(price), Quantity: qty,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) createTask(t *testing.T, vehicleID core.VehicleID, title, payment string) *tasks.Task {
	created, err := f.Tasks.Create(context.Background(), tasks.Task{
		VehicleID: vehicleID, AssigneeID: "tech-1", Title: title, Payment: core.MustDecimal(payment),
	})
	require.NoError(t, err)
	return created
}

// =============================================================================
// VEHICLE TESTS
// =============================================================================

func TestService_CreateVehicle_DuplicatePlateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createVehicle(t, "ABC-123")

	// Plates are normalized to upper case before the uniqueness check.
	_, err := f.Orders.CreateVehicle(ctx, orders.Vehicle{
		Make: "Ford", Model: "Ranger", Plate: "abc-123",
	})
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))
}

func TestService_SetVehicleLineItems_RecomputesEstimate(t *testing.T) {
	// GIVEN: A vehicle
	// WHEN: Setting two line items (2 x 50 + 1 x 30.25)
	// THEN: The estimate is 130.25, and a replacement overwrites it

	f := newFixture(t)
	ctx := context.Background()

	v := f.createVehicle(t, "ABC-123")

	updated, err := f.Orders.SetVehicleLineItems(ctx, v.ID, []orders.LineItem{
		{Name: "Brake pads", Category: orders.CategoryPart,
			UnitPrice: core.MustDecimal("50"), Quantity: core.MustDecimal("2")},
		{Name: "Labor", Category: orders.CategoryLabor,
			UnitPrice: core.MustDecimal("30.25"), Quantity: core.MustDecimal("1")},
	})
	require.NoError(t, err)
	require.Len(t, updated.LineItems, 2)
	assert.True(t, updated.TotalEstimate.Equal(core.MustDecimal("130.25")))

	updated, err = f.Orders.SetVehicleLineItems(ctx, v.ID, []orders.LineItem{
		{Name: "Oil change", UnitPrice: core.MustDecimal("20"), Quantity: core.MustDecimal("1")},
	})
	require.NoError(t, err)
	require.Len(t, updated.LineItems, 1)
	assert.True(t, updated.TotalEstimate.Equal(core.MustDecimal("20")))
}

func TestService_SetVehicleLineItems_Validation(t *testing.T) {
	f := newFixture(t)
	v := f.createVehicle(t, "ABC-123")

	_, err := f.Orders.SetVehicleLineItems(context.Background(), v.ID, []orders.LineItem{
		{Name: "Pads", UnitPrice: core.MustDecimal("50"), Quantity: core.MustDecimal("0")},
	})
	assert.True(t, core.IsValidation(err), "zero quantity")
}

// =============================================================================
// USED PART TESTS
// =============================================================================

func TestService_AddUsedParts_SnapshotsPriceAndConsumesStock(t *testing.T) {
	// GIVEN: A part priced 40 with quantity 10 and a pending order
	// WHEN: Using 3, then raising the catalog price
	// THEN: Stock drops to 7 and the order keeps the frozen price

	f := newFixture(t)
	ctx := context.Background()

	v := f.createVehicle(t, "ABC-123")
	o := f.createOrder(t, v.ID)
	p := f.createPart(t, "part-1", "Brake pad", "40", 10)

	updated, err := f.Orders.AddUsedParts(ctx, o.ID, []inventory.Consumption{
		{PartID: p.ID, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, updated.UsedParts, 1)
	assert.True(t, updated.UsedParts[0].UnitPrice.Equal(core.MustDecimal("40")))
	assert.True(t, updated.UsedParts[0].LineTotal.Equal(core.MustDecimal("120")))
	assert.True(t, updated.TotalPrice.Equal(core.MustDecimal("120")))

	after, err := f.Inventory.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), after.Quantity)

	p.UnitPrice = core.MustDecimal("99")
	_, err = f.Inventory.Update(ctx, *p)
	require.NoError(t, err)

	fresh, err := f.Orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, fresh.UsedParts[0].UnitPrice.Equal(core.MustDecimal("40")),
		"snapshot must not follow catalog price")
}

func TestService_AddUsedParts_ShortfallLeavesEverythingUnchanged(t *testing.T) {
	// GIVEN: Two parts, the second short on stock
	// WHEN: Adding both to an order
	// THEN: The add fails and neither stock nor the order changes

	f := newFixture(t)
	ctx := context.Background()

	v := f.createVehicle(t, "ABC-123")
	o := f.createOrder(t, v.ID)
	a := f.createPart(t, "part-a", "Oil filter", "15", 10)
	b := f.createPart(t, "part-b", "Air filter", "20", 1)

	_, err := f.Orders.AddUsedParts(ctx, o.ID, []inventory.Consumption{
		{PartID: a.ID, Quantity: 2},
		{PartID: b.ID, Quantity: 5},
	})
	require.Error(t, err)
	assert.True(t, core.IsInsufficientStock(err))

	afterA, err := f.Inventory.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), afterA.Quantity)

	fresh, err := f.Orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.UsedParts)
	assert.True(t, fresh.TotalPrice.IsZero())
}

func TestService_AddUsedParts_BlockedOnceNotEditable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.createVehicle(t, "ABC-123")
	o := f.createOrder(t, v.ID)
	p := f.createPart(t, "part-1", "Brake pad", "40", 10)

	// Complete the only task: the aggregator advances the order to ready.
	task := f.createTask(t, v.ID, "Replace brakes", "100")
	_, err := f.Tasks.UpdateStatus(ctx, tech, task.ID, tasks.StatusCompleted)
	require.NoError(t, err)

	_, err = f.Orders.AddUsedParts(ctx, o.ID, []inventory.Consumption{
		{PartID: p.ID, Quantity: 1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = f.Orders.SetOrderLineItems(ctx, o.ID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "line item edits blocked too")

	after, err := f.Inventory.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), after.Quantity, "no stock consumed on a blocked edit")
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestAggregator_AdvancesOrderWhenLastTaskCompletes(t *testing.T) {
	// GIVEN: An order and two tasks on the vehicle
	// WHEN: Completing the first task, then the second
	// THEN: The order stays editable until the last completion, then becomes
	//       ready and OrderReady is published exactly once

	f := newFixture(t)
	ctx := context.Background()

	var ready []core.Event
	f.Bus.Subscribe(core.OrderReady{}.Name(), func(_ context.Context, e core.Event) {
		ready = append(ready, e)
	})

	v := f.createVehicle(t, "ABC-123")
	o := f.createOrder(t, v.ID)
	t1 := f.createTask(t, v.ID, "Task one", "100")
	t2 := f.createTask(t, v.ID, "Task two", "200")

	_, err := f.Tasks.UpdateStatus(ctx, tech, t1.ID, tasks.StatusCompleted)
	require.NoError(t, err)

	mid, err := f.Orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, mid.Status, "one task still open")
	assert.Empty(t, ready)

	_, err = f.Tasks.UpdateStatus(ctx, tech, t2.ID, tasks.StatusCompleted)
	require.NoError(t, err)

	after, err := f.Orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusReady, after.Status)

	require.Len(t, ready, 1)
	event := ready[0].(core.OrderReady)
	assert.Equal(t, o.ID, event.OrderID)
	assert.Equal(t, v.ID, event.VehicleID)
}

func TestAggregator_AdvancesOnlyLatestOrder(t *testing.T) {
	// GIVEN: Two orders on the vehicle
	// WHEN: All tasks complete
	// THEN: Only the most recently created order advances

	f := newFixture(t)
	ctx := context.Background()

	v := f.createVehicle(t, "ABC-123")
	older := f.createOrder(t, v.ID)
	newer := f.createOrder(t, v.ID)

	task := f.createTask(t, v.ID, "Task one", "100")
	_, err := f.Tasks.UpdateStatus(ctx, tech, task.ID, tasks.StatusCompleted)
	require.NoError(t, err)

	freshOlder, err := f.Orders.GetOrder(ctx, older.ID)
	require.NoError(t, err)
	freshNewer, err := f.Orders.GetOrder(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, freshOlder.Status)
	assert.Equal(t, orders.StatusReady, freshNewer.Status)
}

func TestAggregator_NoOrderIsNotAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.createVehicle(t, "ABC-123")
	task := f.createTask(t, v.ID, "Task one", "100")

	// Completing with no order on file must not fail the status update.
	_, err := f.Tasks.UpdateStatus(ctx, tech, task.ID, tasks.StatusCompleted)
	assert.NoError(t, err)
}

// =============================================================================
// TRANSITION TESTS
// =============================================================================

// readyFixture drives a vehicle with one order and two tasks to the point
// where the order is ready-for-delivery.
func readyFixture(t *testing.T, f *fixture) (*orders.ServiceOrder, *tasks.Task, *tasks.Task) {
	ctx := context.Background()
	v := f.createVehicle(t, "ABC-123")
	o := f.createOrder(t, v.ID)
	t1 := f.createTask(t, v.ID, "Task one", "100")
	t2 := f.createTask(t, v.ID, "Task two", "200")
	for _, id := range []core.TaskID{t1.ID, t2.ID} {
		_, err := f.Tasks.UpdateStatus(ctx, tech, id, tasks.StatusCompleted)
		require.NoError(t, err)
	}
	fresh, err := f.Orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusReady, fresh.Status)
	return fresh, t1, t2
}

func TestService_Approve_CompletesOrderAndCreditsTasks(t *testing.T) {
	// GIVEN: A ready order with two completed tasks paying 100 and 200
	// WHEN: Approving the order
	// THEN: The order completes, both tasks flip to approved and the
	//       assignee's earnings rise by 300

	f := newFixture(t)
	ctx := context.Background()

	o, t1, t2 := readyFixture(t, f)

	var delivered []core.Event
	f.Bus.Subscribe(core.VehicleDelivered{}.Name(), func(_ context.Context, e core.Event) {
		delivered = append(delivered, e)
	})

	approved, err := f.Orders.Approve(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, approved.Status)

	for _, id := range []core.TaskID{t1.ID, t2.ID} {
		task, err := f.Tasks.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tasks.StatusApproved, task.Status)
		assert.NotNil(t, task.ApprovedAt)
	}

	u, err := f.Store.GetUser(ctx, "tech-1")
	require.NoError(t, err)
	assert.True(t, u.Earnings.Equal(core.MustDecimal("300")))

	require.Len(t, delivered, 1)
}

func TestService_Approve_RequiresReadyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.createVehicle(t, "ABC-123")
	o := f.createOrder(t, v.ID)

	_, err := f.Orders.Approve(ctx, o.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	fresh, err := f.Orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, fresh.Status, "no state change on a refused transition")
}

func TestService_Reject_CascadesReasonToCompletedTasks(t *testing.T) {
	// GIVEN: A ready order with two completed tasks
	// WHEN: Rejecting with a reason
	// THEN: The order and both tasks carry the reason, nobody is credited

	f := newFixture(t)
	ctx := context.Background()

	o, t1, t2 := readyFixture(t, f)

	rejected, err := f.Orders.Reject(ctx, o.ID, "paint mismatch")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusRejected, rejected.Status)
	assert.Equal(t, "paint mismatch", rejected.RejectionReason)

	for _, id := range []core.TaskID{t1.ID, t2.ID} {
		task, err := f.Tasks.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tasks.StatusRejected, task.Status)
		assert.Equal(t, "paint mismatch", task.RejectionReason)
	}

	u, err := f.Store.GetUser(ctx, "tech-1")
	require.NoError(t, err)
	assert.True(t, u.Earnings.IsZero())
}

func TestService_Reject_DefaultsReason(t *testing.T) {
	f := newFixture(t)
	o, _, _ := readyFixture(t, f)

	rejected, err := f.Orders.Reject(context.Background(), o.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, orders.DefaultRejectionReason, rejected.RejectionReason)
}

func TestService_Restart_ReturnsOrderAndTasksToInProgress(t *testing.T) {
	// GIVEN: A rejected order with rejected tasks
	// WHEN: Restarting it
	// THEN: Order and tasks return to in-progress with reasons cleared

	f := newFixture(t)
	ctx := context.Background()

	o, t1, t2 := readyFixture(t, f)
	_, err := f.Orders.Reject(ctx, o.ID, "paint mismatch")
	require.NoError(t, err)

	restarted, err := f.Orders.Restart(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusInProgress, restarted.Status)
	assert.Empty(t, restarted.RejectionReason)

	for _, id := range []core.TaskID{t1.ID, t2.ID} {
		task, err := f.Tasks.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tasks.StatusInProgress, task.Status)
		assert.Empty(t, task.RejectionReason)
	}
}

func TestService_Restart_RequiresRejectedStatus(t *testing.T) {
	f := newFixture(t)
	o, _, _ := readyFixture(t, f)

	_, err := f.Orders.Restart(context.Background(), o.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestService_RejectThenRestartThenReady_FullLoop(t *testing.T) {
	// GIVEN: A rejected order whose tasks were sent back
	// WHEN: Restarting and re-completing every task
	// THEN: The aggregator advances the order to ready a second time

	f := newFixture(t)
	ctx := context.Background()

	o, t1, t2 := readyFixture(t, f)
	_, err := f.Orders.Reject(ctx, o.ID, "paint mismatch")
	require.NoError(t, err)
	_, err = f.Orders.Restart(ctx, o.ID)
	require.NoError(t, err)

	for _, id := range []core.TaskID{t1.ID, t2.ID} {
		_, err := f.Tasks.UpdateStatus(ctx, tech, id, tasks.StatusCompleted)
		require.NoError(t, err)
	}

	fresh, err := f.Orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusReady, fresh.Status)
}
