package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/inventory"
	"github.com/warp/workshop-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) *inventory.Ledger {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return inventory.NewLedger(store)
}

func createPart(t *testing.T, ledger *inventory.Ledger, id, name string, qty int64) *inventory.SparePart {
	p, err := ledger.Create(context.Background(), inventory.SparePart{
		ID:        core.PartID(id),
		Name:      name,
		UnitPrice: core.MustDecimal("25.50"),
		Quantity:  qty,
	})
	require.NoError(t, err)
	return p
}

// =============================================================================
// CONSUMPTION INVARIANT TESTS
// =============================================================================

func TestLedger_Consume_DecrementsStockAndCountsUsage(t *testing.T) {
	// GIVEN: A part with quantity 5
	// WHEN: Consuming 3
	// THEN: Quantity is 2 and usage count increased by exactly 3

	ledger := newTestLedger(t)
	ctx := context.Background()

	p := createPart(t, ledger, "part-1", "Brake pad", 5)

	err := ledger.Consume(ctx, p.ID, 3)
	require.NoError(t, err)

	after, err := ledger.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.Quantity)
	assert.Equal(t, int64(3), after.UsageCount)
}

func TestLedger_Consume_ShortfallLeavesPartUnchanged(t *testing.T) {
	// GIVEN: A part with quantity 2
	// WHEN: Consuming 3
	// THEN: The consume fails with InsufficientStock and nothing changes

	ledger := newTestLedger(t)
	ctx := context.Background()

	p := createPart(t, ledger, "part-1", "Brake pad", 2)

	err := ledger.Consume(ctx, p.ID, 3)
	require.Error(t, err)
	assert.True(t, core.IsInsufficientStock(err))

	var stockErr *core.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.Available)
	assert.Equal(t, int64(3), stockErr.Requested)

	after, err := ledger.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.Quantity)
	assert.Equal(t, int64(0), after.UsageCount)
}

func TestLedger_Consume_UnknownPart(t *testing.T) {
	ledger := newTestLedger(t)

	err := ledger.Consume(context.Background(), "missing", 1)
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestLedger_Consume_NonPositiveQuantityRejected(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	p := createPart(t, ledger, "part-1", "Brake pad", 5)

	assert.True(t, core.IsValidation(ledger.Consume(ctx, p.ID, 0)))
	assert.True(t, core.IsValidation(ledger.Consume(ctx, p.ID, -2)))
}

func TestLedger_ConsumeBatch_AllOrNothing(t *testing.T) {
	// GIVEN: Two parts, one with enough stock and one without
	// WHEN: Consuming both in one batch
	// THEN: The batch fails and NEITHER part changes

	ledger := newTestLedger(t)
	ctx := context.Background()

	a := createPart(t, ledger, "part-a", "Oil filter", 10)
	b := createPart(t, ledger, "part-b", "Air filter", 1)

	err := ledger.ConsumeBatch(ctx, []inventory.Consumption{
		{PartID: a.ID, Quantity: 4},
		{PartID: b.ID, Quantity: 2},
	})
	require.Error(t, err)
	assert.True(t, core.IsInsufficientStock(err))

	afterA, err := ledger.Get(ctx, a.ID)
	require.NoError(t, err)
	afterB, err := ledger.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), afterA.Quantity, "first decrement must roll back")
	assert.Equal(t, int64(0), afterA.UsageCount)
	assert.Equal(t, int64(1), afterB.Quantity)
}

func TestLedger_Consume_ConcurrentConsumersNeverOversell(t *testing.T) {
	// GIVEN: A part with quantity 5
	// WHEN: 20 goroutines each try to consume 1 concurrently
	// THEN: Exactly 5 succeed and the final quantity is 0, never negative

	ledger := newTestLedger(t)
	ctx := context.Background()

	p := createPart(t, ledger, "part-1", "Spark plug", 5)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.Consume(ctx, p.ID, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, core.IsInsufficientStock(err))
		}
	}
	assert.Equal(t, 5, succeeded)

	after, err := ledger.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Quantity)
	assert.Equal(t, int64(5), after.UsageCount)
}

// =============================================================================
// RESTOCK AND CATALOG TESTS
// =============================================================================

func TestLedger_Restock_BypassesUsageCounting(t *testing.T) {
	// GIVEN: A part that has been consumed 3 times
	// WHEN: Restocking 10
	// THEN: Quantity increases but usage count stays

	ledger := newTestLedger(t)
	ctx := context.Background()

	p := createPart(t, ledger, "part-1", "Brake pad", 5)
	require.NoError(t, ledger.Consume(ctx, p.ID, 3))

	after, err := ledger.Restock(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(12), after.Quantity)
	assert.Equal(t, int64(3), after.UsageCount)
}

func TestLedger_Restock_NonPositiveQuantityRejected(t *testing.T) {
	ledger := newTestLedger(t)
	p := createPart(t, ledger, "part-1", "Brake pad", 5)

	_, err := ledger.Restock(context.Background(), p.ID, 0)
	assert.True(t, core.IsValidation(err))
}

func TestLedger_Create_DuplicateActiveNameRejected(t *testing.T) {
	// GIVEN: An active part named "Brake Pad"
	// WHEN: Creating "brake pad" (different case)
	// THEN: The create fails with Conflict

	ledger := newTestLedger(t)
	ctx := context.Background()

	createPart(t, ledger, "part-1", "Brake Pad", 5)

	_, err := ledger.Create(ctx, inventory.SparePart{
		ID:       "part-2",
		Name:     "brake pad",
		Quantity: 1,
	})
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))
}

func TestLedger_Create_NameFreedAfterDeactivation(t *testing.T) {
	// GIVEN: A deactivated part named "Brake Pad"
	// WHEN: Creating a new part with the same name
	// THEN: The create succeeds (uniqueness only holds among active parts)

	ledger := newTestLedger(t)
	ctx := context.Background()

	p := createPart(t, ledger, "part-1", "Brake Pad", 5)
	require.NoError(t, ledger.Deactivate(ctx, p.ID))

	_, err := ledger.Create(ctx, inventory.SparePart{
		ID:       "part-2",
		Name:     "Brake Pad",
		Quantity: 3,
	})
	assert.NoError(t, err)
}

func TestLedger_Update_DirectQuantityEditBypassesUsage(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	p := createPart(t, ledger, "part-1", "Brake pad", 5)
	require.NoError(t, ledger.Consume(ctx, p.ID, 2))

	p.Quantity = 100
	after, err := ledger.Update(ctx, *p)
	require.NoError(t, err)
	assert.Equal(t, int64(100), after.Quantity)
	assert.Equal(t, int64(2), after.UsageCount, "manual correction must not count as usage")
}

// =============================================================================
// SEARCH TESTS
// =============================================================================

func TestLedger_Search_RanksByUsageFrequency(t *testing.T) {
	// GIVEN: Three matching parts with different usage counts
	// WHEN: Searching
	// THEN: Results come most-used first, ties broken by name

	ledger := newTestLedger(t)
	ctx := context.Background()

	a := createPart(t, ledger, "part-a", "Filter oil", 50)
	b := createPart(t, ledger, "part-b", "Filter air", 50)
	createPart(t, ledger, "part-c", "Filter cabin", 50)

	require.NoError(t, ledger.Consume(ctx, a.ID, 2))
	require.NoError(t, ledger.Consume(ctx, b.ID, 5))

	results, err := ledger.Search(ctx, "Filter", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Filter air", results[0].Name)
	assert.Equal(t, "Filter oil", results[1].Name)
	assert.Equal(t, "Filter cabin", results[2].Name)
}

func TestLedger_Search_ExcludesDeactivatedParts(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	p := createPart(t, ledger, "part-1", "Brake pad", 5)
	createPart(t, ledger, "part-2", "Brake disc", 5)
	require.NoError(t, ledger.Deactivate(ctx, p.ID))

	results, err := ledger.Search(ctx, "Brake", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Brake disc", results[0].Name)
}
