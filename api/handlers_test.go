package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workshop-engine/api"
	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := core.NewBus()
	handler := api.NewHandler(store, bus)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, t: t}
}

// do sends a JSON request as the staff actor and decodes the response into out.
func (s *testServer) do(method, path string, body any, out any) int {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "staff-1")
	req.Header.Set("X-Actor-Role", "staff")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// =============================================================================
// FULL WORKFLOW TESTS
// =============================================================================

func TestAPI_FullRepairWorkflow(t *testing.T) {
	// Intake to payout through the HTTP surface: member, part, vehicle,
	// order, task, completion (auto-advances the order), approval (cascades
	// to the task and credits the member).

	srv := newTestServer(t)

	// Member
	var user api.UserDTO
	status := srv.do("POST", "/api/users", map[string]any{
		"id": "tech-1", "name": "Tech One", "role": "technician",
	}, &user)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "technician", user.Role)

	// Part
	var part api.PartDTO
	status = srv.do("POST", "/api/parts", map[string]any{
		"id": "part-1", "name": "Brake pad", "unit_price": "40", "quantity": 10,
	}, &part)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, part.Active)

	// Vehicle with an estimate
	var vehicle api.VehicleDTO
	status = srv.do("POST", "/api/vehicles", map[string]any{
		"make": "Toyota", "model": "Hilux", "year": 2019, "plate": "abc-123",
	}, &vehicle)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ABC-123", vehicle.Plate, "plates are normalized")

	status = srv.do("PUT", "/api/vehicles/"+vehicle.ID+"/line-items", map[string]any{
		"line_items": []map[string]any{
			{"name": "Brake job", "category": "labor", "unit_price": "80", "quantity": "1"},
		},
	}, &vehicle)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "80", vehicle.TotalEstimate.String())

	// Order with a used part
	var order api.OrderDTO
	status = srv.do("POST", "/api/orders", map[string]any{"vehicle_id": vehicle.ID}, &order)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "pending", order.Status)

	status = srv.do("POST", "/api/orders/"+order.ID+"/used-parts", map[string]any{
		"parts": []map[string]any{{"part_id": "part-1", "quantity": 2}},
	}, &order)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, order.UsedParts, 1)
	assert.Equal(t, "80", order.TotalPrice.String())

	status = srv.do("GET", "/api/parts/part-1", nil, &part)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(8), part.Quantity, "stock consumed through the order")

	// Task
	var task api.TaskDTO
	status = srv.do("POST", "/api/tasks", map[string]any{
		"vehicle_id": vehicle.ID, "assignee_id": "tech-1",
		"title": "Replace brakes", "payment": "150",
	}, &task)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "assigned", task.Status)

	// Completing the only task auto-advances the order to ready.
	status = srv.do("PUT", "/api/tasks/"+task.ID+"/status",
		map[string]any{"status": "completed"}, &task)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, task.CompletedAt)

	status = srv.do("GET", "/api/orders/"+order.ID, nil, &order)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready-for-delivery", order.Status)

	// Approving the order completes it, approves the task, credits earnings.
	status = srv.do("POST", "/api/orders/"+order.ID+"/approve", nil, &order)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", order.Status)

	status = srv.do("GET", "/api/tasks/"+task.ID, nil, &task)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "approved", task.Status)

	status = srv.do("GET", "/api/users/tech-1", nil, &user)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "150", user.Earnings.String())
}

func TestAPI_RejectAndRestartLoop(t *testing.T) {
	// The customer refuses the work; the order and its tasks go back into
	// progress for a second pass.

	srv := newTestServer(t)

	srv.do("POST", "/api/users", map[string]any{"id": "tech-1", "name": "Tech One"}, nil)

	var vehicle api.VehicleDTO
	srv.do("POST", "/api/vehicles", map[string]any{
		"make": "Toyota", "model": "Hilux", "plate": "ABC-123",
	}, &vehicle)

	var order api.OrderDTO
	srv.do("POST", "/api/orders", map[string]any{"vehicle_id": vehicle.ID}, &order)

	var task api.TaskDTO
	srv.do("POST", "/api/tasks", map[string]any{
		"vehicle_id": vehicle.ID, "assignee_id": "tech-1",
		"title": "Respray hood", "payment": "90",
	}, &task)
	srv.do("PUT", "/api/tasks/"+task.ID+"/status", map[string]any{"status": "completed"}, &task)

	status := srv.do("POST", "/api/orders/"+order.ID+"/reject",
		map[string]any{"reason": "paint mismatch"}, &order)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rejected", order.Status)
	assert.Equal(t, "paint mismatch", order.RejectionReason)

	srv.do("GET", "/api/tasks/"+task.ID, nil, &task)
	assert.Equal(t, "rejected", task.Status)
	assert.Equal(t, "paint mismatch", task.RejectionReason)

	status = srv.do("POST", "/api/orders/"+order.ID+"/restart", nil, &order)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "in-progress", order.Status)
	assert.Empty(t, order.RejectionReason)

	srv.do("GET", "/api/tasks/"+task.ID, nil, &task)
	assert.Equal(t, "in-progress", task.Status)
	assert.Empty(t, task.RejectionReason)
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestAPI_ErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	srv.do("POST", "/api/users", map[string]any{"id": "tech-1", "name": "Tech One"}, nil)
	srv.do("POST", "/api/parts", map[string]any{
		"id": "part-1", "name": "Brake pad", "unit_price": "40", "quantity": 1,
	}, nil)

	var vehicle api.VehicleDTO
	srv.do("POST", "/api/vehicles", map[string]any{
		"make": "Toyota", "model": "Hilux", "plate": "ABC-123",
	}, &vehicle)
	var order api.OrderDTO
	srv.do("POST", "/api/orders", map[string]any{"vehicle_id": vehicle.ID}, &order)

	t.Run("validation is 400", func(t *testing.T) {
		status := srv.do("POST", "/api/vehicles", map[string]any{
			"make": "Ford", "model": "Ranger", "plate": "  ",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("missing entity is 404", func(t *testing.T) {
		status := srv.do("GET", "/api/parts/missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("duplicate plate is 409", func(t *testing.T) {
		status := srv.do("POST", "/api/vehicles", map[string]any{
			"make": "Ford", "model": "Ranger", "plate": "abc-123",
		}, nil)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("illegal transition is 409", func(t *testing.T) {
		status := srv.do("POST", "/api/orders/"+order.ID+"/approve", nil, nil)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("stock shortfall is 422", func(t *testing.T) {
		status := srv.do("POST", "/api/parts/part-1/consume",
			map[string]any{"quantity": 5}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})

	t.Run("malformed json is 400", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/parts", "application/json",
			bytes.NewBufferString("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_TaskAuthorizationHeaders(t *testing.T) {
	// A technician identified via headers may only touch its own tasks.

	srv := newTestServer(t)

	srv.do("POST", "/api/users", map[string]any{"id": "tech-1", "name": "Tech One"}, nil)
	var vehicle api.VehicleDTO
	srv.do("POST", "/api/vehicles", map[string]any{
		"make": "Toyota", "model": "Hilux", "plate": "ABC-123",
	}, &vehicle)
	var task api.TaskDTO
	srv.do("POST", "/api/tasks", map[string]any{
		"vehicle_id": vehicle.ID, "assignee_id": "tech-1",
		"title": "Replace brakes", "payment": "150",
	}, &task)

	body, err := json.Marshal(map[string]any{"status": "in-progress"})
	require.NoError(t, err)
	req, err := http.NewRequest("PUT", srv.URL+"/api/tasks/"+task.ID+"/status",
		bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Actor-ID", "tech-2")
	req.Header.Set("X-Actor-Role", "technician")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// =============================================================================
// DEBT ENDPOINT TESTS
// =============================================================================

func TestAPI_DebtLifecycle(t *testing.T) {
	srv := newTestServer(t)

	due := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	var debt api.DebtDTO
	status := srv.do("POST", "/api/debts", map[string]any{
		"kind": "receivable", "counterparty_name": "Acme Fleet",
		"amount": "100000", "due_date": due,
	}, &debt)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "pending", debt.Status)

	status = srv.do("POST", "/api/debts/"+debt.ID+"/payments", map[string]any{
		"amount": "60000", "note": "first installment",
	}, &debt)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "partial", debt.Status)
	assert.Equal(t, "60000", debt.PaidAmount.String())

	var upcoming []api.UpcomingDebtDTO
	status = srv.do("GET", "/api/debts/upcoming?within_days=7", nil, &upcoming)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "upcoming", upcoming[0].Urgency)
	assert.Equal(t, 3, upcoming[0].DaysRemaining)

	status = srv.do("POST", "/api/debts/"+debt.ID+"/payments",
		map[string]any{"amount": "40000"}, &debt)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paid", debt.Status)

	status = srv.do("GET", "/api/debts/upcoming", nil, &upcoming)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, upcoming, "paid debts are never reminded")

	status = srv.do("GET", "/api/debts/upcoming?within_days=x", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

// =============================================================================
// SEARCH AND RECOMPUTE TESTS
// =============================================================================

func TestAPI_PartSearchRanksByUsage(t *testing.T) {
	srv := newTestServer(t)

	for _, p := range []map[string]any{
		{"id": "part-a", "name": "Filter oil", "unit_price": "10", "quantity": 50},
		{"id": "part-b", "name": "Filter air", "unit_price": "10", "quantity": 50},
	} {
		status := srv.do("POST", "/api/parts", p, nil)
		require.Equal(t, http.StatusCreated, status)
	}
	srv.do("POST", "/api/parts/part-b/consume", map[string]any{"quantity": 5}, nil)

	var results []api.PartDTO
	status := srv.do("GET", "/api/parts/search?q=filter&limit=10", nil, &results)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, results, 2)
	assert.Equal(t, "Filter air", results[0].Name, "most used first")
}

func TestAPI_RecomputeEarnings(t *testing.T) {
	srv := newTestServer(t)

	srv.do("POST", "/api/users", map[string]any{"id": "tech-1", "name": "Tech One"}, nil)

	var result map[string]any
	status := srv.do("POST", "/api/users/tech-1/earnings/recompute", nil, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "tech-1", result["user_id"])

	status = srv.do("POST", "/api/users/missing/earnings/recompute", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
