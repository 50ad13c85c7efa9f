/*
handlers.go - HTTP API handlers for the workshop engine

PURPOSE:
  Exposes the workshop engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    GET    /api/users                        List members
    POST   /api/users                        Create member
    GET    /api/users/{id}                   Get member
    GET    /api/users/{id}/tasks             Tasks assigned to member
    POST   /api/users/{id}/earnings/recompute Rebuild earnings from approvals

  Spare parts:
    GET    /api/parts                        Catalog (?active=true)
    POST   /api/parts                        Create part
    GET    /api/parts/search?q=&limit=       Usage-ranked search
    GET    /api/parts/{id}                   Get part
    PUT    /api/parts/{id}                   Update part
    DELETE /api/parts/{id}                   Deactivate part
    POST   /api/parts/{id}/consume           Consume stock
    POST   /api/parts/{id}/restock           Restock

  Vehicles:
    GET    /api/vehicles                     List vehicles
    POST   /api/vehicles                     Intake a vehicle
    GET    /api/vehicles/{id}                Get vehicle
    DELETE /api/vehicles/{id}                Delete vehicle
    PUT    /api/vehicles/{id}/line-items     Replace estimate lines
    GET    /api/vehicles/{id}/orders         Vehicle's orders
    GET    /api/vehicles/{id}/tasks          Vehicle's tasks

  Service orders:
    POST   /api/orders                       Open an order
    GET    /api/orders/{id}                  Get order
    PUT    /api/orders/{id}/line-items       Replace priced lines
    POST   /api/orders/{id}/used-parts       Consume and snapshot parts
    POST   /api/orders/{id}/approve          ready-for-delivery -> completed
    POST   /api/orders/{id}/reject           ready-for-delivery -> rejected
    POST   /api/orders/{id}/restart          rejected -> in-progress

  Tasks:
    POST   /api/tasks                        Create task
    GET    /api/tasks/{id}                   Get task
    PUT    /api/tasks/{id}/status            Generic status update
    POST   /api/tasks/{id}/approve           Dedicated approve/reject

  Debts:
    GET    /api/debts                        List debts
    POST   /api/debts                        Create debt
    GET    /api/debts/upcoming?within_days=  Reminder view
    GET    /api/debts/{id}                   Get debt
    POST   /api/debts/{id}/payments          Record a payment

ERROR HANDLING:
  Domain errors map to HTTP status by category:
  - 400: Validation errors, invalid input
  - 403: Actor may not touch the entity
  - 404: Entity not found
  - 409: Conflict (duplicate plate/name) or illegal transition
  - 422: Insufficient stock
  - 500: Internal errors

ACTOR IDENTITY:
  Authentication is an external collaborator. The resolved identity arrives
  in the X-Actor-ID and X-Actor-Role headers; absent headers yield an
  anonymous unprivileged actor.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Daily debt reminder job
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/debts"
	"github.com/warp/workshop-engine/earnings"
	"github.com/warp/workshop-engine/inventory"
	"github.com/warp/workshop-engine/orders"
	"github.com/warp/workshop-engine/store/sqlite"
	"github.com/warp/workshop-engine/tasks"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Inventory *inventory.Ledger
	Tasks     *tasks.Service
	Orders    *orders.Service
	Earnings  *earnings.Reconciler
	Debts     *debts.Ledger
	Bus       *core.Bus
}

// NewHandler builds the domain services over the store and registers the
// order aggregator on the bus. Notification subscribers are wired by the
// caller (see core.SubscribeNotifier).
func NewHandler(store *sqlite.Store, bus *core.Bus) *Handler {
	inv := inventory.NewLedger(store)
	taskSvc := tasks.NewService(store, bus)
	orderSvc := orders.NewService(store, taskSvc, inv, bus)
	orders.NewAggregator(store, taskSvc, bus).Register()

	return &Handler{
		Store:     store,
		Inventory: inv,
		Tasks:     taskSvc,
		Orders:    orderSvc,
		Earnings:  earnings.NewReconciler(store),
		Debts:     debts.NewLedger(store),
		Bus:       bus,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUser(r.Context(), core.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	role := core.Role(req.Role)
	if role == "" {
		role = core.RoleTechnician
	}

	u := core.User{ID: core.UserID(req.ID), Name: req.Name, Role: role}
	if err := h.Store.CreateUser(r.Context(), u); err != nil {
		writeDomainError(w, err)
		return
	}
	created, err := h.Store.GetUser(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*created))
}

// RecomputeEarnings rebuilds the balance from currently approved tasks.
// Drift-repair tool, not part of normal operation.
func (h *Handler) RecomputeEarnings(w http.ResponseWriter, r *http.Request) {
	id := core.UserID(chi.URLParam(r, "id"))
	balance, err := h.Earnings.Recompute(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  id,
		"earnings": balance,
	})
}

// =============================================================================
// SPARE PART HANDLERS
// =============================================================================

func (h *Handler) ListParts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	parts, err := h.Inventory.List(r.Context(), activeOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PartDTO, len(parts))
	for i, p := range parts {
		dtos[i] = toPartDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPart(w http.ResponseWriter, r *http.Request) {
	p, err := h.Inventory.Get(r.Context(), core.PartID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartDTO(*p))
}

func (h *Handler) CreatePart(w http.ResponseWriter, r *http.Request) {
	var req SavePartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	p, err := h.Inventory.Create(r.Context(), inventory.SparePart{
		ID:        core.PartID(req.ID),
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		Supplier:  req.Supplier,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartDTO(*p))
}

func (h *Handler) UpdatePart(w http.ResponseWriter, r *http.Request) {
	var req SavePartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Inventory.Update(r.Context(), inventory.SparePart{
		ID:        core.PartID(chi.URLParam(r, "id")),
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		Supplier:  req.Supplier,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartDTO(*p))
}

func (h *Handler) DeactivatePart(w http.ResponseWriter, r *http.Request) {
	if err := h.Inventory.Deactivate(r.Context(), core.PartID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ConsumePart(w http.ResponseWriter, r *http.Request) {
	var req ConsumePartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := core.PartID(chi.URLParam(r, "id"))
	if err := h.Inventory.Consume(r.Context(), id, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := h.Inventory.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartDTO(*p))
}

func (h *Handler) RestockPart(w http.ResponseWriter, r *http.Request) {
	var req RestockPartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Inventory.Restock(r.Context(), core.PartID(chi.URLParam(r, "id")), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartDTO(*p))
}

func (h *Handler) SearchParts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	parts, err := h.Inventory.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PartDTO, len(parts))
	for i, p := range parts {
		dtos[i] = toPartDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Orders.ListVehicles(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]VehicleDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = toVehicleDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.Orders.GetVehicle(r.Context(), core.VehicleID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(*v))
}

func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	v, err := h.Orders.CreateVehicle(r.Context(), orders.Vehicle{
		Make:       req.Make,
		Model:      req.Model,
		Year:       req.Year,
		Plate:      req.Plate,
		OwnerName:  req.OwnerName,
		OwnerPhone: req.OwnerPhone,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleDTO(*v))
}

func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.DeleteVehicle(r.Context(), core.VehicleID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetVehicleLineItems(w http.ResponseWriter, r *http.Request) {
	var req SetLineItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	v, err := h.Orders.SetVehicleLineItems(r.Context(),
		core.VehicleID(chi.URLParam(r, "id")), fromLineItemDTOs(req.LineItems))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(*v))
}

// =============================================================================
// SERVICE ORDER HANDLERS
// =============================================================================

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o, err := h.Orders.CreateOrder(r.Context(), core.VehicleID(req.VehicleID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(*o))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetOrder(r.Context(), core.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*o))
}

func (h *Handler) ListVehicleOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.Orders.ListOrdersByVehicle(r.Context(), core.VehicleID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]OrderDTO, len(result))
	for i, o := range result {
		dtos[i] = toOrderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SetOrderLineItems(w http.ResponseWriter, r *http.Request) {
	var req SetLineItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o, err := h.Orders.SetOrderLineItems(r.Context(),
		core.OrderID(chi.URLParam(r, "id")), fromLineItemDTOs(req.LineItems))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*o))
}

func (h *Handler) AddUsedParts(w http.ResponseWriter, r *http.Request) {
	var req AddUsedPartsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	consumptions := make([]inventory.Consumption, len(req.Parts))
	for i, p := range req.Parts {
		consumptions[i] = inventory.Consumption{
			PartID:   core.PartID(p.PartID),
			Quantity: p.Quantity,
		}
	}

	o, err := h.Orders.AddUsedParts(r.Context(), core.OrderID(chi.URLParam(r, "id")), consumptions)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*o))
}

func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Approve(r.Context(), core.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*o))
}

func (h *Handler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // reason is optional
	}

	o, err := h.Orders.Reject(r.Context(), core.OrderID(chi.URLParam(r, "id")), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*o))
}

func (h *Handler) RestartOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Restart(r.Context(), core.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*o))
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t := tasks.Task{
		VehicleID:      core.VehicleID(req.VehicleID),
		AssigneeID:     core.UserID(req.AssigneeID),
		LineItemID:     req.LineItemID,
		Title:          req.Title,
		Priority:       tasks.Priority(req.Priority),
		EstimatedHours: req.EstimatedHours,
		Payment:        req.Payment,
	}
	if req.DueDate != nil {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due_date format (use RFC3339)", err)
			return
		}
		t.DueDate = &due
	}

	created, err := h.Tasks.Create(r.Context(), t)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(*created))
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Get(r.Context(), core.TaskID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*t))
}

func (h *Handler) ListVehicleTasks(w http.ResponseWriter, r *http.Request) {
	result, err := h.Tasks.ListByVehicle(r.Context(), core.VehicleID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTOs(result))
}

func (h *Handler) ListUserTasks(w http.ResponseWriter, r *http.Request) {
	result, err := h.Tasks.ListByAssignee(r.Context(), core.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTOs(result))
}

func (h *Handler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t, err := h.Tasks.UpdateStatus(r.Context(), actorFrom(r),
		core.TaskID(chi.URLParam(r, "id")), tasks.Status(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*t))
}

func (h *Handler) ApproveTask(w http.ResponseWriter, r *http.Request) {
	var req ApproveTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t, err := h.Tasks.Approve(r.Context(), actorFrom(r),
		core.TaskID(chi.URLParam(r, "id")), req.Approved, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*t))
}

func toTaskDTOs(result []tasks.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(result))
	for i, t := range result {
		dtos[i] = toTaskDTO(t)
	}
	return dtos
}

// =============================================================================
// DEBT HANDLERS
// =============================================================================

func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	result, err := h.Debts.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]DebtDTO, len(result))
	for i, d := range result {
		dtos[i] = toDebtDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetDebt(w http.ResponseWriter, r *http.Request) {
	d, err := h.Debts.Get(r.Context(), core.DebtID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(*d))
}

func (h *Handler) CreateDebt(w http.ResponseWriter, r *http.Request) {
	var req CreateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var due time.Time
	if req.DueDate != "" {
		var err error
		due, err = time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			// Also accept plain dates.
			due, err = time.Parse("2006-01-02", req.DueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid due_date format (use RFC3339 or YYYY-MM-DD)", err)
				return
			}
		}
	}

	d, err := h.Debts.Create(r.Context(), debts.Debt{
		Kind:              debts.Kind(req.Kind),
		CounterpartyName:  req.CounterpartyName,
		CounterpartyPhone: req.CounterpartyPhone,
		VehicleID:         core.VehicleID(req.VehicleID),
		Amount:            req.Amount,
		DueDate:           due,
		Note:              req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtDTO(*d))
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := h.Debts.RecordPayment(r.Context(),
		core.DebtID(chi.URLParam(r, "id")), req.Amount, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(*d))
}

func (h *Handler) UpcomingDebts(w http.ResponseWriter, r *http.Request) {
	withinDays := 7
	if q := r.URL.Query().Get("within_days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "within_days must be an integer", err)
			return
		}
		withinDays = n
	}

	result, err := h.Debts.Upcoming(r.Context(), withinDays)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]UpcomingDebtDTO, len(result))
	for i, u := range result {
		dtos[i] = toUpcomingDebtDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// actorFrom reads the resolved identity from request headers. Absent headers
// yield an anonymous unprivileged actor.
func actorFrom(r *http.Request) core.Actor {
	role := core.Role(r.Header.Get("X-Actor-Role"))
	if role == "" {
		role = core.RoleTechnician
	}
	return core.Actor{
		ID:   core.UserID(r.Header.Get("X-Actor-ID")),
		Role: role,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}

// writeDomainError maps the error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case core.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case core.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case core.IsInsufficientStock(err):
		writeError(w, http.StatusUnprocessableEntity, "Insufficient stock", err)
	case core.IsClientError(err):
		// Remaining client category is forbidden.
		writeError(w, http.StatusForbidden, "Forbidden", err)
	default:
		zap.S().Errorw("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
