/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All monetary fields are decimal.Decimal, which serializes as a quoted
  string ("149.99"). Clients must not send floats.

VALIDATION:
  Validation is done in the domain services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/debts"
	"github.com/warp/workshop-engine/inventory"
	"github.com/warp/workshop-engine/orders"
	"github.com/warp/workshop-engine/tasks"
)

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Role      string          `json:"role"`
	Earnings  decimal.Decimal `json:"earnings"`
	CreatedAt string          `json:"created_at,omitempty"`
}

type CreateUserRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func toUserDTO(u core.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Role:      string(u.Role),
		Earnings:  u.Earnings,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SPARE PARTS
// =============================================================================

type PartDTO struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int64           `json:"quantity"`
	UsageCount int64           `json:"usage_count"`
	Supplier   string          `json:"supplier,omitempty"`
	Active     bool            `json:"active"`
	CreatedAt  string          `json:"created_at,omitempty"`
	UpdatedAt  string          `json:"updated_at,omitempty"`
}

type SavePartRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Supplier  string          `json:"supplier"`
}

type ConsumePartRequest struct {
	Quantity int64 `json:"quantity"`
}

type RestockPartRequest struct {
	Quantity int64 `json:"quantity"`
}

func toPartDTO(p inventory.SparePart) PartDTO {
	return PartDTO{
		ID:         string(p.ID),
		Name:       p.Name,
		UnitPrice:  p.UnitPrice,
		Quantity:   p.Quantity,
		UsageCount: p.UsageCount,
		Supplier:   p.Supplier,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  p.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// VEHICLES AND LINE ITEMS
// =============================================================================

type LineItemDTO struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

type VehicleDTO struct {
	ID            string          `json:"id"`
	Make          string          `json:"make"`
	Model         string          `json:"model"`
	Year          int             `json:"year,omitempty"`
	Plate         string          `json:"plate"`
	OwnerName     string          `json:"owner_name,omitempty"`
	OwnerPhone    string          `json:"owner_phone,omitempty"`
	LineItems     []LineItemDTO   `json:"line_items"`
	TotalEstimate decimal.Decimal `json:"total_estimate"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

type CreateVehicleRequest struct {
	Make       string `json:"make"`
	Model      string `json:"model"`
	Year       int    `json:"year"`
	Plate      string `json:"plate"`
	OwnerName  string `json:"owner_name"`
	OwnerPhone string `json:"owner_phone"`
}

type SetLineItemsRequest struct {
	LineItems []LineItemDTO `json:"line_items"`
}

func toLineItemDTO(li orders.LineItem) LineItemDTO {
	return LineItemDTO{
		ID:        li.ID,
		Name:      li.Name,
		Category:  string(li.Category),
		UnitPrice: li.UnitPrice,
		Quantity:  li.Quantity,
		Total:     li.Total(),
	}
}

func toLineItemDTOs(items []orders.LineItem) []LineItemDTO {
	dtos := make([]LineItemDTO, len(items))
	for i, li := range items {
		dtos[i] = toLineItemDTO(li)
	}
	return dtos
}

func fromLineItemDTOs(dtos []LineItemDTO) []orders.LineItem {
	items := make([]orders.LineItem, len(dtos))
	for i, d := range dtos {
		items[i] = orders.LineItem{
			ID:        d.ID,
			Name:      d.Name,
			Category:  orders.LineItemCategory(d.Category),
			UnitPrice: d.UnitPrice,
			Quantity:  d.Quantity,
		}
	}
	return items
}

func toVehicleDTO(v orders.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:            string(v.ID),
		Make:          v.Make,
		Model:         v.Model,
		Year:          v.Year,
		Plate:         v.Plate,
		OwnerName:     v.OwnerName,
		OwnerPhone:    v.OwnerPhone,
		LineItems:     toLineItemDTOs(v.LineItems),
		TotalEstimate: v.TotalEstimate,
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     v.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SERVICE ORDERS
// =============================================================================

type UsedPartDTO struct {
	ID        string          `json:"id"`
	PartID    string          `json:"part_id"`
	PartName  string          `json:"part_name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderDTO struct {
	ID              string          `json:"id"`
	VehicleID       string          `json:"vehicle_id"`
	Status          string          `json:"status"`
	LineItems       []LineItemDTO   `json:"line_items"`
	UsedParts       []UsedPartDTO   `json:"used_parts"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
	UpdatedAt       string          `json:"updated_at,omitempty"`
}

type CreateOrderRequest struct {
	VehicleID string `json:"vehicle_id"`
}

type AddUsedPartsRequest struct {
	Parts []ConsumptionDTO `json:"parts"`
}

type ConsumptionDTO struct {
	PartID   string `json:"part_id"`
	Quantity int64  `json:"quantity"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func toOrderDTO(o orders.ServiceOrder) OrderDTO {
	usedParts := make([]UsedPartDTO, len(o.UsedParts))
	for i, up := range o.UsedParts {
		usedParts[i] = UsedPartDTO{
			ID:        up.ID,
			PartID:    string(up.PartID),
			PartName:  up.PartName,
			Quantity:  up.Quantity,
			UnitPrice: up.UnitPrice,
			LineTotal: up.LineTotal,
		}
	}
	return OrderDTO{
		ID:              string(o.ID),
		VehicleID:       string(o.VehicleID),
		Status:          string(o.Status),
		LineItems:       toLineItemDTOs(o.LineItems),
		UsedParts:       usedParts,
		TotalPrice:      o.TotalPrice,
		RejectionReason: o.RejectionReason,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// TASKS
// =============================================================================

type TaskDTO struct {
	ID              string          `json:"id"`
	VehicleID       string          `json:"vehicle_id"`
	AssigneeID      string          `json:"assignee_id"`
	LineItemID      string          `json:"line_item_id,omitempty"`
	Title           string          `json:"title"`
	Priority        string          `json:"priority"`
	DueDate         *string         `json:"due_date,omitempty"`
	EstimatedHours  decimal.Decimal `json:"estimated_hours"`
	ActualHours     decimal.Decimal `json:"actual_hours"`
	Payment         decimal.Decimal `json:"payment"`
	Status          string          `json:"status"`
	CompletedAt     *string         `json:"completed_at,omitempty"`
	ApprovedAt      *string         `json:"approved_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
	UpdatedAt       string          `json:"updated_at,omitempty"`
}

type CreateTaskRequest struct {
	VehicleID      string          `json:"vehicle_id"`
	AssigneeID     string          `json:"assignee_id"`
	LineItemID     string          `json:"line_item_id"`
	Title          string          `json:"title"`
	Priority       string          `json:"priority"`
	DueDate        *string         `json:"due_date"`
	EstimatedHours decimal.Decimal `json:"estimated_hours"`
	Payment        decimal.Decimal `json:"payment"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status"`
}

type ApproveTaskRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

func toTaskDTO(t tasks.Task) TaskDTO {
	return TaskDTO{
		ID:              string(t.ID),
		VehicleID:       string(t.VehicleID),
		AssigneeID:      string(t.AssigneeID),
		LineItemID:      t.LineItemID,
		Title:           t.Title,
		Priority:        string(t.Priority),
		DueDate:         stampPtr(t.DueDate),
		EstimatedHours:  t.EstimatedHours,
		ActualHours:     t.ActualHours,
		Payment:         t.Payment,
		Status:          string(t.Status),
		CompletedAt:     stampPtr(t.CompletedAt),
		ApprovedAt:      stampPtr(t.ApprovedAt),
		RejectionReason: t.RejectionReason,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// DEBTS
// =============================================================================

type PaymentDTO struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	PaidAt string          `json:"paid_at"`
	Note   string          `json:"note,omitempty"`
}

type DebtDTO struct {
	ID                string          `json:"id"`
	Kind              string          `json:"kind"`
	CounterpartyName  string          `json:"counterparty_name"`
	CounterpartyPhone string          `json:"counterparty_phone,omitempty"`
	VehicleID         string          `json:"vehicle_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Status            string          `json:"status"`
	DueDate           string          `json:"due_date"`
	Note              string          `json:"note,omitempty"`
	Payments          []PaymentDTO    `json:"payments"`
	CreatedAt         string          `json:"created_at,omitempty"`
	UpdatedAt         string          `json:"updated_at,omitempty"`
}

type CreateDebtRequest struct {
	Kind              string          `json:"kind"`
	CounterpartyName  string          `json:"counterparty_name"`
	CounterpartyPhone string          `json:"counterparty_phone"`
	VehicleID         string          `json:"vehicle_id"`
	Amount            decimal.Decimal `json:"amount"`
	DueDate           string          `json:"due_date"`
	Note              string          `json:"note"`
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type UpcomingDebtDTO struct {
	DebtDTO
	DaysRemaining int    `json:"days_remaining"`
	Urgency       string `json:"urgency"`
}

func toDebtDTO(d debts.Debt) DebtDTO {
	payments := make([]PaymentDTO, len(d.Payments))
	for i, p := range d.Payments {
		payments[i] = PaymentDTO{
			ID:     p.ID,
			Amount: p.Amount,
			PaidAt: p.PaidAt.Format(time.RFC3339),
			Note:   p.Note,
		}
	}
	return DebtDTO{
		ID:                string(d.ID),
		Kind:              string(d.Kind),
		CounterpartyName:  d.CounterpartyName,
		CounterpartyPhone: d.CounterpartyPhone,
		VehicleID:         string(d.VehicleID),
		Amount:            d.Amount,
		PaidAmount:        d.PaidAmount,
		Status:            string(d.Status),
		DueDate:           d.DueDate.Format(time.RFC3339),
		Note:              d.Note,
		Payments:          payments,
		CreatedAt:         d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         d.UpdatedAt.Format(time.RFC3339),
	}
}

func toUpcomingDebtDTO(u debts.UpcomingDebt) UpcomingDebtDTO {
	return UpcomingDebtDTO{
		DebtDTO:       toDebtDTO(u.Debt),
		DaysRemaining: u.DaysRemaining,
		Urgency:       string(u.Urgency),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func stampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
