// Package tasks owns a single unit of assigned repair work and its
// lifecycle: assigned -> in-progress -> completed -> {approved, rejected}.
package tasks

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// Valid reports whether s is one of the five task statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusCompleted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the task counts as done for order aggregation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusApproved
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// =============================================================================
// TASK
// =============================================================================

// Task is a unit of assigned technician work, optionally tied to a service
// order line item. Payment is credited to the assignee's earnings exactly
// once, on approval.
type Task struct {
	ID             core.TaskID
	VehicleID      core.VehicleID
	AssigneeID     core.UserID
	LineItemID     string // optional reference to a service order line item
	Title          string
	Priority       Priority
	DueDate        *time.Time
	EstimatedHours decimal.Decimal
	ActualHours    decimal.Decimal
	Payment        decimal.Decimal
	Status         Status
	CompletedAt    *time.Time
	ApprovedAt     *time.Time
	RejectionReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
