/*
service.go - Task lifecycle operations

PURPOSE:
  Two write paths exist, with one enforcement point between them:

  1. UpdateStatus: the generic status update. Accepts any of the five
     statuses, but entering "approved" or "rejected" requires the task to
     currently be "completed" - the same precondition the dedicated approval
     operation enforces. Entering "completed" stamps the completion time and
     publishes TaskCompleted so the order aggregator can re-evaluate the
     vehicle.

  2. Approve: the dedicated approval operation. Approving flips the status
     and credits the assignee's payment in ONE database transaction
     (Store.ApproveTaskAndCredit), so a crash can never leave a task
     approved but uncredited or vice versa. Rejecting requires a reason
     (a default is supplied) and stamps nothing.

CASCADE SUPPORT:
  The order machine approves, rejects, or restarts a vehicle's tasks in
  bulk. Approval fans out as a per-task saga: each task is processed
  independently and the conditional flip (status must still be "completed")
  makes re-running the cascade safe - an already-approved task is skipped,
  never double-credited.

AUTHORIZATION-SHAPED RULE:
  A non-privileged actor may only update a task it is assigned to.
  Staff and master may update any task.
*/
package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/workshop-engine/core"
)

// DefaultRejectionReason is used when a rejection supplies no reason.
const DefaultRejectionReason = "not specified"

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence contract for tasks.
type Store interface {
	GetTask(ctx context.Context, id core.TaskID) (*Task, error)
	CreateTask(ctx context.Context, t Task) error

	// SaveTaskState persists status, stamps, rejection reason and actual
	// hours from the struct.
	SaveTaskState(ctx context.Context, t Task) error

	ListTasksByVehicle(ctx context.Context, vehicleID core.VehicleID) ([]Task, error)
	ListTasksByAssignee(ctx context.Context, assigneeID core.UserID) ([]Task, error)

	// ApproveTaskAndCredit conditionally flips the task from completed to
	// approved, stamps the approval time and credits the task's payment to
	// the assignee's earnings, all in one transaction. Returns false when
	// the task was not in completed status (already processed or not done).
	ApproveTaskAndCredit(ctx context.Context, id core.TaskID, at time.Time) (bool, error)

	// RejectCompletedTasks moves every completed task of the vehicle to
	// rejected with the given reason. Returns the number of tasks moved.
	RejectCompletedTasks(ctx context.Context, vehicleID core.VehicleID, reason string) (int, error)

	// RestartRejectedTasks moves every rejected task of the vehicle back to
	// in-progress and clears its rejection reason.
	RestartRejectedTasks(ctx context.Context, vehicleID core.VehicleID) (int, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store Store
	Bus   *core.Bus
}

func NewService(store Store, bus *core.Bus) *Service {
	return &Service{Store: store, Bus: bus}
}

// Create validates and persists a new task in assigned status.
func (s *Service) Create(ctx context.Context, t Task) (*Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, &core.ValidationError{Field: "title", Message: "required"}
	}
	if t.VehicleID == "" {
		return nil, &core.ValidationError{Field: "vehicle_id", Message: "required"}
	}
	if t.AssigneeID == "" {
		return nil, &core.ValidationError{Field: "assignee_id", Message: "required"}
	}
	if t.Payment.IsNegative() {
		return nil, &core.ValidationError{Field: "payment", Message: "must not be negative"}
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.ID == "" {
		t.ID = core.TaskID(uuid.NewString())
	}
	t.Status = StatusAssigned
	if err := s.Store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	return s.Store.GetTask(ctx, t.ID)
}

func (s *Service) Get(ctx context.Context, id core.TaskID) (*Task, error) {
	return s.Store.GetTask(ctx, id)
}

func (s *Service) ListByVehicle(ctx context.Context, vehicleID core.VehicleID) ([]Task, error) {
	return s.Store.ListTasksByVehicle(ctx, vehicleID)
}

func (s *Service) ListByAssignee(ctx context.Context, assigneeID core.UserID) ([]Task, error) {
	return s.Store.ListTasksByAssignee(ctx, assigneeID)
}

// UpdateStatus is the generic status update. Entering completed stamps the
// completion time and publishes TaskCompleted; entering approved or rejected
// is routed through the same preconditions as the dedicated approval
// operation, so there is a single enforcement point.
func (s *Service) UpdateStatus(ctx context.Context, actor core.Actor, id core.TaskID, status Status) (*Task, error) {
	if !status.Valid() {
		return nil, &core.ValidationError{Field: "status", Message: "unknown status " + string(status)}
	}

	t, err := s.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Privileged() && actor.ID != t.AssigneeID {
		return nil, &core.ForbiddenError{ActorID: actor.ID, Entity: "task", ID: string(id)}
	}

	switch status {
	case StatusApproved:
		return s.Approve(ctx, actor, id, true, "")
	case StatusRejected:
		return s.Approve(ctx, actor, id, false, "")
	}

	now := time.Now().UTC()
	switch status {
	case StatusCompleted:
		t.CompletedAt = &now
	case StatusInProgress, StatusAssigned:
		// Moving out of rejected clears the reason, like an order restart.
		t.RejectionReason = ""
	}
	t.Status = status
	t.UpdatedAt = now

	if err := s.Store.SaveTaskState(ctx, *t); err != nil {
		return nil, err
	}

	if status == StatusCompleted {
		s.Bus.Publish(ctx, core.TaskCompleted{TaskID: t.ID, VehicleID: t.VehicleID, At: now})
	}
	return t, nil
}

// Approve is the dedicated approval operation: only legal when the task is
// completed. Approving credits the payment atomically with the status flip;
// rejecting records a reason and stamps nothing.
func (s *Service) Approve(ctx context.Context, actor core.Actor, id core.TaskID, approved bool, reason string) (*Task, error) {
	t, err := s.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Privileged() && actor.ID != t.AssigneeID {
		return nil, &core.ForbiddenError{ActorID: actor.ID, Entity: "task", ID: string(id)}
	}
	if t.Status != StatusCompleted {
		to := StatusApproved
		if !approved {
			to = StatusRejected
		}
		return nil, &core.InvalidTransitionError{
			Entity: "task", ID: string(id), From: string(t.Status), To: string(to),
		}
	}

	now := time.Now().UTC()
	if approved {
		if _, err := s.Store.ApproveTaskAndCredit(ctx, id, now); err != nil {
			return nil, err
		}
		return s.Store.GetTask(ctx, id)
	}

	if strings.TrimSpace(reason) == "" {
		reason = DefaultRejectionReason
	}
	t.Status = StatusRejected
	t.RejectionReason = reason
	t.UpdatedAt = now
	if err := s.Store.SaveTaskState(ctx, *t); err != nil {
		return nil, err
	}
	return t, nil
}

// =============================================================================
// CASCADE OPERATIONS (driven by the order machine)
// =============================================================================

// ApproveCompletedForVehicle approves every currently-completed task of the
// vehicle, crediting each payment exactly once. Each task is its own
// transaction, so a crash mid-cascade resumes cleanly: tasks already flipped
// are skipped on the next run.
func (s *Service) ApproveCompletedForVehicle(ctx context.Context, vehicleID core.VehicleID, at time.Time) (int, error) {
	all, err := s.Store.ListTasksByVehicle(ctx, vehicleID)
	if err != nil {
		return 0, err
	}
	approved := 0
	for _, t := range all {
		if t.Status != StatusCompleted {
			continue
		}
		flipped, err := s.Store.ApproveTaskAndCredit(ctx, t.ID, at)
		if err != nil {
			return approved, err
		}
		if flipped {
			approved++
		}
	}
	return approved, nil
}

// RejectCompletedForVehicle moves every completed task to rejected with the
// given reason (a default is supplied when empty).
func (s *Service) RejectCompletedForVehicle(ctx context.Context, vehicleID core.VehicleID, reason string) (int, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultRejectionReason
	}
	return s.Store.RejectCompletedTasks(ctx, vehicleID, reason)
}

// RestartRejectedForVehicle returns every rejected task to in-progress with
// no rejection reason retained.
func (s *Service) RestartRejectedForVehicle(ctx context.Context, vehicleID core.VehicleID) (int, error) {
	return s.Store.RestartRejectedTasks(ctx, vehicleID)
}

// AllDone reports whether every task of the vehicle is completed or
// approved. A vehicle with no tasks is not done.
func (s *Service) AllDone(ctx context.Context, vehicleID core.VehicleID) (bool, error) {
	all, err := s.Store.ListTasksByVehicle(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	if len(all) == 0 {
		return false, nil
	}
	for _, t := range all {
		if !t.Status.Terminal() {
			return false, nil
		}
	}
	return true, nil
}
