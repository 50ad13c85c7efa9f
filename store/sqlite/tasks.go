package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/tasks"
)

var _ tasks.Store = (*Store)(nil)

const taskColumns = `id, vehicle_id, assignee_id, line_item_id, title, priority, due_date,
	estimated_hours, actual_hours, payment, status, completed_at, approved_at,
	rejection_reason, created_at, updated_at`

// GetTask returns the task or a NotFound error.
func (s *Store) GetTask(ctx context.Context, id core.TaskID) (*tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "task", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, t tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowStamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, vehicle_id, assignee_id, line_item_id, title, priority, due_date,
			estimated_hours, actual_hours, payment, status, completed_at, approved_at,
			rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.VehicleID, t.AssigneeID, t.LineItemID, t.Title, t.Priority,
		nullTime(t.DueDate), t.EstimatedHours.String(), t.ActualHours.String(),
		t.Payment.String(), t.Status, nullTime(t.CompletedAt), nullTime(t.ApprovedAt),
		t.RejectionReason, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// SaveTaskState persists status, stamps, rejection reason and actual hours.
// Identity fields (vehicle, assignee, title, payment) are not rewritten.
func (s *Store) SaveTaskState(ctx context.Context, t tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, completed_at = ?, approved_at = ?, rejection_reason = ?,
			actual_hours = ?, updated_at = ?
		WHERE id = ?`,
		t.Status, nullTime(t.CompletedAt), nullTime(t.ApprovedAt),
		t.RejectionReason, t.ActualHours.String(), nowStamp(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "task", ID: string(t.ID)}
	}
	return nil
}

// ListTasksByVehicle returns the vehicle's tasks, oldest first.
func (s *Store) ListTasksByVehicle(ctx context.Context, vehicleID core.VehicleID) ([]tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE vehicle_id = ? ORDER BY created_at, rowid",
		vehicleID)
}

// ListTasksByAssignee returns the assignee's tasks, newest first.
func (s *Store) ListTasksByAssignee(ctx context.Context, assigneeID core.UserID) ([]tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE assignee_id = ? ORDER BY created_at DESC, rowid DESC",
		assigneeID)
}

// ApproveTaskAndCredit flips the task from completed to approved, stamps the
// approval time and credits the task's payment to the assignee's earnings,
// all in one transaction. A task no longer in completed status reports false
// with nothing written, which makes re-running an approval cascade safe: an
// already-approved task is skipped, never double-credited.
func (s *Store) ApproveTaskAndCredit(ctx context.Context, id core.TaskID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stamp := at.UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, approved_at = ?, rejection_reason = '', updated_at = ?
		WHERE id = ? AND status = ?`,
		tasks.StatusApproved, stamp, nowStamp(), id, tasks.StatusCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM tasks WHERE id = ?", id).Scan(&exists); err != nil {
			return false, err
		}
		if exists == 0 {
			return false, &core.NotFoundError{Entity: "task", ID: string(id)}
		}
		return false, nil
	}

	var assigneeID, payment string
	if err := tx.QueryRowContext(ctx,
		"SELECT assignee_id, payment FROM tasks WHERE id = ?", id,
	).Scan(&assigneeID, &payment); err != nil {
		return false, err
	}

	// The credit rides the same transaction as the flip; a missing assignee
	// rolls both back.
	if err := creditEarningsTx(ctx, tx, core.UserID(assigneeID), parseDecimal(payment)); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// RejectCompletedTasks moves every completed task of the vehicle to rejected
// with the given reason. Returns the number of tasks moved.
func (s *Store) RejectCompletedTasks(ctx context.Context, vehicleID core.VehicleID, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE vehicle_id = ? AND status = ?`,
		tasks.StatusRejected, reason, nowStamp(), vehicleID, tasks.StatusCompleted,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reject tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RestartRejectedTasks moves every rejected task of the vehicle back to
// in-progress and clears its rejection reason.
func (s *Store) RestartRejectedTasks(ctx context.Context, vehicleID core.VehicleID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, rejection_reason = '', completed_at = NULL, updated_at = ?
		WHERE vehicle_id = ? AND status = ?`,
		tasks.StatusInProgress, nowStamp(), vehicleID, tasks.StatusRejected,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to restart tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]tasks.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var result []tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func scanTask(row rowScanner) (*tasks.Task, error) {
	var t tasks.Task
	var dueDate, completedAt, approvedAt sql.NullString
	var estimatedHours, actualHours, payment, createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.VehicleID, &t.AssigneeID, &t.LineItemID, &t.Title,
		&t.Priority, &dueDate, &estimatedHours, &actualHours, &payment, &t.Status,
		&completedAt, &approvedAt, &t.RejectionReason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.DueDate = parseTimePtr(dueDate)
	t.CompletedAt = parseTimePtr(completedAt)
	t.ApprovedAt = parseTimePtr(approvedAt)
	t.EstimatedHours = parseDecimal(estimatedHours)
	t.ActualHours = parseDecimal(actualHours)
	t.Payment = parseDecimal(payment)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}
