package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/earnings"
	"github.com/warp/workshop-engine/tasks"
)

var _ earnings.UserStore = (*Store)(nil)

// GetUser returns the user or a NotFound error.
func (s *Store) GetUser(ctx context.Context, id core.UserID) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, role, earnings, created_at FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "user", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a member. A duplicate id is a Conflict.
func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, role, earnings, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Role, u.Earnings.String(), nowStamp(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ConflictError{Entity: "user", Field: "id", Value: string(u.ID)}
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// ListUsers returns all members ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, role, earnings, created_at FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CreditEarnings atomically increases the user's balance.
func (s *Store) CreditEarnings(ctx context.Context, id core.UserID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := creditEarningsTx(ctx, tx, id, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// creditEarningsTx is the read-add-write credit inside an open transaction.
// Balances are TEXT decimals, so the arithmetic happens in Go; the store
// mutex plus the transaction make the read-modify-write atomic.
func creditEarningsTx(ctx context.Context, tx *sql.Tx, id core.UserID, amount decimal.Decimal) error {
	var balance string
	err := tx.QueryRowContext(ctx,
		"SELECT earnings FROM users WHERE id = ?", id).Scan(&balance)
	if err == sql.ErrNoRows {
		return &core.NotFoundError{Entity: "user", ID: string(id)}
	}
	if err != nil {
		return err
	}

	updated := parseDecimal(balance).Add(amount)
	_, err = tx.ExecContext(ctx,
		"UPDATE users SET earnings = ? WHERE id = ?", updated.String(), id)
	return err
}

// RecomputeEarnings overwrites the balance with the sum of payment over the
// user's currently approved tasks and returns the new balance. Drift-repair
// only; the normal path is the per-approval credit.
func (s *Store) RecomputeEarnings(ctx context.Context, id core.UserID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE id = ?", id).Scan(&exists); err != nil {
		return decimal.Zero, err
	}
	if exists == 0 {
		return decimal.Zero, &core.NotFoundError{Entity: "user", ID: string(id)}
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT payment FROM tasks WHERE assignee_id = ? AND status = ?",
		id, tasks.StatusApproved)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for rows.Next() {
		var payment string
		if err := rows.Scan(&payment); err != nil {
			rows.Close()
			return decimal.Zero, err
		}
		total = total.Add(parseDecimal(payment))
	}
	// Release the cursor before writing on the same transaction connection.
	if err := rows.Close(); err != nil {
		return decimal.Zero, err
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET earnings = ? WHERE id = ?", total.String(), id); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func scanUser(row rowScanner) (*core.User, error) {
	var u core.User
	var balance, createdAt string

	err := row.Scan(&u.ID, &u.Name, &u.Role, &balance, &createdAt)
	if err != nil {
		return nil, err
	}

	u.Earnings = parseDecimal(balance)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}
