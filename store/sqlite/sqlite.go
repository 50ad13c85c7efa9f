/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence contract of the engine using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  inventory.Store:    Spare part catalog, stock counts, usage counters
  orders.Store:       Vehicles, line items, service orders, used parts
  tasks.Store:        Task records and the flip-and-credit transaction
  debts.Store:        Debt records with an append-only payment history
  earnings.UserStore: Users and their earnings balances

ATOMICITY:
  The invariants that pair two writes live here, inside single SQL
  transactions:
  - ConsumeParts decrements quantity with a conditional UPDATE
    (quantity >= requested), so validation and decrement are one statement
    and a racing consumer can never pass against a stale count.
  - ApproveTaskAndCredit flips the task from completed to approved and
    credits the assignee's earnings in the same transaction.
  - AppendPayment inserts the payment row and persists the recomputed paid
    amount and status together.
  - SetOrderStatus is a compare-and-set on the current status.

KEY TABLES:
  users:              Members and their earnings balances
  spare_parts:        Catalog with on-hand quantity and usage counter
  vehicles:           Customer vehicles (plate unique)
  vehicle_line_items: Estimate lines attached to a vehicle
  service_orders:     Order state machine rows
  order_line_items:   Priced lines attached to an order
  order_used_parts:   Price snapshots of consumed stock
  tasks:              Assigned work and its lifecycle
  debts:              Receivable/payable records
  debt_payments:      Append-only payment history

MONEY:
  All monetary values are stored as TEXT via decimal.Decimal.String() and
  re-parsed on read. Arithmetic happens in Go, never in SQL, so REAL
  rounding can never corrupt a balance.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's single writer.
  WAL mode keeps readers unblocked while a write is in flight.

USAGE:
  store, err := sqlite.New("./data/workshop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := inventory.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - inventory/ledger.go, orders/service.go, tasks/service.go,
    debts/ledger.go, earnings/reconciler.go: interface definitions
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single pooled connection: with ":memory:" every new connection would
	// be a fresh empty database, and writes are serialized by s.mu anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users (members and earnings balances)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		earnings TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Spare parts catalog
	CREATE TABLE IF NOT EXISTS spare_parts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		supplier TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Soft uniqueness: only one ACTIVE part per case-insensitive name.
	-- A deactivated part frees its name for reuse.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_spare_parts_active_name
		ON spare_parts(LOWER(name)) WHERE active;

	CREATE INDEX IF NOT EXISTS idx_spare_parts_usage
		ON spare_parts(usage_count DESC, name);

	-- Vehicles
	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		plate TEXT NOT NULL UNIQUE,
		owner_name TEXT,
		owner_phone TEXT,
		total_estimate TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vehicle_line_items (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		quantity TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vehicle_line_items_vehicle
		ON vehicle_line_items(vehicle_id);

	-- Service orders
	CREATE TABLE IF NOT EXISTS service_orders (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_price TEXT NOT NULL DEFAULT '0',
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_service_orders_vehicle
		ON service_orders(vehicle_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS order_line_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES service_orders(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		quantity TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_order_line_items_order
		ON order_line_items(order_id);

	-- Used part snapshots (append-only: stock left the shelf)
	CREATE TABLE IF NOT EXISTS order_used_parts (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES service_orders(id) ON DELETE CASCADE,
		part_id TEXT NOT NULL,
		part_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		line_total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_order_used_parts_order
		ON order_used_parts(order_id);

	-- Tasks
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		assignee_id TEXT NOT NULL,
		line_item_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		priority TEXT NOT NULL,
		due_date TEXT,
		estimated_hours TEXT NOT NULL DEFAULT '0',
		actual_hours TEXT NOT NULL DEFAULT '0',
		payment TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		completed_at TEXT,
		approved_at TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_vehicle ON tasks(vehicle_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

	-- Debts
	CREATE TABLE IF NOT EXISTS debts (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		counterparty_name TEXT NOT NULL,
		counterparty_phone TEXT NOT NULL DEFAULT '',
		vehicle_id TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		due_date TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_debts_status_due ON debts(status, due_date);

	-- Payment history (append-only)
	CREATE TABLE IF NOT EXISTS debt_payments (
		id TEXT PRIMARY KEY,
		debt_id TEXT NOT NULL REFERENCES debts(id) ON DELETE CASCADE,
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_debt_payments_debt ON debt_payments(debt_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, _ := time.Parse(time.RFC3339, ns.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "idx_spare_parts_active_name"))
}
