package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/thoriqulumar/kostan-be/internal/database"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// It is closed automatically when the test completes.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	if _, err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// InsertUser adds a user row and returns its id.
func InsertUser(t *testing.T, db *sqlx.DB, email, role string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO users (id, email, full_name, role, is_active, created_at) VALUES (?, ?, ?, ?, TRUE, ?)`,
		id, email, "Test "+role, role, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("inserting user %s: %v", email, err)
	}
	return id
}

// Room describes a room fixture. Zero TenantID leaves the room vacant.
type Room struct {
	Name      string
	Price     decimal.Decimal
	TenantID  uuid.UUID
	RentStart time.Time
	Inactive  bool
}

// InsertRoom adds a room row and returns its id.
func InsertRoom(t *testing.T, db *sqlx.DB, r Room) uuid.UUID {
	t.Helper()

	var tenant *uuid.UUID
	if r.TenantID != uuid.Nil {
		tenant = &r.TenantID
	}
	var start *time.Time
	if !r.RentStart.IsZero() {
		start = &r.RentStart
	}

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO rooms (id, name, rented_user_id, rent_start_date, price, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, r.Name, tenant, start, r.Price, !r.Inactive, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("inserting room %s: %v", r.Name, err)
	}
	return id
}

// Receipt describes a payment receipt fixture.
type Receipt struct {
	UserID uuid.UUID
	RoomID uuid.UUID
	Month  int
	Year   int
	Amount decimal.Decimal
	Status string
	Path   string
}

// InsertReceipt adds a payment receipt row and returns its id. Status defaults
// to pending.
func InsertReceipt(t *testing.T, db *sqlx.DB, r Receipt) uuid.UUID {
	t.Helper()

	if r.Status == "" {
		r.Status = "pending"
	}
	if r.Path == "" {
		r.Path = fmt.Sprintf("payment-receipts/receipt-%s.png", uuid.NewString())
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO payment_receipts (id, user_id, room_id, payment_month, payment_year, amount,
			receipt_file_path, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.UserID, r.RoomID, r.Month, r.Year, r.Amount, r.Path, r.Status, now, now,
	)
	if err != nil {
		t.Fatalf("inserting receipt: %v", err)
	}
	return id
}

// Count returns SELECT COUNT(*) for the given table and optional where clause.
func Count(t *testing.T, db *sqlx.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.Get(&n, query, args...); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

// Clock is a manually advanced clock for deterministic timestamps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time and advances it by one millisecond so
// consecutive rows keep a stable order.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(time.Millisecond)
	return now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
