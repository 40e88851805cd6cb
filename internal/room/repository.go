package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const roomColumns = `id, name, rented_user_id, rent_start_date, price, is_active, created_at`

// Repository handles room data persistence
type Repository struct {
	db sqlx.ExtContext
}

// NewRepository creates a new room repository
func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx
func (r *Repository) WithTx(tx *sqlx.Tx) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new room into the database
func (r *Repository) Create(ctx context.Context, room *Room) error {
	query := r.db.Rebind(`
		INSERT INTO rooms (id, name, rented_user_id, rent_start_date, price, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.Name, room.RentedUserID, room.RentStartDate, room.Price, room.IsActive, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetByID retrieves a room by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	query := r.db.Rebind(`SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`)

	room := &Room{}
	if err := sqlx.GetContext(ctx, r.db, room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// GetByTenantID retrieves the active room currently rented by a user
func (r *Repository) GetByTenantID(ctx context.Context, userID uuid.UUID) (*Room, error) {
	query := r.db.Rebind(`
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE rented_user_id = ? AND is_active = TRUE
		ORDER BY created_at
		LIMIT 1
	`)

	room := &Room{}
	if err := sqlx.GetContext(ctx, r.db, room, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get room by tenant: %w", err)
	}
	return room, nil
}

// List retrieves all rooms ordered by name
func (r *Repository) List(ctx context.Context) ([]*Room, error) {
	rooms := []*Room{}
	if err := sqlx.SelectContext(ctx, r.db, &rooms, `SELECT `+roomColumns+` FROM rooms ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// ListActiveTenancies returns every active room with a tenant and a rent start date
func (r *Repository) ListActiveTenancies(ctx context.Context) ([]Tenancy, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE is_active = TRUE
		  AND rented_user_id IS NOT NULL
		  AND rent_start_date IS NOT NULL
		ORDER BY name
	`

	rooms := []*Room{}
	if err := sqlx.SelectContext(ctx, r.db, &rooms, query); err != nil {
		return nil, fmt.Errorf("failed to list active tenancies: %w", err)
	}

	tenancies := make([]Tenancy, 0, len(rooms))
	for _, room := range rooms {
		if t, ok := room.Tenancy(); ok {
			tenancies = append(tenancies, t)
		}
	}
	return tenancies, nil
}

// AssignTenant sets the tenant and rent start date of a room
func (r *Repository) AssignTenant(ctx context.Context, id, userID uuid.UUID, start time.Time) error {
	query := r.db.Rebind(`UPDATE rooms SET rented_user_id = ?, rent_start_date = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, userID, start, id); err != nil {
		return fmt.Errorf("failed to assign tenant: %w", err)
	}
	return nil
}

// Vacate clears the tenant of a room
func (r *Repository) Vacate(ctx context.Context, id uuid.UUID) error {
	query := r.db.Rebind(`UPDATE rooms SET rented_user_id = NULL, rent_start_date = NULL WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to vacate room: %w", err)
	}
	return nil
}
