package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Room represents a rentable room. A room is occupied when RentedUserID is set.
type Room struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	RentedUserID  *uuid.UUID      `db:"rented_user_id" json:"rented_user_id,omitempty"`
	RentStartDate *time.Time      `db:"rent_start_date" json:"rent_start_date,omitempty"`
	Price         decimal.Decimal `db:"price" json:"price"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Tenancy is an active room with an assigned tenant and a rent start date.
// The day of month of RentStart is the tenant's due day.
type Tenancy struct {
	RoomID    uuid.UUID
	RoomName  string
	TenantID  uuid.UUID
	RentStart time.Time
	Price     decimal.Decimal
}

// DueDay returns the day of month rent falls due
func (t Tenancy) DueDay() int {
	return t.RentStart.Day()
}

// Tenancy converts an occupied active room into a Tenancy
func (r *Room) Tenancy() (Tenancy, bool) {
	if !r.IsActive || r.RentedUserID == nil || r.RentStartDate == nil {
		return Tenancy{}, false
	}
	return Tenancy{
		RoomID:    r.ID,
		RoomName:  r.Name,
		TenantID:  *r.RentedUserID,
		RentStart: *r.RentStartDate,
		Price:     r.Price,
	}, true
}
