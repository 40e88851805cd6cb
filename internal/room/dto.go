package room

import "github.com/shopspring/decimal"

// CreateRoomRequest represents the request to create a room
type CreateRoomRequest struct {
	Name  string          `json:"name" validate:"notblank"`
	Price decimal.Decimal `json:"price" validate:"gt=0"`
}

// AssignTenantRequest represents the request to rent a room to a user
type AssignTenantRequest struct {
	UserID        string `json:"user_id" validate:"required,uuid"`
	RentStartDate string `json:"rent_start_date" validate:"required,datetime=2006-01-02"`
}

// RoomResponse represents the response for a room
type RoomResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	RentedUserID  *string         `json:"rented_user_id,omitempty"`
	RentStartDate *string         `json:"rent_start_date,omitempty"`
	Price         decimal.Decimal `json:"price"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     string          `json:"created_at"`
}

// ToResponse converts a Room model to a RoomResponse DTO
func (r *Room) ToResponse() *RoomResponse {
	resp := &RoomResponse{
		ID:        r.ID.String(),
		Name:      r.Name,
		Price:     r.Price,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if r.RentedUserID != nil {
		id := r.RentedUserID.String()
		resp.RentedUserID = &id
	}
	if r.RentStartDate != nil {
		start := r.RentStartDate.Format("2006-01-02")
		resp.RentStartDate = &start
	}
	return resp
}
