package room

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thoriqulumar/kostan-be/internal/billing"
	"github.com/thoriqulumar/kostan-be/internal/database"
)

// Common errors
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomNameTaken    = errors.New("room name already in use")
	ErrRoomOccupied     = errors.New("room is already rented")
	ErrTenantHasRoom    = errors.New("user already rents a room")
	ErrNoRoomRented     = errors.New("you are not currently renting a room")
	ErrInvalidRoom      = errors.New("room name is required")
	ErrInvalidStartDate = errors.New("rent_start_date must be YYYY-MM-DD")
	ErrInvalidTenant    = errors.New("user_id must be a valid id")
)

// Service handles room and tenancy business logic
type Service struct {
	repo *Repository
	now  func() time.Time
}

// NewService creates a new room service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create adds a vacant room
func (s *Service) Create(ctx context.Context, req *CreateRoomRequest) (*Room, error) {
	name := billing.CleanText(req.Name)
	if name == "" {
		return nil, ErrInvalidRoom
	}
	if err := billing.ValidateAmount(req.Price); err != nil {
		return nil, err
	}

	room := &Room{
		ID:        uuid.New(),
		Name:      name,
		Price:     req.Price,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, room); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrRoomNameTaken
		}
		return nil, err
	}
	return room, nil
}

// GetByID retrieves a room by its ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	room, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// GetByTenant retrieves the room rented by a user
func (s *Service) GetByTenant(ctx context.Context, userID uuid.UUID) (*Room, error) {
	room, err := s.repo.GetByTenantID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrNoRoomRented
	}
	return room, nil
}

// List retrieves all rooms
func (s *Service) List(ctx context.Context) ([]*Room, error) {
	return s.repo.List(ctx)
}

// ListActiveTenancies returns the tenancies the reminder sweep considers
func (s *Service) ListActiveTenancies(ctx context.Context) ([]Tenancy, error) {
	return s.repo.ListActiveTenancies(ctx)
}

// AssignTenant rents a vacant room to a user starting on the given date
func (s *Service) AssignTenant(ctx context.Context, roomID uuid.UUID, req *AssignTenantRequest) (*Room, error) {
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, ErrInvalidTenant
	}
	start, err := time.Parse("2006-01-02", strings.TrimSpace(req.RentStartDate))
	if err != nil {
		return nil, ErrInvalidStartDate
	}

	room, err := s.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.RentedUserID != nil {
		return nil, ErrRoomOccupied
	}

	existing, err := s.repo.GetByTenantID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTenantHasRoom
	}

	if err := s.repo.AssignTenant(ctx, roomID, userID, start); err != nil {
		return nil, err
	}
	room.RentedUserID = &userID
	room.RentStartDate = &start
	return room, nil
}

// Vacate ends the current tenancy of a room
func (s *Service) Vacate(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	room, err := s.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Vacate(ctx, roomID); err != nil {
		return nil, err
	}
	room.RentedUserID = nil
	room.RentStartDate = nil
	return room, nil
}
