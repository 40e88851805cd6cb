package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thoriqulumar/kostan-be/internal/database"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
	"github.com/thoriqulumar/kostan-be/pkg/validate"
)

// Common errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailAlreadyInUse = errors.New("email already in use")
	ErrInvalidRole       = errors.New("role must be user or admin")
	ErrInvalidUser       = errors.New("invalid user")
)

// Service handles user business logic
type Service struct {
	repo *Repository
	now  func() time.Time
}

// NewService creates a new user service with repository dependency injected
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create creates a new active user
func (s *Service) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	clean := CreateUserRequest{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
	}
	if clean.Role == "" {
		clean.Role = middleware.RoleUser
	}
	if clean.Role != middleware.RoleUser && clean.Role != middleware.RoleAdmin {
		return nil, ErrInvalidRole
	}
	if err := validate.Struct(&clean); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	email, fullName, role := clean.Email, clean.FullName, clean.Role

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyInUse
	}

	u := &User{
		ID:        uuid.New(),
		Email:     email,
		FullName:  fullName,
		Role:      role,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		// Lost a race with a concurrent signup for the same address.
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailAlreadyInUse
		}
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by their ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// List retrieves all users with pagination
func (s *Service) List(ctx context.Context, page, perPage int) ([]*User, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.List(ctx, perPage, offset)
}

// Recipient returns an active user for out-of-band delivery such as email.
// Inactive or missing users yield (nil, nil).
func (s *Service) Recipient(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, nil
	}
	return u, nil
}
