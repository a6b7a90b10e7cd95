package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/skillevaluator/backend/internal/model"
)

type userAdminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserService handles administrative user management.
type UserService struct {
	users userAdminStore
}

// NewUserService creates a new UserService.
func NewUserService(users userAdminStore) *UserService {
	return &UserService{users: users}
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// UpdateRole changes a user's role after confirming the user exists.
func (s *UserService) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	user.Role = role
	return user, nil
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}
	return s.users.Delete(ctx, id)
}
