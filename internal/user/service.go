// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type RegisterInput struct {
	Email    string
	Password string
	Role     string
}

// Register creates an account. At most one manager may ever exist; the
// check runs at creation time.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormalizeEmail(in.Email)
	role := NormalizeRole(in.Role)

	if role != RoleUser && role != RoleManager {
		return nil, fmt.Errorf(
			"register: invalid role %q: %w",
			in.Role,
			core.ErrInvalidInput,
		)
	}

	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("register: %w", core.ErrDuplicateKey)
	case !errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("register: %w", err)
	}

	if role == RoleManager {
		exists, err := s.repo.ExistsByRoleIgnoreCase(ctx, RoleManager)
		if err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("register: manager already exists: %w", core.ErrConflict)
		}
	}

	hash, err := core.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	u := &User{
		Email:              email,
		PasswordHash:       hash,
		Role:               role,
		ExternalSyncStatus: SyncNotSynced,
	}

	if err := s.repo.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return u, nil
}

func (s *Service) ManagerExists(ctx context.Context) (bool, error) {
	return s.repo.ExistsByRoleIgnoreCase(ctx, RoleManager)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

// Unlock clears the lock and the failure counter.
func (s *Service) Unlock(ctx context.Context, id int64) (*User, error) {
	return s.mutateLockState(ctx, id, (*User).Unlock)
}

func (s *Service) Block(ctx context.Context, id int64) (*User, error) {
	return s.mutateLockState(ctx, id, (*User).Block)
}

func (s *Service) Unblock(ctx context.Context, id int64) (*User, error) {
	return s.mutateLockState(ctx, id, (*User).Unlock)
}

func (s *Service) mutateLockState(
	ctx context.Context,
	id int64,
	mutate func(*User),
) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.repo.UpdateLocked(ctx, u.Email, func(locked *User) error {
		mutate(locked)
		return nil
	})
}

func (s *Service) SyncStatusSummary(ctx context.Context) (*SyncStatusSummary, error) {
	counts, err := s.repo.CountBySyncStatus(ctx)
	if err != nil {
		return nil, err
	}

	summary := &SyncStatusSummary{ByStatus: counts}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}
