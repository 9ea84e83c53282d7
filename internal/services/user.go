package services

import (
	"context"

	"github.com/imagehoster/server/internal/store"
	"github.com/imagehoster/server/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int, profile store.FetchProfile) (types.User, error)
	GetByUsername(ctx context.Context, username string, profile store.FetchProfile) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
	Login(ctx context.Context, username, password string) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id, store.Shallow)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username, store.Shallow)
}

// GetByUsernameWithJoins also loads the user's profile photo.
func (s *UserService) GetByUsernameWithJoins(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username, store.Full)
}

// Register inserts user and reports whether the insert succeeded. On
// success the generated ID is written back to user.
func (s *UserService) Register(ctx context.Context, user *types.User) (bool, error) {
	created, err := s.repo.Create(ctx, *user)
	if err != nil {
		return false, err
	}
	*user = created
	return true, nil
}

// Login returns store.ErrInvalidCredentials for an unknown username or a
// wrong password.
func (s *UserService) Login(ctx context.Context, username, password string) (types.User, error) {
	return s.repo.Login(ctx, username, password)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Update(ctx, user)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
