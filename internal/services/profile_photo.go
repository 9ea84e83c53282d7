package services

import (
	"context"

	"github.com/imagehoster/server/types"
)

// ProfilePhotoRepository defines persistence operations for profile photos.
type ProfilePhotoRepository interface {
	GetByID(ctx context.Context, id int) (types.ProfilePhoto, error)
	Create(ctx context.Context, photo types.ProfilePhoto) (types.ProfilePhoto, error)
	Update(ctx context.Context, photo types.ProfilePhoto) (types.ProfilePhoto, error)
}

// ProfilePhotoService encapsulates profile photo use-cases.
type ProfilePhotoService struct {
	repo ProfilePhotoRepository
}

func NewProfilePhotoService(repo ProfilePhotoRepository) *ProfilePhotoService {
	return &ProfilePhotoService{repo: repo}
}

func (s *ProfilePhotoService) GetByID(ctx context.Context, id int) (types.ProfilePhoto, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProfilePhotoService) Save(ctx context.Context, photo types.ProfilePhoto) (types.ProfilePhoto, error) {
	return s.repo.Create(ctx, photo)
}

func (s *ProfilePhotoService) Update(ctx context.Context, photo types.ProfilePhoto) (types.ProfilePhoto, error) {
	return s.repo.Update(ctx, photo)
}
