package services

import (
	"context"

	"github.com/imagehoster/server/internal/store"
	"github.com/imagehoster/server/types"
)

// ImageRepository defines persistence operations for images.
type ImageRepository interface {
	List(ctx context.Context, profile store.FetchProfile) ([]types.Image, error)
	ListByTag(ctx context.Context, tagName string) ([]types.Image, error)
	GetByTitle(ctx context.Context, title string, profile store.FetchProfile) (types.Image, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, image types.Image) (types.Image, error)
	Update(ctx context.Context, image types.Image) (types.Image, error)
	IncrementViewCount(ctx context.Context, id int) (int, error)
	DeleteByTitle(ctx context.Context, title string) error
}

// ImageService encapsulates image use-cases.
type ImageService struct {
	repo ImageRepository
}

func NewImageService(repo ImageRepository) *ImageService {
	return &ImageService{repo: repo}
}

func (s *ImageService) GetAll(ctx context.Context) ([]types.Image, error) {
	return s.repo.List(ctx, store.Shallow)
}

func (s *ImageService) GetByTag(ctx context.Context, tagName string) ([]types.Image, error) {
	return s.repo.ListByTag(ctx, tagName)
}

func (s *ImageService) GetByTitle(ctx context.Context, title string) (types.Image, error) {
	return s.repo.GetByTitle(ctx, title, store.Shallow)
}

// GetByTitleWithJoins also loads the owner, the owner's profile photo and
// the tags.
func (s *ImageService) GetByTitleWithJoins(ctx context.Context, title string) (types.Image, error) {
	return s.repo.GetByTitle(ctx, title, store.Full)
}

func (s *ImageService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *ImageService) Save(ctx context.Context, image types.Image) (types.Image, error) {
	return s.repo.Create(ctx, image)
}

func (s *ImageService) Update(ctx context.Context, image types.Image) (types.Image, error) {
	return s.repo.Update(ctx, image)
}

// RecordView counts one display of the image and returns the new total.
func (s *ImageService) RecordView(ctx context.Context, image types.Image) (int, error) {
	return s.repo.IncrementViewCount(ctx, image.ID)
}

func (s *ImageService) DeleteByTitle(ctx context.Context, title string) error {
	return s.repo.DeleteByTitle(ctx, title)
}
