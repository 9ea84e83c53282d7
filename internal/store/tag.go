package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/imagehoster/server/types"
)

// TagRepository handles persistence for tags.
type TagRepository struct {
	uow *UnitOfWork
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{uow: NewUnitOfWork(db)}
}

func (r *TagRepository) GetByName(ctx context.Context, name string) (types.Tag, error) {
	var tag types.Tag
	err := r.uow.Do(ctx, "tag.get_by_name", func(tx *gorm.DB) error {
		return tx.Where("name = ?", name).Take(&tag).Error
	})
	if err != nil {
		return types.Tag{}, err
	}
	return tag, nil
}

func (r *TagRepository) Create(ctx context.Context, tag types.Tag) (types.Tag, error) {
	err := r.uow.Do(ctx, "tag.create", func(tx *gorm.DB) error {
		return tx.Create(&tag).Error
	})
	if err != nil {
		return types.Tag{}, err
	}
	return tag, nil
}

func (r *TagRepository) List(ctx context.Context) ([]types.Tag, error) {
	var tags []types.Tag
	err := r.uow.Do(ctx, "tag.list", func(tx *gorm.DB) error {
		return tx.Order("id").Find(&tags).Error
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}
