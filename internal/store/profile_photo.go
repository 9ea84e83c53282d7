package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/imagehoster/server/types"
)

// ProfilePhotoRepository handles persistence for profile photos.
type ProfilePhotoRepository struct {
	uow *UnitOfWork
}

func NewProfilePhotoRepository(db *gorm.DB) *ProfilePhotoRepository {
	return &ProfilePhotoRepository{uow: NewUnitOfWork(db)}
}

func (r *ProfilePhotoRepository) GetByID(ctx context.Context, id int) (types.ProfilePhoto, error) {
	var photo types.ProfilePhoto
	err := r.uow.Do(ctx, "profile_photo.get_by_id", func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Take(&photo).Error
	})
	if err != nil {
		return types.ProfilePhoto{}, err
	}
	return photo, nil
}

func (r *ProfilePhotoRepository) Create(ctx context.Context, photo types.ProfilePhoto) (types.ProfilePhoto, error) {
	err := r.uow.Do(ctx, "profile_photo.create", func(tx *gorm.DB) error {
		return tx.Create(&photo).Error
	})
	if err != nil {
		return types.ProfilePhoto{}, err
	}
	return photo, nil
}

func (r *ProfilePhotoRepository) Update(ctx context.Context, photo types.ProfilePhoto) (types.ProfilePhoto, error) {
	if photo.ID < 1 {
		return types.ProfilePhoto{}, ErrNotFound
	}
	err := r.uow.Do(ctx, "profile_photo.update", func(tx *gorm.DB) error {
		result := tx.Model(&types.ProfilePhoto{ID: photo.ID}).Update("image_data", photo.ImageData)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return types.ProfilePhoto{}, err
	}
	return photo, nil
}
