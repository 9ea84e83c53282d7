package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imagehoster/server/types"
)

// ImageRepository handles persistence for images and their tag links.
type ImageRepository struct {
	uow *UnitOfWork
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{uow: NewUnitOfWork(db)}
}

// imageTag is a row of the image/tag join table.
type imageTag struct {
	ImageID int
	TagID   int
}

func (imageTag) TableName() string {
	return "image_tag"
}

func (r *ImageRepository) List(ctx context.Context, profile FetchProfile) ([]types.Image, error) {
	var images []types.Image
	err := r.uow.Do(ctx, "image.list", func(tx *gorm.DB) error {
		return withImageProfile(tx, profile).Order("id").Find(&images).Error
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (r *ImageRepository) ListByTag(ctx context.Context, tagName string) ([]types.Image, error) {
	var images []types.Image
	err := r.uow.Do(ctx, "image.list_by_tag", func(tx *gorm.DB) error {
		tagged := tx.Table("image_tag").
			Select("image_tag.image_id").
			Joins("JOIN tag ON tag.id = image_tag.tag_id").
			Where("tag.name = ?", tagName)
		return tx.Where("id IN (?)", tagged).Order("id").Find(&images).Error
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (r *ImageRepository) GetByTitle(ctx context.Context, title string, profile FetchProfile) (types.Image, error) {
	var image types.Image
	err := r.uow.Do(ctx, "image.get_by_title", func(tx *gorm.DB) error {
		return withImageProfile(tx, profile).Where("title = ?", title).Take(&image).Error
	})
	if err != nil {
		return types.Image{}, err
	}
	return image, nil
}

func (r *ImageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.uow.Do(ctx, "image.count", func(tx *gorm.DB) error {
		return tx.Model(&types.Image{}).Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new image with a zero view count and links its tags.
// A missing upload date defaults to today.
func (r *ImageRepository) Create(ctx context.Context, image types.Image) (types.Image, error) {
	image.ViewCount = 0
	if image.UploadDate.IsZero() {
		image.UploadDate = today()
	}
	tags, err := uniqueTags(image.Tags)
	if err != nil {
		return types.Image{}, err
	}

	err = r.uow.Do(ctx, "image.create", func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&image).Error; err != nil {
			return err
		}
		return linkTags(tx, image.ID, tags)
	})
	if err != nil {
		return types.Image{}, err
	}
	image.Tags = tags
	return image, nil
}

// Update persists the title, description, image data and tag set of an
// existing image. Owner, upload date and view count are left untouched.
func (r *ImageRepository) Update(ctx context.Context, image types.Image) (types.Image, error) {
	if image.ID < 1 {
		return types.Image{}, ErrNotFound
	}
	tags, err := uniqueTags(image.Tags)
	if err != nil {
		return types.Image{}, err
	}

	err = r.uow.Do(ctx, "image.update", func(tx *gorm.DB) error {
		result := tx.Model(&types.Image{ID: image.ID}).Updates(map[string]any{
			"title":       image.Title,
			"description": image.Description,
			"image_data":  image.ImageData,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("image_id = ?", image.ID).Delete(&imageTag{}).Error; err != nil {
			return err
		}
		return linkTags(tx, image.ID, tags)
	})
	if err != nil {
		return types.Image{}, err
	}
	image.Tags = tags
	return image, nil
}

// IncrementViewCount adds one view to the image and returns the new count.
func (r *ImageRepository) IncrementViewCount(ctx context.Context, id int) (int, error) {
	var count int
	err := r.uow.Do(ctx, "image.increment_view_count", func(tx *gorm.DB) error {
		result := tx.Model(&types.Image{}).
			Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Raw("SELECT view_count FROM image WHERE id = ?", id).Scan(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByTitle removes every image with the given title and its tag links.
func (r *ImageRepository) DeleteByTitle(ctx context.Context, title string) error {
	return r.uow.Do(ctx, "image.delete_by_title", func(tx *gorm.DB) error {
		var ids []int
		if err := tx.Model(&types.Image{}).Where("title = ?", title).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return ErrNotFound
		}
		if err := tx.Where("image_id IN ?", ids).Delete(&imageTag{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&types.Image{}).Error
	})
}

func withImageProfile(tx *gorm.DB, profile FetchProfile) *gorm.DB {
	if profile != Full {
		return tx
	}
	return tx.Preload("User.ProfilePhoto").Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tag.id")
	})
}

func linkTags(tx *gorm.DB, imageID int, tags []types.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	links := make([]imageTag, 0, len(tags))
	for _, tag := range tags {
		links = append(links, imageTag{ImageID: imageID, TagID: tag.ID})
	}
	return tx.Create(&links).Error
}

// uniqueTags drops repeated tag identities, keeping first occurrences.
func uniqueTags(tags []types.Tag) ([]types.Tag, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := make(map[int]struct{}, len(tags))
	unique := make([]types.Tag, 0, len(tags))
	for _, tag := range tags {
		if tag.ID < 1 {
			return nil, fmt.Errorf("tag %q has not been persisted", tag.Name)
		}
		if _, ok := seen[tag.ID]; ok {
			continue
		}
		seen[tag.ID] = struct{}{}
		unique = append(unique, tag)
	}
	return unique, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
