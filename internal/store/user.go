package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imagehoster/server/internal/password"
	"github.com/imagehoster/server/types"
)

// unknownUserHash stands in for the stored hash when the username does not
// exist.
var unknownUserHash = password.Digest("imagehoster-unknown-user")

// UserRepository handles persistence for users.
type UserRepository struct {
	uow    *UnitOfWork
	verify func(plain, stored string) bool
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{uow: NewUnitOfWork(db), verify: password.Verify}
}

func (r *UserRepository) GetByID(ctx context.Context, id int, profile FetchProfile) (types.User, error) {
	var user types.User
	err := r.uow.Do(ctx, "user.get_by_id", func(tx *gorm.DB) error {
		return withUserProfile(tx, profile).Where("id = ?", id).Take(&user).Error
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string, profile FetchProfile) (types.User, error) {
	var user types.User
	err := r.uow.Do(ctx, "user.get_by_username", func(tx *gorm.DB) error {
		return withUserProfile(tx, profile).Where("username = ?", username).Take(&user).Error
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

// Create inserts a user that references an existing profile photo.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	err := r.uow.Do(ctx, "user.create", func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(&user).Error
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	if user.ID < 1 {
		return types.User{}, ErrNotFound
	}
	err := r.uow.Do(ctx, "user.update", func(tx *gorm.DB) error {
		result := tx.Model(&types.User{ID: user.ID}).Updates(map[string]any{
			"username":         user.Username,
			"password_hash":    user.PasswordHash,
			"description":      user.Description,
			"profile_photo_id": user.ProfilePhotoID,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	return r.uow.Do(ctx, "user.delete", func(tx *gorm.DB) error {
		result := tx.Delete(&types.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Login returns the user when password matches the stored hash.
func (r *UserRepository) Login(ctx context.Context, username, plain string) (types.User, error) {
	var user types.User
	err := r.uow.Do(ctx, "user.login", func(tx *gorm.DB) error {
		err := tx.Where("username = ?", username).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.verify(plain, unknownUserHash)
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if !r.verify(plain, user.PasswordHash) {
			return ErrInvalidCredentials
		}
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

func withUserProfile(tx *gorm.DB, profile FetchProfile) *gorm.DB {
	if profile == Full {
		return tx.Preload("ProfilePhoto")
	}
	return tx
}
