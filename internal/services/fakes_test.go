package services

import (
	"context"
	"sync"

	"github.com/imagehoster/server/internal/password"
	"github.com/imagehoster/server/internal/store"
	"github.com/imagehoster/server/types"
)

type fakeTagRepo struct {
	mu      sync.Mutex
	tags    []types.Tag
	lookups int
	err     error
}

func (r *fakeTagRepo) GetByName(ctx context.Context, name string) (types.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.err != nil {
		return types.Tag{}, r.err
	}
	for _, tag := range r.tags {
		if tag.Name == name {
			return tag, nil
		}
	}
	return types.Tag{}, store.ErrNotFound
}

func (r *fakeTagRepo) Create(ctx context.Context, tag types.Tag) (types.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tags {
		if existing.Name == tag.Name {
			return types.Tag{}, store.ErrConflict
		}
	}
	tag.ID = len(r.tags) + 1
	r.tags = append(r.tags, tag)
	return tag, nil
}

func (r *fakeTagRepo) List(ctx context.Context) ([]types.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Tag(nil), r.tags...), nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users []types.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int, profile store.FetchProfile) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string, profile store.FetchProfile) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			if profile == store.Full {
				user.ProfilePhoto = &types.ProfilePhoto{ID: user.ProfilePhotoID}
			}
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = len(r.users) + 1
	r.users = append(r.users, user)
	return user, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ID == user.ID {
			r.users[i] = user
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *fakeUserRepo) Login(ctx context.Context, username, plain string) (types.User, error) {
	user, err := r.GetByUsername(ctx, username, store.Shallow)
	if err != nil {
		return types.User{}, store.ErrInvalidCredentials
	}
	if !password.Verify(plain, user.PasswordHash) {
		return types.User{}, store.ErrInvalidCredentials
	}
	return user, nil
}

type fakeImageRepo struct {
	mu     sync.Mutex
	images []types.Image
	nextID int
}

func (r *fakeImageRepo) List(ctx context.Context, profile store.FetchProfile) ([]types.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Image(nil), r.images...), nil
}

func (r *fakeImageRepo) ListByTag(ctx context.Context, tagName string) ([]types.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Image
	for _, image := range r.images {
		for _, tag := range image.Tags {
			if tag.Name == tagName {
				out = append(out, image)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeImageRepo) GetByTitle(ctx context.Context, title string, profile store.FetchProfile) (types.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, image := range r.images {
		if image.Title == title {
			return image, nil
		}
	}
	return types.Image{}, store.ErrNotFound
}

func (r *fakeImageRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.images)), nil
}

func (r *fakeImageRepo) Create(ctx context.Context, image types.Image) (types.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	image.ID = r.nextID
	image.ViewCount = 0
	r.images = append(r.images, image)
	return image, nil
}

func (r *fakeImageRepo) Update(ctx context.Context, image types.Image) (types.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.images {
		if r.images[i].ID == image.ID {
			image.ViewCount = r.images[i].ViewCount
			r.images[i] = image
			return image, nil
		}
	}
	return types.Image{}, store.ErrNotFound
}

func (r *fakeImageRepo) IncrementViewCount(ctx context.Context, id int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.images {
		if r.images[i].ID == id {
			r.images[i].ViewCount++
			return r.images[i].ViewCount, nil
		}
	}
	return 0, store.ErrNotFound
}

func (r *fakeImageRepo) DeleteByTitle(ctx context.Context, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.images[:0]
	removed := false
	for _, image := range r.images {
		if image.Title == title {
			removed = true
			continue
		}
		kept = append(kept, image)
	}
	r.images = kept
	if !removed {
		return store.ErrNotFound
	}
	return nil
}

type fakePhotoRepo struct {
	mu     sync.Mutex
	photos []types.ProfilePhoto
}

func (r *fakePhotoRepo) GetByID(ctx context.Context, id int) (types.ProfilePhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, photo := range r.photos {
		if photo.ID == id {
			return photo, nil
		}
	}
	return types.ProfilePhoto{}, store.ErrNotFound
}

func (r *fakePhotoRepo) Create(ctx context.Context, photo types.ProfilePhoto) (types.ProfilePhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	photo.ID = len(r.photos) + 1
	r.photos = append(r.photos, photo)
	return photo, nil
}

func (r *fakePhotoRepo) Update(ctx context.Context, photo types.ProfilePhoto) (types.ProfilePhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.photos {
		if r.photos[i].ID == photo.ID {
			r.photos[i] = photo
			return photo, nil
		}
	}
	return types.ProfilePhoto{}, store.ErrNotFound
}
