package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imagehoster/server/internal/store"
	"github.com/imagehoster/server/types"
)

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	GetByName(ctx context.Context, name string) (types.Tag, error)
	Create(ctx context.Context, tag types.Tag) (types.Tag, error)
	List(ctx context.Context) ([]types.Tag, error)
}

// TagService encapsulates tag use-cases.
type TagService struct {
	repo TagRepository
}

func NewTagService(repo TagRepository) *TagService {
	return &TagService{repo: repo}
}

func (s *TagService) GetAll(ctx context.Context) ([]types.Tag, error) {
	return s.repo.List(ctx)
}

func (s *TagService) GetByName(ctx context.Context, name string) (types.Tag, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *TagService) Create(ctx context.Context, tag types.Tag) (types.Tag, error) {
	return s.repo.Create(ctx, tag)
}

// ResolveTags turns a comma separated list into persisted tags, creating
// the ones that do not exist yet. Order follows the input and repeated
// names resolve to the same tag.
func ResolveTags(ctx context.Context, tags *TagService, raw string) ([]types.Tag, error) {
	names := ParseTagNames(raw)
	resolved := make([]types.Tag, 0, len(names))
	for _, name := range names {
		tag, err := tags.GetByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			tag, err = tags.Create(ctx, types.Tag{Name: name})
			if errors.Is(err, store.ErrConflict) {
				// Created concurrently by another request.
				tag, err = tags.GetByName(ctx, name)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", name, err)
		}
		resolved = append(resolved, tag)
	}
	return resolved, nil
}

// ParseTagNames splits raw on commas, trimming and dropping empty names.
func ParseTagNames(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// JoinTagNames renders tags the way the edit form expects them.
func JoinTagNames(tags []types.Tag) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return strings.Join(names, ", ")
}
