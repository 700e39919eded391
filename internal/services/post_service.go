package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/content"
	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/repo"
)

// PostService serves the read paths over stored posts, limited by each
// user's configured post limit.
type PostService struct {
	DB       *gorm.DB
	Settings *SettingsService
}

// Search returns posts whose title contains keyword, up to the user's limit.
func (s *PostService) Search(ctx context.Context, userID int64, keyword string) ([]domain.Post, error) {
	keyword = content.NormalizeKeyword(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}
	limit, err := s.Settings.PostLimit(ctx, userID)
	if err != nil {
		return nil, err
	}
	return repo.SearchPosts(ctx, s.DB, keyword, limit)
}

// SearchLimit is Search with an explicit limit, for operator tooling.
func (s *PostService) SearchLimit(ctx context.Context, keyword string, limit int) ([]domain.Post, error) {
	keyword = content.NormalizeKeyword(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}
	return repo.SearchPosts(ctx, s.DB, keyword, limit)
}

// ByTag lists recent posts carrying tag, up to the user's limit.
func (s *PostService) ByTag(ctx context.Context, userID int64, tag string) ([]domain.Post, error) {
	tag = content.NormalizeTag(tag)
	if tag == "" {
		return nil, ErrEmptyTag
	}
	limit, err := s.Settings.PostLimit(ctx, userID)
	if err != nil {
		return nil, err
	}
	return repo.ListPostsByTag(ctx, s.DB, tag, limit)
}

// Full returns a post with its tag names.
func (s *PostService) Full(ctx context.Context, postID uint) (*domain.Post, []string, error) {
	p, err := repo.GetPost(ctx, s.DB, postID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil, ErrPostNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	tags, err := repo.ListPostHashtags(ctx, s.DB, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, tags, nil
}
