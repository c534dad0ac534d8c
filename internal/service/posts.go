package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// PostAPI is the slice of the API client the post pages use.
type PostAPI interface {
	ListPosts(ctx context.Context, page, limit int, publishedOnly bool) (*model.PostList, error)
	GetPublicPost(ctx context.Context, idOrSlug string) (*model.Post, error)
	ListPostsByTag(ctx context.Context, tagID int64, page, limit int) (*model.PostList, error)
	DeletePost(ctx context.Context, id int64) error
}

// PostService serves the visitor post pages and the admin post list.
type PostService struct {
	api    PostAPI
	logger *slog.Logger
}

func NewPostService(api PostAPI, logger *slog.Logger) *PostService {
	return &PostService{api: api, logger: logger}
}

// List returns one page of posts. Drafts are included only when
// publishedOnly is false, which the admin list relies on.
func (s *PostService) List(ctx context.Context, page, limit int, publishedOnly bool) (*model.PostList, error) {
	page, limit = clampPage(page, limit)
	list, err := s.api.ListPosts(ctx, page, limit, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return list, nil
}

// Get fetches a published post by slug or numeric id.
func (s *PostService) Get(ctx context.Context, slug string) (*model.Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperror.NotFound("post", slug)
	}
	post, err := s.api.GetPublicPost(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("getting post %q: %w", slug, err)
	}
	return post, nil
}

// ListByTag returns one page of published posts carrying the tag.
func (s *PostService) ListByTag(ctx context.Context, tagID int64, page, limit int) (*model.PostList, error) {
	if err := requireID("tag", tagID); err != nil {
		return nil, err
	}
	page, limit = clampPage(page, limit)
	list, err := s.api.ListPostsByTag(ctx, tagID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("listing posts for tag %d: %w", tagID, err)
	}
	return list, nil
}

func (s *PostService) Delete(ctx context.Context, id int64) error {
	if err := requireID("post", id); err != nil {
		return err
	}
	if err := s.api.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("deleting post %d: %w", id, err)
	}
	s.logger.Info("post deleted", slog.Int64("id", id))
	return nil
}
