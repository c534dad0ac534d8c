package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bytetopia/blanko-console/internal/model"
)

// Dashboard sizing. The draft count is taken from the most recent
// DashboardScanLimit posts; older drafts are rare enough not to matter.
const (
	DashboardRecentPosts = 5
	DashboardScanLimit   = MaxListLimit
)

// DashboardAPI is what the admin landing page needs from the API client.
type DashboardAPI interface {
	ListPosts(ctx context.Context, page, limit int, publishedOnly bool) (*model.PostList, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
	CommentStats(ctx context.Context) (*model.CommentStats, error)
}

// Summary is the page model of /admin.
type Summary struct {
	RecentPosts []model.Post
	TotalPosts  int
	DraftCount  int
	TagCount    int
	Comments    model.CommentStats
}

type DashboardService struct {
	api    DashboardAPI
	logger *slog.Logger
}

func NewDashboardService(api DashboardAPI, logger *slog.Logger) *DashboardService {
	return &DashboardService{api: api, logger: logger}
}

// Summary fetches posts, tags and comment stats concurrently. Any failure
// fails the whole summary.
func (s *DashboardService) Summary(ctx context.Context) (*Summary, error) {
	var (
		posts *model.PostList
		tags  []model.Tag
		stats *model.CommentStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = s.api.ListPosts(gctx, 1, DashboardScanLimit, false)
		if err != nil {
			return fmt.Errorf("listing posts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tags, err = s.api.ListTags(gctx)
		if err != nil {
			return fmt.Errorf("listing tags: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stats, err = s.api.CommentStats(gctx)
		if err != nil {
			return fmt.Errorf("loading comment stats: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard summary failed", slog.String("error", err.Error()))
		return nil, err
	}

	sum := &Summary{
		TotalPosts: posts.Pagination.Total,
		TagCount:   len(tags),
		Comments:   *stats,
	}
	for _, p := range posts.Posts {
		if !p.Published {
			sum.DraftCount++
		}
	}
	n := min(len(posts.Posts), DashboardRecentPosts)
	sum.RecentPosts = posts.Posts[:n]
	return sum, nil
}
