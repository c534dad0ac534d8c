package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// DefaultCommentLimit matches the page size of the admin comment table.
const DefaultCommentLimit = 20

// ModerationAPI covers the admin comment endpoints.
type ModerationAPI interface {
	ListAdminComments(ctx context.Context, page, limit int, status model.CommentStatus) (*model.CommentList, error)
	CommentStats(ctx context.Context) (*model.CommentStats, error)
	UpdateCommentStatus(ctx context.Context, id int64, status model.CommentStatus) error
	DeleteComment(ctx context.Context, id int64) error
}

// ModerationService is the admin side of comments: filtering by status,
// moving a comment between states, and deleting it.
type ModerationService struct {
	api    ModerationAPI
	logger *slog.Logger
}

func NewModerationService(api ModerationAPI, logger *slog.Logger) *ModerationService {
	return &ModerationService{api: api, logger: logger}
}

// List returns one page of comments. An empty status means every state.
func (s *ModerationService) List(ctx context.Context, page int, status model.CommentStatus) (*model.CommentList, error) {
	if status != "" && !status.Valid() {
		return nil, apperror.ValidationFailed("status", fmt.Sprintf("unknown comment status %q", status))
	}
	page, _ = clampPage(page, DefaultCommentLimit)
	list, err := s.api.ListAdminComments(ctx, page, DefaultCommentLimit, status)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return list, nil
}

func (s *ModerationService) Stats(ctx context.Context) (*model.CommentStats, error) {
	stats, err := s.api.CommentStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading comment stats: %w", err)
	}
	return stats, nil
}

// SetStatus moves a comment to pending, approved or hidden.
func (s *ModerationService) SetStatus(ctx context.Context, id int64, status model.CommentStatus) error {
	if err := requireID("comment", id); err != nil {
		return err
	}
	if !status.Valid() {
		return apperror.ValidationFailed("status", "status must be pending, approved or hidden")
	}
	if err := s.api.UpdateCommentStatus(ctx, id, status); err != nil {
		return fmt.Errorf("updating comment %d: %w", id, err)
	}
	s.logger.Info("comment status changed",
		slog.Int64("id", id),
		slog.String("status", string(status)),
	)
	return nil
}

func (s *ModerationService) Delete(ctx context.Context, id int64) error {
	if err := requireID("comment", id); err != nil {
		return err
	}
	if err := s.api.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("deleting comment %d: %w", id, err)
	}
	s.logger.Info("comment deleted", slog.Int64("id", id))
	return nil
}
