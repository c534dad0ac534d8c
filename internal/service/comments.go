package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// Visitor comment limits.
const (
	MaxCommentNameLength = 100
	MaxCommentLength     = 5000
)

// CommentAPI covers the public comment endpoints.
type CommentAPI interface {
	ListComments(ctx context.Context, postID int64) ([]model.Comment, error)
	CreateComment(ctx context.Context, in model.CommentInput) (*model.Comment, error)
}

// CommentService is the visitor side of comments: reading the approved
// ones under a post and submitting a new one for moderation.
type CommentService struct {
	api    CommentAPI
	logger *slog.Logger
}

func NewCommentService(api CommentAPI, logger *slog.Logger) *CommentService {
	return &CommentService{api: api, logger: logger}
}

func (s *CommentService) ListForPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	if err := requireID("post", postID); err != nil {
		return nil, err
	}
	comments, err := s.api.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("listing comments for post %d: %w", postID, err)
	}
	return comments, nil
}

// Submit sends a visitor comment. The name is required and the email is
// optional, but must parse when given. New comments start out pending.
func (s *CommentService) Submit(ctx context.Context, in model.CommentInput) (*model.Comment, error) {
	in.AuthorName = strings.TrimSpace(in.AuthorName)
	in.AuthorEmail = strings.TrimSpace(in.AuthorEmail)
	in.Content = strings.TrimSpace(in.Content)

	if err := requireID("post", in.PostID); err != nil {
		return nil, err
	}
	if in.AuthorName == "" {
		return nil, apperror.ValidationFailed("author_name", "name is required")
	}
	if len(in.AuthorName) > MaxCommentNameLength {
		return nil, apperror.ValidationFailed("author_name",
			fmt.Sprintf("name must be %d characters or less", MaxCommentNameLength))
	}
	if in.AuthorEmail != "" {
		if _, err := mail.ParseAddress(in.AuthorEmail); err != nil {
			return nil, apperror.ValidationFailed("author_email", "email address is not valid")
		}
	}
	if in.Content == "" {
		return nil, apperror.ValidationFailed("content", "comment cannot be empty")
	}
	if len(in.Content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	c, err := s.api.CreateComment(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("submitting comment: %w", err)
	}
	s.logger.Info("comment submitted",
		slog.Int64("post_id", in.PostID),
		slog.Int64("id", c.ID),
	)
	return c, nil
}
