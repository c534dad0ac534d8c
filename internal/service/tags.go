package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

const MaxTagNameLength = 50

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// TagAPI covers the tag endpoints.
type TagAPI interface {
	ListTagsWithCounts(ctx context.Context) ([]model.TagWithCount, error)
	GetTag(ctx context.Context, id int64) (*model.Tag, error)
	CreateTag(ctx context.Context, in model.TagInput) (*model.Tag, error)
	UpdateTag(ctx context.Context, id int64, in model.TagInput) (*model.Tag, error)
	DeleteTag(ctx context.Context, id int64) error
}

type TagService struct {
	api    TagAPI
	logger *slog.Logger
}

func NewTagService(api TagAPI, logger *slog.Logger) *TagService {
	return &TagService{api: api, logger: logger}
}

func (s *TagService) ListWithCounts(ctx context.Context) ([]model.TagWithCount, error) {
	tags, err := s.api.ListTagsWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

func (s *TagService) Get(ctx context.Context, id int64) (*model.Tag, error) {
	if err := requireID("tag", id); err != nil {
		return nil, err
	}
	tag, err := s.api.GetTag(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting tag %d: %w", id, err)
	}
	return tag, nil
}

func (s *TagService) Create(ctx context.Context, in model.TagInput) (*model.Tag, error) {
	in, err := validateTag(in)
	if err != nil {
		return nil, err
	}
	tag, err := s.api.CreateTag(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}
	s.logger.Info("tag created", slog.Int64("id", tag.ID), slog.String("name", tag.Name))
	return tag, nil
}

func (s *TagService) Update(ctx context.Context, id int64, in model.TagInput) (*model.Tag, error) {
	if err := requireID("tag", id); err != nil {
		return nil, err
	}
	in, err := validateTag(in)
	if err != nil {
		return nil, err
	}
	tag, err := s.api.UpdateTag(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("updating tag %d: %w", id, err)
	}
	s.logger.Info("tag updated", slog.Int64("id", id))
	return tag, nil
}

func (s *TagService) Delete(ctx context.Context, id int64) error {
	if err := requireID("tag", id); err != nil {
		return err
	}
	if err := s.api.DeleteTag(ctx, id); err != nil {
		return fmt.Errorf("deleting tag %d: %w", id, err)
	}
	s.logger.Info("tag deleted", slog.Int64("id", id))
	return nil
}

// validateTag trims the name and checks the color. An empty color is left
// for the server to default.
func validateTag(in model.TagInput) (model.TagInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)

	if in.Name == "" {
		return in, apperror.ValidationFailed("name", "tag name is required")
	}
	if len(in.Name) > MaxTagNameLength {
		return in, apperror.ValidationFailed("name",
			fmt.Sprintf("tag name must be %d characters or less", MaxTagNameLength))
	}
	if in.Color != "" && !hexColor.MatchString(in.Color) {
		return in, apperror.ValidationFailed("color", "color must look like #RRGGBB")
	}
	return in, nil
}
