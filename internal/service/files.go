package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bytetopia/blanko-console/internal/api"
	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// DefaultFileLimit is the page size of the attachment table.
const DefaultFileLimit = 20

// FileAPI covers the attachment endpoints.
type FileAPI interface {
	ListFiles(ctx context.Context, page, limit int) (*model.FileList, error)
	GetFile(ctx context.Context, id int64) (*model.File, error)
	UploadFile(ctx context.Context, up api.Upload) (*model.File, error)
	UpdateFile(ctx context.Context, id int64, in model.FileUpdate) (*model.File, error)
	DeleteFile(ctx context.Context, id int64) error
	FileURL(serverPath string) string
}

type FileService struct {
	api    FileAPI
	logger *slog.Logger
}

func NewFileService(api FileAPI, logger *slog.Logger) *FileService {
	return &FileService{api: api, logger: logger}
}

func (s *FileService) List(ctx context.Context, page int) (*model.FileList, error) {
	page, _ = clampPage(page, DefaultFileLimit)
	list, err := s.api.ListFiles(ctx, page, DefaultFileLimit)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return list, nil
}

func (s *FileService) Get(ctx context.Context, id int64) (*model.File, error) {
	if err := requireID("file", id); err != nil {
		return nil, err
	}
	f, err := s.api.GetFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting file %d: %w", id, err)
	}
	return f, nil
}

// Upload attaches a file to a post. The display name defaults to the
// original filename.
func (s *FileService) Upload(ctx context.Context, up api.Upload) (*model.File, error) {
	if err := requireID("post", up.PostID); err != nil {
		return nil, err
	}
	up.Filename = filepath.Base(strings.TrimSpace(up.Filename))
	if up.Content == nil || up.Filename == "." || up.Filename == "/" {
		return nil, apperror.ValidationFailed("file", "please choose a file to upload")
	}
	up.DisplayName = strings.TrimSpace(up.DisplayName)
	if up.DisplayName == "" {
		up.DisplayName = up.Filename
	}
	up.Description = strings.TrimSpace(up.Description)

	f, err := s.api.UploadFile(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", up.Filename, err)
	}
	s.logger.Info("file uploaded",
		slog.Int64("id", f.ID),
		slog.Int64("post_id", up.PostID),
		slog.String("name", up.Filename),
	)
	return f, nil
}

func (s *FileService) Update(ctx context.Context, id int64, in model.FileUpdate) (*model.File, error) {
	if err := requireID("file", id); err != nil {
		return nil, err
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Description = strings.TrimSpace(in.Description)
	if in.DisplayName == "" {
		return nil, apperror.ValidationFailed("display_name", "display name is required")
	}
	f, err := s.api.UpdateFile(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("updating file %d: %w", id, err)
	}
	return f, nil
}

func (s *FileService) Delete(ctx context.Context, id int64) error {
	if err := requireID("file", id); err != nil {
		return err
	}
	if err := s.api.DeleteFile(ctx, id); err != nil {
		return fmt.Errorf("deleting file %d: %w", id, err)
	}
	s.logger.Info("file deleted", slog.Int64("id", id))
	return nil
}

// URL is the public address of a stored attachment.
func (s *FileService) URL(f model.File) string {
	return s.api.FileURL(f.ServerPath)
}
