package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/bytetopia/blanko-console/internal/model"
)

func (c *Client) ListFiles(ctx context.Context, page, limit int) (*model.FileList, error) {
	var res model.FileList
	if err := c.get(ctx, "/admin/files", pageQuery(page, limit), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetFile(ctx context.Context, id int64) (*model.File, error) {
	var res model.File
	if err := c.get(ctx, fmt.Sprintf("/admin/files/%d", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Upload describes one attachment to send.
type Upload struct {
	PostID      int64
	Filename    string
	DisplayName string
	Description string
	Content     io.Reader
}

// UploadFile sends an attachment as multipart/form-data.
func (c *Client) UploadFile(ctx context.Context, up Upload) (*model.File, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"post_id":      fmt.Sprint(up.PostID),
		"display_name": up.DisplayName,
		"description":  up.Description,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("api: writing form field %s: %w", k, err)
		}
	}

	part, err := mw.CreateFormFile("file", up.Filename)
	if err != nil {
		return nil, fmt.Errorf("api: creating file part: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return nil, fmt.Errorf("api: reading upload %s: %w", up.Filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/admin/files", &buf)
	if err != nil {
		return nil, fmt.Errorf("api: building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var res model.File
	if err := c.send(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateFile(ctx context.Context, id int64, in model.FileUpdate) (*model.File, error) {
	var res model.File
	if err := c.put(ctx, fmt.Sprintf("/admin/files/%d", id), in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeleteFile(ctx context.Context, id int64) error {
	return c.del(ctx, fmt.Sprintf("/admin/files/%d", id))
}

// FileURL is the public address of an uploaded file.
func (c *Client) FileURL(serverPath string) string {
	return c.origin + "/uploads/" + strings.TrimLeft(serverPath, "/")
}
