package api

import (
	"context"
	"fmt"

	"github.com/bytetopia/blanko-console/internal/model"
)

// ListComments returns the approved comments of a post.
func (c *Client) ListComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	var res struct {
		Comments []model.Comment `json:"comments"`
	}
	if err := c.get(ctx, fmt.Sprintf("/public/posts/%d/comments", postID), nil, &res); err != nil {
		return nil, err
	}
	return res.Comments, nil
}

// CreateComment submits a visitor comment. New comments start pending.
func (c *Client) CreateComment(ctx context.Context, in model.CommentInput) (*model.Comment, error) {
	var res struct {
		Comment model.Comment `json:"comment"`
	}
	if err := c.post(ctx, "/public/comments", in, &res); err != nil {
		return nil, err
	}
	return &res.Comment, nil
}

// ListAdminComments returns one page of comments, optionally filtered by
// status. An empty status lists all of them.
func (c *Client) ListAdminComments(ctx context.Context, page, limit int, status model.CommentStatus) (*model.CommentList, error) {
	q := pageQuery(page, limit)
	if status != "" {
		q.Set("status", string(status))
	}

	var res model.CommentList
	if err := c.get(ctx, "/admin/comments/list", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetAdminComment(ctx context.Context, id int64) (*model.Comment, error) {
	var res struct {
		Comment model.Comment `json:"comment"`
	}
	if err := c.get(ctx, fmt.Sprintf("/admin/comments/%d", id), nil, &res); err != nil {
		return nil, err
	}
	return &res.Comment, nil
}

func (c *Client) CommentStats(ctx context.Context) (*model.CommentStats, error) {
	var res struct {
		Stats model.CommentStats `json:"stats"`
	}
	if err := c.get(ctx, "/admin/comments/stats", nil, &res); err != nil {
		return nil, err
	}
	return &res.Stats, nil
}

func (c *Client) UpdateCommentStatus(ctx context.Context, id int64, status model.CommentStatus) error {
	body := struct {
		Status model.CommentStatus `json:"status"`
	}{status}
	return c.put(ctx, fmt.Sprintf("/admin/comments/%d/status", id), body, nil)
}

func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.del(ctx, fmt.Sprintf("/admin/comments/%d", id))
}
