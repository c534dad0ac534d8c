package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bytetopia/blanko-console/internal/model"
)

// ListPosts returns one page of posts. With publishedOnly false the API
// includes drafts, which requires an admin token.
func (c *Client) ListPosts(ctx context.Context, page, limit int, publishedOnly bool) (*model.PostList, error) {
	q := pageQuery(page, limit)
	q.Set("published", strconv.FormatBool(publishedOnly))

	var res model.PostList
	if err := c.get(ctx, "/public/posts", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPublicPost fetches a post by id or slug. The API counts this as a view.
func (c *Client) GetPublicPost(ctx context.Context, idOrSlug string) (*model.Post, error) {
	var res model.Post
	if err := c.get(ctx, "/public/posts/"+url.PathEscape(idOrSlug), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetAdminPost fetches a post without touching its view counter.
func (c *Client) GetAdminPost(ctx context.Context, id int64) (*model.Post, error) {
	var res model.Post
	if err := c.get(ctx, fmt.Sprintf("/admin/posts/%d", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error) {
	var res model.Post
	if err := c.post(ctx, "/admin/posts", normalizeInput(in), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdatePost(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	var res model.Post
	if err := c.put(ctx, fmt.Sprintf("/admin/posts/%d", id), normalizeInput(in), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.del(ctx, fmt.Sprintf("/admin/posts/%d", id))
}

// normalizeInput sends tag_ids as [] rather than null.
func normalizeInput(in model.PostInput) model.PostInput {
	if in.TagIDs == nil {
		in.TagIDs = []int64{}
	}
	return in
}
