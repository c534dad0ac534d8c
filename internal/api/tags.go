package api

import (
	"context"
	"fmt"

	"github.com/bytetopia/blanko-console/internal/model"
)

func (c *Client) ListTags(ctx context.Context) ([]model.Tag, error) {
	var res struct {
		Tags []model.Tag `json:"tags"`
	}
	if err := c.get(ctx, "/public/tags", nil, &res); err != nil {
		return nil, err
	}
	return res.Tags, nil
}

func (c *Client) ListTagsWithCounts(ctx context.Context) ([]model.TagWithCount, error) {
	var res struct {
		Tags []model.TagWithCount `json:"tags"`
	}
	if err := c.get(ctx, "/public/tags/with-counts", nil, &res); err != nil {
		return nil, err
	}
	return res.Tags, nil
}

func (c *Client) GetTag(ctx context.Context, id int64) (*model.Tag, error) {
	var res struct {
		Tag model.Tag `json:"tag"`
	}
	if err := c.get(ctx, fmt.Sprintf("/public/tags/%d", id), nil, &res); err != nil {
		return nil, err
	}
	return &res.Tag, nil
}

// ListPostsByTag returns one page of published posts carrying the tag.
func (c *Client) ListPostsByTag(ctx context.Context, id int64, page, limit int) (*model.PostList, error) {
	q := pageQuery(page, limit)
	q.Set("published", "true")

	var res model.PostList
	if err := c.get(ctx, fmt.Sprintf("/public/tags/%d/posts", id), q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreateTag(ctx context.Context, in model.TagInput) (*model.Tag, error) {
	var res struct {
		Tag model.Tag `json:"tag"`
	}
	if err := c.post(ctx, "/admin/tags", in, &res); err != nil {
		return nil, err
	}
	return &res.Tag, nil
}

func (c *Client) UpdateTag(ctx context.Context, id int64, in model.TagInput) (*model.Tag, error) {
	var res struct {
		Tag model.Tag `json:"tag"`
	}
	if err := c.put(ctx, fmt.Sprintf("/admin/tags/%d", id), in, &res); err != nil {
		return nil, err
	}
	return &res.Tag, nil
}

func (c *Client) DeleteTag(ctx context.Context, id int64) error {
	return c.del(ctx, fmt.Sprintf("/admin/tags/%d", id))
}
