package api

import (
	"context"

	"github.com/bytetopia/blanko-console/internal/model"
)

// GetConfig returns the raw blog-wide configuration map.
func (c *Client) GetConfig(ctx context.Context) (map[string]string, error) {
	var res model.ConfigMap
	if err := c.get(ctx, "/public/config", nil, &res); err != nil {
		return nil, err
	}
	if res.Configs == nil {
		res.Configs = map[string]string{}
	}
	return res.Configs, nil
}

func (c *Client) UpdateConfig(ctx context.Context, configs map[string]string) error {
	return c.put(ctx, "/admin/settings/config", model.ConfigMap{Configs: configs}, nil)
}

func (c *Client) UpdatePassword(ctx context.Context, in model.PasswordChange) error {
	return c.put(ctx, "/admin/settings/password", in, nil)
}
