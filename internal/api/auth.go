package api

import (
	"context"

	"github.com/bytetopia/blanko-console/internal/model"
)

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.LoginResult, error) {
	var res model.LoginResult
	if err := c.post(ctx, "/auth/login", creds, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
