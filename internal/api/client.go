// Package api is the typed client of the Blanko REST API.
//
// Every call takes the caller's context. The bearer token comes from an
// oauth2.TokenSource (the session store); a 401 from any endpoint fires the
// unauthorized hook so the session can be dropped in one place.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/bytetopia/blanko-console/internal/apperror"
)

// StatusError is an API failure that has no dedicated sentinel.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: unexpected status %d", e.Status)
	}
	return e.Message
}

// Client talks to one Blanko backend.
type Client struct {
	origin         string
	base           string
	http           *http.Client
	tokens         oauth2.TokenSource
	onUnauthorized func()
	logger         *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHook registers fn to run whenever the API answers 401 or
// the token source reports an expired token.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at baseURL (the server root, without
// the /api suffix).
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	origin := strings.TrimRight(baseURL, "/")
	c := &Client{
		origin: origin,
		base:   origin + "/api",
		http:   &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get, post, put and del are JSON round trips relative to {base}/api.

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) del(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("api: building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

// send authorizes req, executes it and decodes the response into out.
func (c *Client) send(req *http.Request, out any) error {
	c.authorize(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// authorize attaches the bearer token when one is available. Anonymous
// requests go out without a header and the API decides.
func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	tok, err := c.tokens.Token()
	if err != nil {
		if errors.Is(err, apperror.ErrAuthExpired) {
			c.unauthorized()
		}
		return
	}
	tok.SetAuthHeader(req)
}

func (c *Client) unauthorized() {
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func (c *Client) statusError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Error = strings.TrimSpace(string(raw))
	}
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		c.logger.Info("api rejected credentials", "path", resp.Request.URL.Path)
		c.unauthorized()
		return apperror.AuthExpired()
	case http.StatusForbidden:
		if msg == "" {
			msg = "access denied"
		}
		return apperror.Forbidden(msg)
	case http.StatusNotFound:
		if msg == "" {
			msg = "not found"
		}
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: msg}
	}
	return &StatusError{Status: resp.StatusCode, Message: msg}
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}
