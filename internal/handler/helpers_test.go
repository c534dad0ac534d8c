package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bytetopia/blanko-console/internal/handler"
	"github.com/bytetopia/blanko-console/internal/model"
	"github.com/bytetopia/blanko-console/internal/siteconfig"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// MockSite serves a fixed site config.
type MockSite struct {
	Config model.SiteConfig
	Err    error
}

func (m *MockSite) Current() siteconfig.State {
	cfg := m.Config
	if cfg.BlogName == "" {
		cfg = model.DefaultSiteConfig()
	}
	return siteconfig.State{Config: cfg, Err: m.Err}
}

func (m *MockSite) Location() *time.Location { return time.UTC }

// MockSessions is both the renderer's user source and the guard's checker.
type MockSessions struct {
	Current *model.User
}

func (m *MockSessions) User() *model.User      { return m.Current }
func (m *MockSessions) IsAuthenticated() bool { return m.Current != nil }

func newRenderer(t *testing.T, users handler.UserSource) *handler.Renderer {
	t.Helper()
	if users == nil {
		users = &MockSessions{}
	}
	rd, err := handler.NewRenderer(&MockSite{}, users, testLogger())
	require.NoError(t, err)
	return rd
}

func do(router http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func postForm(router http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
