package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/editor"
	"github.com/bytetopia/blanko-console/internal/handler"
	"github.com/bytetopia/blanko-console/internal/model"
)

// MockPostStore is the editor's view of the API: posts and tags in memory.
type MockPostStore struct {
	mu       sync.Mutex
	posts    map[int64]*model.Post
	tags     []model.Tag
	nextID   int64
	writeErr error
	created  []model.PostInput
}

func newMockPostStore() *MockPostStore {
	return &MockPostStore{
		posts: map[int64]*model.Post{
			5: {ID: 5, Title: "Existing", Slug: "existing", Content: "body", Published: true},
		},
		tags:   []model.Tag{{ID: 1, Name: "golang"}, {ID: 2, Name: "databases"}},
		nextID: 41,
	}
}

func (m *MockPostStore) GetAdminPost(ctx context.Context, id int64) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Post not found"}
	}
	cp := *p
	return &cp, nil
}

func (m *MockPostStore) CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.nextID++
	m.created = append(m.created, in)
	p := &model.Post{ID: m.nextID, Title: in.Title, Content: in.Content, Slug: in.Slug}
	m.posts[p.ID] = p
	return p, nil
}

func (m *MockPostStore) UpdatePost(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	p := &model.Post{ID: id, Title: in.Title, Content: in.Content, Slug: in.Slug}
	m.posts[id] = p
	return p, nil
}

func (m *MockPostStore) ListTags(ctx context.Context) ([]model.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Tag(nil), m.tags...), nil
}

func (m *MockPostStore) CreateTag(ctx context.Context, in model.TagInput) (*model.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := model.Tag{ID: int64(len(m.tags) + 1), Name: in.Name, Color: in.Color}
	m.tags = append(m.tags, t)
	return &t, nil
}

type editorFixture struct {
	router   http.Handler
	store    *MockPostStore
	registry *editor.Registry
}

func newEditorFixture(t *testing.T) *editorFixture {
	t.Helper()
	store := newMockPostStore()
	reg := editor.NewRegistry(store, editor.RegistryConfig{
		AutosaveInterval: time.Hour,
		Location:         func() *time.Location { return time.UTC },
	}, testLogger())
	t.Cleanup(reg.CloseAll)

	h := handler.NewEditorHandler(reg, store, newRenderer(t, nil), testLogger())
	r := chi.NewRouter()
	r.Get("/admin/posts/new", h.HandleNew)
	r.Get("/admin/posts/{id}", h.HandleEdit)
	r.Post("/admin/api/preview", h.HandlePreview)
	r.Route("/admin/api/editor/{sid}", func(r chi.Router) {
		r.Get("/", h.HandleStatus)
		r.Delete("/", h.HandleClose)
		r.Put("/fields/{field}", h.HandleField)
		r.Post("/save", h.HandleSave)
		r.Post("/dismiss", h.HandleDismiss)
		r.Post("/close", h.HandleClose)
		r.Put("/tags/input", h.HandleTagInput)
		r.Post("/tags/keys/{key}", h.HandleTagKey)
		r.Post("/tags/create", h.HandleTagCreate)
		r.Post("/tags/{tagID}", h.HandleTagSelect)
		r.Delete("/tags/{tagID}", h.HandleTagRemove)
	})
	return &editorFixture{router: r, store: store, registry: reg}
}

var sessionAttr = regexp.MustCompile(`data-session="([^"]+)"`)

// open loads an editor page and returns its session's API base.
func (f *editorFixture) open(t *testing.T, path string) string {
	t.Helper()
	rr := do(f.router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	m := sessionAttr.FindStringSubmatch(rr.Body.String())
	require.Len(t, m, 2, "page carries the session id")
	return "/admin/api/editor/" + m[1]
}

func (f *editorFixture) call(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, handler.EditorState) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var st handler.EditorState
	if rr.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&st))
	}
	return rr, st
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

// =========================================================================
// PAGES
// =========================================================================

func TestEditorHandler_Pages(t *testing.T) {
	t.Run("new opens an empty session", func(t *testing.T) {
		f := newEditorFixture(t)
		f.open(t, "/admin/posts/new")
		assert.Equal(t, 1, f.registry.Len())
	})

	t.Run("edit loads the post", func(t *testing.T) {
		f := newEditorFixture(t)
		rr := do(f.router, http.MethodGet, "/admin/posts/5", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `value="Existing"`)
		assert.Contains(t, rr.Body.String(), `data-state="persisted"`)
	})

	t.Run("missing post is not found and opens nothing", func(t *testing.T) {
		f := newEditorFixture(t)
		rr := do(f.router, http.MethodGet, "/admin/posts/77", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, 0, f.registry.Len())
	})

	t.Run("non-numeric id", func(t *testing.T) {
		f := newEditorFixture(t)
		rr := do(f.router, http.MethodGet, "/admin/posts/abc", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

// =========================================================================
// FIELDS AND SAVES
// =========================================================================

func TestEditorHandler_FieldsAndSave(t *testing.T) {
	f := newEditorFixture(t)
	base := f.open(t, "/admin/posts/new")

	rr, st := f.call(t, http.MethodPut, base+"/fields/title", `"Hello World"`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello-world", st.Status.Draft.Slug, "slug follows the title")
	assert.True(t, st.Status.Dirty)

	t.Run("save refuses empty content", func(t *testing.T) {
		rr, _ := f.call(t, http.MethodPost, base+"/save", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "content", decodeError(t, rr).Field)

		_, st := f.call(t, http.MethodGet, base, "")
		assert.Equal(t, "content is required", st.Status.Error)

		_, st = f.call(t, http.MethodPost, base+"/dismiss", "")
		assert.Empty(t, st.Status.Error)
	})

	t.Run("published takes a boolean", func(t *testing.T) {
		rr, _ := f.call(t, http.MethodPut, base+"/fields/published", `"yes"`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr, st := f.call(t, http.MethodPut, base+"/fields/published", `true`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, st.Status.Draft.Published)
	})

	t.Run("tags are not a plain field", func(t *testing.T) {
		rr, _ := f.call(t, http.MethodPut, base+"/fields/tags", `[]`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("first save creates the post", func(t *testing.T) {
		f.call(t, http.MethodPut, base+"/fields/content", `"# Hi"`)
		rr, st := f.call(t, http.MethodPost, base+"/save", "")

		require.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, st.Result)
		assert.True(t, st.Result.Created)
		assert.Equal(t, int64(42), st.Result.PostID)
		assert.Equal(t, "/admin/posts/42", st.Status.EditURL)
		assert.Equal(t, editor.StatePersisted, st.Status.State)
		assert.False(t, st.Status.Dirty)
		require.Len(t, f.store.created, 1)
		assert.Equal(t, "hello-world", f.store.created[0].Slug)
	})
}

func TestEditorHandler_SaveAfterExpiry(t *testing.T) {
	f := newEditorFixture(t)
	base := f.open(t, "/admin/posts/5")
	f.store.writeErr = apperror.AuthExpired()

	req := httptest.NewRequest(http.MethodPost, base+"/save", nil)
	req.Header.Set("Referer", "http://127.0.0.1:3000/admin/posts/5")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "auth_expired", resp.Error)
	assert.Equal(t, "/login?redirect=%2Fadmin%2Fposts%2F5", resp.Login)
}

func TestEditorHandler_ClosedSession(t *testing.T) {
	f := newEditorFixture(t)
	base := f.open(t, "/admin/posts/new")

	rr, _ := f.call(t, http.MethodPost, base+"/close", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, f.registry.Len())

	rr, _ = f.call(t, http.MethodPut, base+"/fields/title", `"late"`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeError(t, rr).Message, "reload the page")
}

// =========================================================================
// TAG INPUT
// =========================================================================

func TestEditorHandler_TagInput(t *testing.T) {
	t.Run("keyboard selection attaches to the draft", func(t *testing.T) {
		f := newEditorFixture(t)
		base := f.open(t, "/admin/posts/new")

		_, st := f.call(t, http.MethodPut, base+"/tags/input", `{"text":"go"}`)
		require.True(t, st.Tags.Open)
		require.NotEmpty(t, st.Tags.Options)
		assert.Equal(t, "golang", st.Tags.Options[0].Label)

		f.call(t, http.MethodPost, base+"/tags/keys/ArrowDown", "")
		rr, st := f.call(t, http.MethodPost, base+"/tags/keys/Enter", "")

		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, st.Tags.Selected, 1)
		assert.Equal(t, "golang", st.Tags.Selected[0].Name)
		assert.Equal(t, []model.Tag{{ID: 1, Name: "golang"}}, st.Status.Draft.Tags)
		assert.Empty(t, st.Tags.Input)
	})

	t.Run("create from typed text", func(t *testing.T) {
		f := newEditorFixture(t)
		base := f.open(t, "/admin/posts/new")

		_, st := f.call(t, http.MethodPut, base+"/tags/input", `{"text":"  rust "}`)
		require.NotEmpty(t, st.Tags.Options)
		assert.True(t, st.Tags.Options[len(st.Tags.Options)-1].Create)

		rr, st := f.call(t, http.MethodPost, base+"/tags/create", "")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, st.Status.Draft.Tags, 1)
		assert.Equal(t, "rust", st.Status.Draft.Tags[0].Name)
	})

	t.Run("select and remove by id", func(t *testing.T) {
		f := newEditorFixture(t)
		base := f.open(t, "/admin/posts/new")
		f.call(t, http.MethodPost, base+"/tags/keys/focus", "")

		rr, st := f.call(t, http.MethodPost, base+"/tags/2", "")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, st.Status.Draft.Tags, 1)

		rr, _ = f.call(t, http.MethodPost, base+"/tags/2", "")
		assert.Equal(t, http.StatusNotFound, rr.Code, "already attached tags are not offered")

		_, st = f.call(t, http.MethodDelete, base+"/tags/2", "")
		assert.Empty(t, st.Status.Draft.Tags)
	})

	t.Run("unknown key", func(t *testing.T) {
		f := newEditorFixture(t)
		base := f.open(t, "/admin/posts/new")
		rr, _ := f.call(t, http.MethodPost, base+"/tags/keys/Tab", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestEditorHandler_HandlePreview(t *testing.T) {
	f := newEditorFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/preview", strings.NewReader(`{"content":"a ~~b~~ <script>x</script>"}`))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var out map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	assert.Contains(t, out["html"], "<del>b</del>")
	assert.NotContains(t, out["html"], "<script>")
}
