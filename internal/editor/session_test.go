package editor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// =========================================================================
// MOCK POST STORE
// =========================================================================

type call struct {
	method string
	id     int64
	input  model.PostInput
}

// mockPosts records every write. When gate is set, writes block until a
// value is sent on it (or it is closed).
type mockPosts struct {
	mu       sync.Mutex
	calls    []call
	posts    map[int64]*model.Post
	nextID   int64
	writeErr error
	loadErr  error
	gate     chan struct{}
	started  chan struct{}
}

func newMockPosts() *mockPosts {
	return &mockPosts{posts: map[int64]*model.Post{}, nextID: 100}
}

func (m *mockPosts) GetAdminPost(_ context.Context, id int64) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: "get", id: id})
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Post not found"}
	}
	cp := *p
	return &cp, nil
}

func (m *mockPosts) CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error) {
	m.record(call{method: "create", input: in})
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.nextID++
	p := &model.Post{ID: m.nextID, Title: in.Title, Content: in.Content}
	m.posts[p.ID] = p
	return p, nil
}

func (m *mockPosts) UpdatePost(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	m.record(call{method: "update", id: id, input: in})
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	return &model.Post{ID: id, Title: in.Title, Content: in.Content}, nil
}

func (m *mockPosts) record(c call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	started := m.started
	m.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
}

func (m *mockPosts) wait(ctx context.Context) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockPosts) writes() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []call
	for _, c := range m.calls {
		if c.method != "get" {
			out = append(out, c)
		}
	}
	return out
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, posts PostStore) *Session {
	t.Helper()
	s := NewSession("test", posts, Options{Location: time.UTC, Logger: testLogger()})
	t.Cleanup(s.Close)
	return s
}

func seedPost(m *mockPosts) *model.Post {
	p := &model.Post{
		ID:        7,
		Title:     "Existing Post",
		Content:   "body",
		Summary:   "sum",
		Slug:      "existing-post",
		Published: true,
		Tags:      []model.Tag{{ID: 1, Name: "go", Color: "#00add8"}},
		CreatedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}
	m.posts[p.ID] = p
	return p
}

// =========================================================================
// LOAD
// =========================================================================

func TestLoad_HydratesDraftAndIsClean(t *testing.T) {
	m := newMockPosts()
	seedPost(m)
	s := newTestSession(t, m)

	require.NoError(t, s.Load(context.Background(), 7))

	d := s.Draft()
	assert.Equal(t, "Existing Post", d.Title)
	assert.Equal(t, "existing-post", d.Slug)
	assert.Equal(t, "2025-06-01T09:30", d.PublishAt)
	assert.Len(t, d.Tags, 1)
	assert.Equal(t, StatePersisted, s.State())
	assert.EqualValues(t, 7, s.PostID())
	assert.False(t, s.IsDirty())
}

func TestLoad_PublishAtShownInSessionLocation(t *testing.T) {
	m := newMockPosts()
	seedPost(m)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	s := NewSession("tz", m, Options{Location: tokyo, Logger: testLogger()})
	defer s.Close()
	require.NoError(t, s.Load(context.Background(), 7))

	assert.Equal(t, "2025-06-01T18:30", s.Draft().PublishAt)
}

func TestLoad_NotFound(t *testing.T) {
	s := newTestSession(t, newMockPosts())

	err := s.Load(context.Background(), 404)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, StateNew, s.State())
	assert.NotEmpty(t, s.Status().Error)
}

func TestLoad_OtherFailureIsLoadError(t *testing.T) {
	m := newMockPosts()
	m.loadErr = errors.New("connection reset")
	s := newTestSession(t, m)

	err := s.Load(context.Background(), 7)
	assert.ErrorIs(t, err, apperror.ErrLoadFailed)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// EDITS AND SLUG FOLLOWING
// =========================================================================

func TestSetTitle_SlugFollowsOnNewDraft(t *testing.T) {
	s := newTestSession(t, newMockPosts())

	s.SetTitle("Hello World!!")
	assert.Equal(t, "hello-world", s.Draft().Slug)

	s.SetTitle("Hello World, Again")
	assert.Equal(t, "hello-world-again", s.Draft().Slug)
}

func TestSetTitle_ManualSlugStopsFollowing(t *testing.T) {
	s := newTestSession(t, newMockPosts())

	s.SetTitle("Hello World!!")
	require.Equal(t, "hello-world", s.Draft().Slug)

	s.SetSlug("custom-slug")
	s.SetTitle("Something Else")

	assert.Equal(t, "custom-slug", s.Draft().Slug)
	assert.Equal(t, "Something Else", s.Draft().Title)
}

func TestSetTitle_LoadedPostFollowsWhileSlugMatchesTitle(t *testing.T) {
	m := newMockPosts()
	seedPost(m)
	s := newTestSession(t, m)
	require.NoError(t, s.Load(context.Background(), 7))

	s.SetTitle("Renamed Post")
	assert.Equal(t, "renamed-post", s.Draft().Slug)
}

func TestSetTitle_LoadedPostWithCustomSlugKeepsIt(t *testing.T) {
	m := newMockPosts()
	p := seedPost(m)
	p.Slug = "hand-picked"
	s := newTestSession(t, m)
	require.NoError(t, s.Load(context.Background(), 7))

	s.SetTitle("Renamed Post")
	assert.Equal(t, "hand-picked", s.Draft().Slug)
}

func TestSetTitle_EmptySlugRegenerates(t *testing.T) {
	m := newMockPosts()
	p := seedPost(m)
	p.Slug = "hand-picked"
	s := newTestSession(t, m)
	require.NoError(t, s.Load(context.Background(), 7))

	s.SetSlug("")
	s.SetTitle("Fresh Title")
	assert.Equal(t, "fresh-title", s.Draft().Slug)
}

func TestSetSlug_BackToDerivedResumesFollowing(t *testing.T) {
	s := newTestSession(t, newMockPosts())

	s.SetTitle("Alpha")
	s.SetSlug("custom")
	s.SetSlug("alpha")
	s.SetTitle("Beta")

	assert.Equal(t, "beta", s.Draft().Slug)
}

func TestSetPublishAt_Validation(t *testing.T) {
	s := newTestSession(t, newMockPosts())

	assert.NoError(t, s.SetPublishAt("2026-02-03T04:05"))
	assert.NoError(t, s.SetPublishAt("2026-02-03T04:05:06"))
	assert.NoError(t, s.SetPublishAt(""))

	err := s.SetPublishAt("yesterday")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestApply(t *testing.T) {
	s := newTestSession(t, newMockPosts())

	require.NoError(t, s.Apply(FieldTitle, "Title"))
	require.NoError(t, s.Apply(FieldContent, "Content"))
	require.NoError(t, s.Apply(FieldSummary, "Summary"))
	require.NoError(t, s.Apply(FieldPublished, true))
	require.NoError(t, s.Apply(FieldTags, []model.Tag{{ID: 2, Name: "x"}}))

	d := s.Draft()
	assert.Equal(t, "title", d.Slug)
	assert.Equal(t, "Summary", d.Summary)
	assert.True(t, d.Published)
	assert.Equal(t, []int64{2}, model.TagIDs(d.Tags))

	assert.ErrorIs(t, s.Apply("author", "me"), apperror.ErrValidation)
	assert.ErrorIs(t, s.Apply(FieldPublished, "yes"), apperror.ErrValidation)
	assert.ErrorIs(t, s.Apply(FieldTitle, 42), apperror.ErrValidation)
}

func TestApplyJSON(t *testing.T) {
	s := newTestSession(t, newMockPosts())

	require.NoError(t, s.ApplyJSON(FieldTitle, json.RawMessage(`"From JSON"`)))
	require.NoError(t, s.ApplyJSON(FieldPublished, json.RawMessage(`true`)))
	require.NoError(t, s.ApplyJSON(FieldTags, json.RawMessage(`[{"id":4,"name":"json","color":"#fff000"}]`)))

	d := s.Draft()
	assert.Equal(t, "From JSON", d.Title)
	assert.True(t, d.Published)
	require.Len(t, d.Tags, 1)
	assert.Equal(t, "json", d.Tags[0].Name)

	assert.ErrorIs(t, s.ApplyJSON(FieldPublished, json.RawMessage(`"nope"`)), apperror.ErrValidation)
}

// =========================================================================
// DIRTY TRACKING
// =========================================================================

func TestIsDirty_RoundTrip(t *testing.T) {
	edits := map[string]func(s *Session){
		"title":      func(s *Session) { s.SetTitle("Changed") },
		"content":    func(s *Session) { s.SetContent("changed") },
		"summary":    func(s *Session) { s.SetSummary("changed") },
		"slug":       func(s *Session) { s.SetSlug("changed") },
		"published":  func(s *Session) { s.SetPublished(false) },
		"tags":       func(s *Session) { s.SetTags(nil) },
		"publish_at": func(s *Session) { s.SetPublishAt("") },
	}

	for name, edit := range edits {
		t.Run(name, func(t *testing.T) {
			m := newMockPosts()
			seedPost(m)
			s := newTestSession(t, m)
			require.NoError(t, s.Load(context.Background(), 7))
			require.False(t, s.IsDirty())

			edit(s)
			assert.True(t, s.IsDirty())

			_, err := s.Save(context.Background())
			require.NoError(t, err)
			assert.False(t, s.IsDirty())
		})
	}
}

func TestIsDirty_RevertingEditIsClean(t *testing.T) {
	m := newMockPosts()
	seedPost(m)
	s := newTestSession(t, m)
	require.NoError(t, s.Load(context.Background(), 7))

	s.SetSummary("other")
	s.SetSummary("sum")
	assert.False(t, s.IsDirty())
}

func TestIsDirty_NilAndEmptyTagsAreEqual(t *testing.T) {
	s := newTestSession(t, newMockPosts())
	s.SetTags(nil)
	assert.False(t, s.IsDirty())
}

// =========================================================================
// MANUAL SAVE
// =========================================================================

func TestSave_CreateThenUpdate(t *testing.T) {
	m := newMockPosts()
	var persisted []int64
	s := NewSession("s", m, Options{
		Location:    time.UTC,
		Logger:      testLogger(),
		OnPersisted: func(id int64) { persisted = append(persisted, id) },
	})
	defer s.Close()

	s.SetTitle("First")
	s.SetContent("body")

	res, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "Post created successfully!", res.Message)
	id := res.PostID
	require.NotZero(t, id)
	assert.Equal(t, StatePersisted, s.State())
	assert.Equal(t, "/admin/posts/101", s.Status().EditURL)

	s.SetContent("more body")
	res, err = s.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "Post updated successfully!", res.Message)
	assert.Equal(t, id, s.PostID(), "identity must not change")

	w := m.writes()
	require.Len(t, w, 2)
	assert.Equal(t, "create", w[0].method)
	assert.Equal(t, "update", w[1].method)
	assert.Equal(t, id, w[1].id)
	assert.Equal(t, []int64{id}, persisted, "OnPersisted fires exactly once")
}

func TestSave_BlankTitleOrContentBlocked(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		field   string
	}{
		{"empty title", "", "body", "title"},
		{"whitespace title", "   ", "body", "title"},
		{"empty content", "Title", "", "content"},
		{"whitespace content", "Title", "\n\t ", "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockPosts()
			s := newTestSession(t, m)
			s.SetTitle(tt.title)
			s.SetContent(tt.content)

			_, err := s.Save(context.Background())

			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
			assert.Empty(t, m.writes(), "no request may be sent")
		})
	}
}

func TestSave_FailureSurfacedAndDismissible(t *testing.T) {
	m := newMockPosts()
	m.writeErr = errors.New("500 internal")
	s := newTestSession(t, m)
	s.SetTitle("T")
	s.SetContent("C")

	_, err := s.Save(context.Background())
	require.ErrorIs(t, err, apperror.ErrWriteFailed)

	st := s.Status()
	assert.Equal(t, "failed to save post", st.Error)
	assert.True(t, st.Dirty)
	assert.Equal(t, StateNew, st.State)
	assert.Nil(t, st.LastSavedAt)

	s.DismissError()
	assert.Empty(t, s.Status().Error)

	// Retrying resends the full draft and succeeds.
	m.mu.Lock()
	m.writeErr = nil
	m.mu.Unlock()
	_, err = s.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, s.IsDirty())
	require.Len(t, m.writes(), 2)
	assert.Equal(t, m.writes()[0].input, m.writes()[1].input)
}

func TestSave_WriteBody(t *testing.T) {
	m := newMockPosts()
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	s := NewSession("s", m, Options{Location: berlin, Logger: testLogger()})
	defer s.Close()

	s.SetTitle("Body Check")
	s.SetContent("content")
	s.SetSummary("summary")
	s.SetPublished(true)
	s.SetTags([]model.Tag{{ID: 3}, {ID: 8}})
	require.NoError(t, s.SetPublishAt("2026-07-01T12:00"))

	_, err = s.Save(context.Background())
	require.NoError(t, err)

	in := m.writes()[0].input
	assert.Equal(t, "body-check", in.Slug)
	assert.Equal(t, []int64{3, 8}, in.TagIDs)
	assert.True(t, in.Published)
	require.NotNil(t, in.CreatedAt)
	assert.Equal(t, time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC), *in.CreatedAt)
	assert.Equal(t, time.UTC, in.CreatedAt.Location())
}

func TestSave_ClearedPublishAtOmitted(t *testing.T) {
	m := newMockPosts()
	seedPost(m)
	s := newTestSession(t, m)
	require.NoError(t, s.Load(context.Background(), 7))

	require.NoError(t, s.SetPublishAt(""))
	_, err := s.Save(context.Background())
	require.NoError(t, err)

	assert.Nil(t, m.writes()[0].input.CreatedAt)
}

func TestSave_ConcurrentManualSaveConflicts(t *testing.T) {
	m := newMockPosts()
	m.gate = make(chan struct{})
	m.started = make(chan struct{}, 4)
	s := newTestSession(t, m)
	s.SetTitle("T")
	s.SetContent("C")

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()
	<-m.started

	_, err := s.Save(context.Background())
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.True(t, s.Status().Saving)

	close(m.gate)
	require.NoError(t, <-done)
	assert.Len(t, m.writes(), 1)
}

// =========================================================================
// AUTOSAVE
// =========================================================================

func TestAutosaveTick_NoCallsWhenBlank(t *testing.T) {
	m := newMockPosts()
	s := newTestSession(t, m)

	assert.False(t, s.AutosaveTick(context.Background()))

	s.SetTitle("Only a title")
	assert.False(t, s.AutosaveTick(context.Background()))

	s.SetTitle("  ")
	s.SetContent("only content")
	assert.False(t, s.AutosaveTick(context.Background()))

	assert.Empty(t, m.writes())
}

func TestAutosaveTick_NoCallsWhenClean(t *testing.T) {
	m := newMockPosts()
	seedPost(m)
	s := newTestSession(t, m)
	require.NoError(t, s.Load(context.Background(), 7))

	assert.False(t, s.AutosaveTick(context.Background()), "clean right after load")

	s.SetContent("edited")
	require.True(t, s.AutosaveTick(context.Background()))
	assert.False(t, s.AutosaveTick(context.Background()), "clean right after save")

	assert.Len(t, m.writes(), 1)
}

func TestAutosaveTick_CreatesAndPersistsIdentity(t *testing.T) {
	m := newMockPosts()
	var persisted []int64
	s := NewSession("s", m, Options{
		Location:    time.UTC,
		Logger:      testLogger(),
		OnPersisted: func(id int64) { persisted = append(persisted, id) },
	})
	defer s.Close()

	s.SetTitle("Auto")
	s.SetContent("saved by timer")
	require.True(t, s.AutosaveTick(context.Background()))

	id := s.PostID()
	require.NotZero(t, id)
	st := s.Status()
	assert.NotNil(t, st.LastSavedAt)
	assert.False(t, st.Dirty)
	assert.Equal(t, []int64{id}, persisted)

	s.SetContent("second pass")
	require.True(t, s.AutosaveTick(context.Background()))
	assert.Equal(t, id, s.PostID())
	assert.Equal(t, "update", m.writes()[1].method)
}

func TestAutosaveTick_FailureIsSilent(t *testing.T) {
	m := newMockPosts()
	m.writeErr = errors.New("create failed")
	s := newTestSession(t, m)
	s.SetTitle("T")
	s.SetContent("C")
	before := s.Status()

	assert.False(t, s.AutosaveTick(context.Background()))

	st := s.Status()
	assert.True(t, st.Dirty)
	assert.Empty(t, st.Error, "autosave failures are never shown")
	assert.Nil(t, st.LastSavedAt)
	assert.Equal(t, StateNew, st.State)
	assert.Equal(t, before.Draft, st.Draft)

	// Next tick retries the whole draft.
	m.mu.Lock()
	m.writeErr = nil
	m.mu.Unlock()
	assert.True(t, s.AutosaveTick(context.Background()))
	assert.Len(t, m.writes(), 2)
}

func TestAutosaveTick_DuringManualSaveIsDeferredThenNoOp(t *testing.T) {
	m := newMockPosts()
	m.gate = make(chan struct{})
	m.started = make(chan struct{}, 4)
	s := newTestSession(t, m)
	s.SetTitle("Race")
	s.SetContent("body")

	saveDone := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		saveDone <- err
	}()
	<-m.started

	tickDone := make(chan bool, 1)
	go func() { tickDone <- s.AutosaveTick(context.Background()) }()

	select {
	case <-tickDone:
		t.Fatal("autosave tick must wait for the in-flight save")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Len(t, m.writes(), 1)

	close(m.gate)
	require.NoError(t, <-saveDone)
	assert.False(t, <-tickDone)
	assert.Len(t, m.writes(), 1, "only one write is sent")
}

func TestSave_QueuedBehindAutosaveRechecksDraft(t *testing.T) {
	m := newMockPosts()
	m.gate = make(chan struct{})
	m.started = make(chan struct{}, 4)
	s := newTestSession(t, m)
	s.SetTitle("T")
	s.SetContent("v1")

	tickDone := make(chan bool, 1)
	go func() { tickDone <- s.AutosaveTick(context.Background()) }()
	<-m.started

	s.SetContent("v2")
	saveDone := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		saveDone <- err
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.manualSaving
	}, time.Second, 5*time.Millisecond)

	s.SetContent("   ")
	close(m.gate)

	assert.True(t, <-tickDone)
	err := <-saveDone
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	writes := m.writes()
	require.Len(t, writes, 1, "blank content is never sent")
	assert.Equal(t, "v1", writes[0].input.Content)
	assert.Equal(t, "content is required", s.Status().Error)
}

func TestAutosaveTick_EditDuringSaveStaysDirty(t *testing.T) {
	m := newMockPosts()
	m.gate = make(chan struct{})
	m.started = make(chan struct{}, 4)
	s := newTestSession(t, m)
	s.SetTitle("T")
	s.SetContent("v1")

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()
	<-m.started

	s.SetContent("v2")
	close(m.gate)
	require.NoError(t, <-done)

	assert.True(t, s.IsDirty())
	assert.True(t, s.AutosaveTick(context.Background()))
	assert.Equal(t, "v2", m.writes()[1].input.Content)
}

// =========================================================================
// LIVENESS
// =========================================================================

func TestClose_DiscardsLateResult(t *testing.T) {
	m := newMockPosts()
	m.gate = make(chan struct{})
	m.started = make(chan struct{}, 4)
	var persisted int
	s := NewSession("s", m, Options{
		Location:    time.UTC,
		Logger:      testLogger(),
		OnPersisted: func(int64) { persisted++ },
	})
	s.SetTitle("T")
	s.SetContent("C")

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()
	<-m.started

	s.Close()
	close(m.gate)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, StateNew, s.State())
	assert.Zero(t, persisted)
	assert.True(t, s.IsDirty())
}

func TestClose_StopsFurtherWork(t *testing.T) {
	m := newMockPosts()
	s := NewSession("s", m, Options{Location: time.UTC, Logger: testLogger()})
	s.SetTitle("T")
	s.SetContent("C")
	s.Close()
	s.Close()

	assert.True(t, s.Closed())
	assert.False(t, s.AutosaveTick(context.Background()))
	_, err := s.Save(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Load(context.Background(), 7), ErrClosed)
	assert.Empty(t, m.writes())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done() not closed")
	}
}
