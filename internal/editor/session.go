// Package editor keeps a post draft in step with the blog API.
//
// A Session owns one draft. It starts New (nothing on the server yet) or is
// loaded from an existing post, and becomes Persisted the first time a save
// succeeds. Saves are serialized per session; an Autosaver drives periodic
// unattended saves.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// ErrClosed is returned for work that finished after the session closed.
// Its result has been discarded.
var ErrClosed = errors.New("editor: session closed")

// PostStore is the slice of the API client the editor uses.
type PostStore interface {
	GetAdminPost(ctx context.Context, id int64) (*model.Post, error)
	CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error)
	UpdatePost(ctx context.Context, id int64, in model.PostInput) (*model.Post, error)
}

// State is the identity state of a session.
type State int

const (
	StateNew State = iota
	StatePersisted
)

func (s State) String() string {
	if s == StatePersisted {
		return "persisted"
	}
	return "new"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "new":
		*s = StateNew
	case "persisted":
		*s = StatePersisted
	default:
		return fmt.Errorf("editor: unknown state %q", b)
	}
	return nil
}

// Options configure a Session.
type Options struct {
	Location *time.Location
	Logger   *slog.Logger
	// OnPersisted runs once, after the first successful save of a new draft.
	OnPersisted func(postID int64)
	Now         func() time.Time
}

// Session is one editing session over one draft. It is safe for concurrent
// use by HTTP handlers and the autosaver.
type Session struct {
	id     string
	posts  PostStore
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time

	onPersisted func(int64)

	// writeMu is held for the duration of each network write.
	writeMu sync.Mutex

	mu              sync.Mutex
	draft           Draft
	baseline        string
	postID          int64
	slugManual      bool
	saving          bool
	manualSaving    bool
	autosaveRunning bool
	lastSavedAt     time.Time
	lastErr         error
	closed          bool
	done            chan struct{}
}

// NewSession returns an empty New session.
func NewSession(id string, posts PostStore, opts Options) *Session {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		id:          id,
		posts:       posts,
		loc:         opts.Location,
		logger:      opts.Logger.With("editor_session", id),
		now:         opts.Now,
		onPersisted: opts.OnPersisted,
		draft:       Draft{Tags: []model.Tag{}},
		done:        make(chan struct{}),
	}
	s.baseline = s.draft.snapshot()
	return s
}

func (s *Session) ID() string { return s.id }

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Load fetches post id through the admin endpoint, which leaves the view
// counter alone, and makes it the draft and the baseline.
func (s *Session) Load(ctx context.Context, id int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.postID != 0 {
		s.mu.Unlock()
		return fmt.Errorf("editor: session already bound to post %d", s.postID)
	}
	s.mu.Unlock()

	post, err := s.posts.GetAdminPost(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.lastErr = apperror.NotFound("post", strconv.FormatInt(id, 10))
		} else {
			s.lastErr = apperror.LoadFailed("post", err)
		}
		return s.lastErr
	}

	s.draft = DraftFromPost(post, s.loc)
	s.baseline = s.draft.snapshot()
	s.postID = post.ID
	s.slugManual = false
	s.lastErr = nil
	s.logger.Debug("post loaded", "post_id", post.ID)
	return nil
}

// State reports New or Persisted.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if s.postID != 0 {
		return StatePersisted
	}
	return StateNew
}

// PostID is the persisted identity, or 0 while New.
func (s *Session) PostID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postID
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.clone()
}

// IsDirty reports whether the draft differs from the last loaded or saved
// version.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Session) dirtyLocked() bool {
	return s.draft.snapshot() != s.baseline
}

// =========================================================================
// EDITS
// =========================================================================

// SetTitle changes the title. While the slug is following the title it is
// regenerated from the new title.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slugFollowsLocked() {
		s.draft.Slug = Slugify(title)
	}
	s.draft.Title = title
}

// slugFollowsLocked reports whether the slug should track the title. It
// does while the slug is empty or still equals the slug of the current
// (about to become previous) title, and for a new draft until the slug has
// been edited by hand.
func (s *Session) slugFollowsLocked() bool {
	if s.draft.Slug == "" || s.draft.Slug == Slugify(s.draft.Title) {
		return true
	}
	return s.postID == 0 && !s.slugManual
}

// SetSlug sets the slug by hand. A value that differs from the title's
// slug stops automatic regeneration.
func (s *Session) SetSlug(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft.Slug = slug
	s.slugManual = slug != Slugify(s.draft.Title)
}

func (s *Session) SetContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Content = content
}

func (s *Session) SetSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Summary = summary
}

func (s *Session) SetPublished(published bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Published = published
}

// SetTags replaces the attached tags.
func (s *Session) SetTags(tags []model.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft.Tags = append([]model.Tag{}, tags...)
}

// SetPublishAt sets the local publish time. Empty clears it.
func (s *Session) SetPublishAt(v string) error {
	if v != "" {
		if _, err := parsePublishAt(v, s.loc); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.PublishAt = v
	return nil
}

// Field names accepted by Apply.
const (
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldSummary   = "summary"
	FieldSlug      = "slug"
	FieldPublished = "published"
	FieldTags      = "tags"
	FieldPublishAt = "publish_at"
)

// Apply edits one field by name.
func (s *Session) Apply(field string, value any) error {
	switch field {
	case FieldTitle, FieldContent, FieldSummary, FieldSlug, FieldPublishAt:
		v, ok := value.(string)
		if !ok {
			return apperror.ValidationFailed(field, field+" must be a string")
		}
		switch field {
		case FieldTitle:
			s.SetTitle(v)
		case FieldContent:
			s.SetContent(v)
		case FieldSummary:
			s.SetSummary(v)
		case FieldSlug:
			s.SetSlug(v)
		case FieldPublishAt:
			return s.SetPublishAt(v)
		}
	case FieldPublished:
		v, ok := value.(bool)
		if !ok {
			return apperror.ValidationFailed(field, "published must be a boolean")
		}
		s.SetPublished(v)
	case FieldTags:
		v, ok := value.([]model.Tag)
		if !ok {
			return apperror.ValidationFailed(field, "tags must be a list of tags")
		}
		s.SetTags(v)
	default:
		return apperror.ValidationFailed(field, "unknown field "+strconv.Quote(field))
	}
	return nil
}

// ApplyJSON decodes raw according to field and applies it.
func (s *Session) ApplyJSON(field string, raw json.RawMessage) error {
	var value any
	var err error
	switch field {
	case FieldPublished:
		var v bool
		err = json.Unmarshal(raw, &v)
		value = v
	case FieldTags:
		var v []model.Tag
		err = json.Unmarshal(raw, &v)
		value = v
	default:
		var v string
		err = json.Unmarshal(raw, &v)
		value = v
	}
	if err != nil {
		return apperror.ValidationFailed(field, "invalid value for "+field)
	}
	return s.Apply(field, value)
}

// =========================================================================
// SAVES
// =========================================================================

// SaveResult describes a successful manual save.
type SaveResult struct {
	PostID  int64     `json:"post_id"`
	Created bool      `json:"created"`
	Message string    `json:"message"`
	SavedAt time.Time `json:"saved_at"`
}

// Save writes the draft on the user's behalf. It refuses a draft with an
// empty title or content, returns a Conflict error while another manual
// save is outstanding, and waits for an in-flight autosave before writing.
// A failure is kept for display until DismissError or the next success.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return SaveResult{}, ErrClosed
	}
	if s.manualSaving {
		s.mu.Unlock()
		return SaveResult{}, &apperror.AppError{Err: apperror.ErrConflict, Message: "a save is already in progress"}
	}
	if err := s.draft.Savable(); err != nil {
		s.lastErr = err
		s.mu.Unlock()
		return SaveResult{}, err
	}
	s.manualSaving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.manualSaving = false
		s.mu.Unlock()
	}()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	created, postID, err := s.write(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(err, ErrClosed) {
		return SaveResult{}, err
	}
	if err != nil {
		s.lastErr = err
		if !errors.Is(err, apperror.ErrValidation) {
			s.logger.Error("save failed", "post_id", postID, "error", err)
		}
		return SaveResult{}, err
	}

	s.lastErr = nil
	res := SaveResult{PostID: postID, Created: created, SavedAt: s.lastSavedAt, Message: "Post updated successfully!"}
	if created {
		res.Message = "Post created successfully!"
	}
	return res, nil
}

// AutosaveTick is one unattended save attempt. It does nothing when the
// title or content is blank or nothing changed; otherwise it writes like
// Save but never reports failure to the user. It waits for an in-flight
// save and then checks again, so a tick that lands during a manual save
// normally becomes a no-op. It reports whether a write succeeded.
func (s *Session) AutosaveTick(ctx context.Context) bool {
	if !s.autosaveNeeded() {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.autosaveNeeded() {
		return false
	}

	_, postID, err := s.write(ctx)
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			s.logger.Warn("autosave failed", "post_id", postID, "error", err)
		}
		return false
	}
	s.logger.Debug("autosaved", "post_id", postID)
	return true
}

func (s *Session) autosaveNeeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.draft.Savable() == nil && s.dirtyLocked()
}

// write sends the current draft. The caller holds writeMu. The draft is
// checked again here since it may have been edited while the caller
// waited. On success the baseline becomes the draft that was sent, so
// edits made while the request was in flight stay dirty.
func (s *Session) write(ctx context.Context) (created bool, postID int64, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, 0, ErrClosed
	}
	if err := s.draft.Savable(); err != nil {
		postID = s.postID
		s.mu.Unlock()
		return false, postID, err
	}
	draft := s.draft.clone()
	sent := draft.snapshot()
	postID = s.postID
	s.saving = true
	s.mu.Unlock()

	var post *model.Post
	in, err := draft.Input(s.loc)
	if err == nil {
		if postID != 0 {
			post, err = s.posts.UpdatePost(ctx, postID, in)
		} else {
			post, err = s.posts.CreatePost(ctx, in)
			if err == nil && (post == nil || post.ID == 0) {
				err = errors.New("create returned no post id")
			}
		}
	}

	s.mu.Lock()
	s.saving = false
	if s.closed {
		s.mu.Unlock()
		return false, postID, ErrClosed
	}
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, apperror.ErrValidation) {
			return false, postID, err
		}
		return false, postID, apperror.WriteFailed("post", err)
	}

	var fire func(int64)
	if postID == 0 {
		postID = post.ID
		s.postID = postID
		created = true
		fire = s.onPersisted
	}
	s.baseline = sent
	s.lastSavedAt = s.now()
	s.mu.Unlock()

	if fire != nil {
		s.logger.Info("draft persisted", "post_id", postID)
		fire(postID)
	}
	return created, postID, nil
}

// DismissError clears the error shown to the user.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Close ends the session. Results of requests still in flight are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setAutosaveRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autosaveRunning = running
}

// =========================================================================
// STATUS
// =========================================================================

// Status is the view of a session the UI polls.
type Status struct {
	ID              string     `json:"id"`
	State           State      `json:"state"`
	PostID          int64      `json:"post_id,omitempty"`
	Dirty           bool       `json:"dirty"`
	Saving          bool       `json:"saving"`
	AutosaveRunning bool       `json:"autosave_running"`
	LastSavedAt     *time.Time `json:"last_saved_at,omitempty"`
	Error           string     `json:"error,omitempty"`
	EditURL         string     `json:"edit_url,omitempty"`
	Draft           Draft      `json:"draft"`
}

// EditURL is the admin address of post id.
func EditURL(id int64) string {
	return "/admin/posts/" + strconv.FormatInt(id, 10)
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:              s.id,
		State:           s.stateLocked(),
		PostID:          s.postID,
		Dirty:           s.dirtyLocked(),
		Saving:          s.saving,
		AutosaveRunning: s.autosaveRunning,
		Draft:           s.draft.clone(),
	}
	if !s.lastSavedAt.IsZero() {
		t := s.lastSavedAt
		st.LastSavedAt = &t
	}
	if s.lastErr != nil {
		st.Error = apperror.Message(s.lastErr, "Failed to save post")
	}
	if s.postID != 0 {
		st.EditURL = EditURL(s.postID)
	}
	return st
}
