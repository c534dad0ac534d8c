package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/editor"
	"github.com/bytetopia/blanko-console/internal/model"
	"github.com/bytetopia/blanko-console/internal/taginput"
)

// EditorRegistry is the part of editor.Registry the handler uses.
type EditorRegistry interface {
	Open(ctx context.Context, postID int64, onPersisted func(int64)) (*editor.Session, error)
	Get(id string) (*editor.Session, bool)
	Close(id string)
}

var _ EditorRegistry = (*editor.Registry)(nil)

// EditorHandler serves the post editor page and the JSON endpoints its
// script drives. The page holds nothing but the session ID; the draft,
// dirty tracking, saves and the tag input all live in the session.
type EditorHandler struct {
	editors EditorRegistry
	tags    taginput.TagStore
	render  *Renderer
	logger  *slog.Logger

	// widgets maps editor session ID to that session's tag input. Entries
	// are dropped when the session closes.
	widgets sync.Map
}

func NewEditorHandler(editors EditorRegistry, tags taginput.TagStore, render *Renderer, logger *slog.Logger) *EditorHandler {
	return &EditorHandler{editors: editors, tags: tags, render: render, logger: logger}
}

// EditorState is what every editor endpoint returns.
type EditorState struct {
	Status editor.Status      `json:"status"`
	Tags   taginput.View      `json:"tags"`
	Result *editor.SaveResult `json:"result,omitempty"`
}

// EditorPage is the model of the editor page.
type EditorPage struct {
	State EditorState
}

// =========================================================================
// PAGES
// =========================================================================

// HandleNew opens a session on an empty draft.
//
// HTTP: GET /admin/posts/new
func (h *EditorHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.open(w, r, 0)
}

// HandleEdit opens a session on an existing post. A post that does not
// exist renders the not-found page, never an empty editor.
//
// HTTP: GET /admin/posts/{id}
func (h *EditorHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.render.Error(w, r, apperror.NotFound("post", chi.URLParam(r, "id")))
		return
	}
	h.open(w, r, id)
}

func (h *EditorHandler) open(w http.ResponseWriter, r *http.Request, postID int64) {
	var sess *editor.Session
	sess, err := h.editors.Open(r.Context(), postID, func(id int64) {
		h.logger.Info("draft persisted",
			slog.String("editor_session", sess.ID()),
			slog.String("edit_url", editor.EditURL(id)),
		)
	})
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	widget := h.attachWidget(sess)
	if err := widget.Load(r.Context()); err != nil {
		// The editor is usable without suggestions; attached tags still show.
		h.logger.Warn("loading tag suggestions failed",
			slog.String("editor_session", sess.ID()),
			slog.String("error", err.Error()),
		)
	}

	title := "New Post"
	if postID != 0 {
		title = "Edit Post"
	}
	h.render.Page(w, r, http.StatusOK, "editor", View{
		Title: title,
		Data:  EditorPage{State: EditorState{Status: sess.Status(), Tags: widget.View()}},
	})
}

// attachWidget creates the tag input for sess. Its selection feeds the
// session's tags.
func (h *EditorHandler) attachWidget(sess *editor.Session) *taginput.Widget {
	widget := taginput.New(h.tags, sess.Draft().Tags, taginput.Config{
		AllowCreate: true,
		OnChange:    sess.SetTags,
		Logger:      h.logger,
	})
	if v, loaded := h.widgets.LoadOrStore(sess.ID(), widget); loaded {
		return v.(*taginput.Widget)
	}
	go func() {
		<-sess.Done()
		h.widgets.Delete(sess.ID())
	}()
	return widget
}

// =========================================================================
// SESSION ENDPOINTS
// =========================================================================

// session resolves {sid}, writing a 404 when the session is gone.
func (h *EditorHandler) session(w http.ResponseWriter, r *http.Request) (*editor.Session, *taginput.Widget, bool) {
	sid := chi.URLParam(r, "sid")
	sess, ok := h.editors.Get(sid)
	if !ok {
		writeError(w, r, &apperror.AppError{Err: apperror.ErrNotFound, Message: "editor session has ended, reload the page"})
		return nil, nil, false
	}
	if v, ok := h.widgets.Load(sid); ok {
		return sess, v.(*taginput.Widget), true
	}
	return sess, h.attachWidget(sess), true
}

func (h *EditorHandler) writeState(w http.ResponseWriter, sess *editor.Session, widget *taginput.Widget, res *editor.SaveResult) {
	writeJSON(w, http.StatusOK, EditorState{Status: sess.Status(), Tags: widget.View(), Result: res})
}

// HandleStatus: GET /admin/api/editor/{sid}
func (h *EditorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeState(w, sess, widget, nil)
}

// HandleField edits one draft field. The body is the field's JSON value,
// e.g. "My title" or true.
//
// HTTP: PUT /admin/api/editor/{sid}/fields/{field}
func (h *EditorHandler) HandleField(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}
	field := chi.URLParam(r, "field")
	if field == editor.FieldTags {
		writeError(w, r, apperror.ValidationFailed(field, "tags are edited through the tag input"))
		return
	}

	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.ApplyJSON(field, raw); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeState(w, sess, widget, nil)
}

// HandleSave is the Save button. Its failure stays on the session until
// dismissed, so the status returned with the error shows it too.
//
// HTTP: POST /admin/api/editor/{sid}/save
func (h *EditorHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := sess.Save(r.Context())
	if errors.Is(err, editor.ErrClosed) {
		writeError(w, r, &apperror.AppError{Err: apperror.ErrNotFound, Message: "editor session has ended, reload the page"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeState(w, sess, widget, &res)
}

// HandleDismiss clears the displayed save error.
//
// HTTP: POST /admin/api/editor/{sid}/dismiss
func (h *EditorHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.DismissError()
	h.writeState(w, sess, widget, nil)
}

// HandleClose ends the session when the page is left. Unsaved changes are
// dropped and any save still in flight is discarded when it returns.
//
// HTTP: DELETE /admin/api/editor/{sid}, POST /admin/api/editor/{sid}/close
func (h *EditorHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	h.editors.Close(chi.URLParam(r, "sid"))
	w.WriteHeader(http.StatusNoContent)
}

// HandlePreview renders markdown the way the post page will.
//
// HTTP: POST /admin/api/preview  body: {"content": "..."}
func (h *EditorHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	html, err := h.render.Markdown(body.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": string(html)})
}

// =========================================================================
// TAG INPUT ENDPOINTS
// =========================================================================

// HandleTagInput replaces the typed text.
//
// HTTP: PUT /admin/api/editor/{sid}/tags/input  body: {"text": "go"}
func (h *EditorHandler) HandleTagInput(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	widget.SetInput(body.Text)
	h.writeState(w, sess, widget, nil)
}

// HandleTagKey forwards one keyboard or pointer event to the widget.
//
// HTTP: POST /admin/api/editor/{sid}/tags/keys/{key}
// keys: ArrowDown, ArrowUp, Enter, Escape, Backspace, focus, blur
func (h *EditorHandler) HandleTagKey(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}

	switch key := chi.URLParam(r, "key"); key {
	case "ArrowDown":
		widget.MoveDown()
	case "ArrowUp":
		widget.MoveUp()
	case "Enter":
		if err := widget.Enter(r.Context()); err != nil {
			writeError(w, r, tagErr(err))
			return
		}
	case "Escape":
		widget.Escape()
	case "Backspace":
		widget.Backspace()
	case "focus":
		if err := widget.Load(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		widget.Focus()
	case "blur":
		widget.ClickOutside()
	default:
		writeError(w, r, apperror.ValidationFailed("key", "unsupported key "+key))
		return
	}
	h.writeState(w, sess, widget, nil)
}

// HandleTagSelect attaches one of the offered tags.
//
// HTTP: POST /admin/api/editor/{sid}/tags/{tagID}
func (h *EditorHandler) HandleTagSelect(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "tagID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tag, found := offeredTag(widget.Options(), id)
	if !found {
		writeError(w, r, apperror.NotFound("tag", chi.URLParam(r, "tagID")))
		return
	}
	widget.Select(tag)
	h.writeState(w, sess, widget, nil)
}

// HandleTagRemove detaches a tag.
//
// HTTP: DELETE /admin/api/editor/{sid}/tags/{tagID}
func (h *EditorHandler) HandleTagRemove(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "tagID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	widget.Remove(id)
	h.writeState(w, sess, widget, nil)
}

// HandleTagCreate creates a tag from the typed text and attaches it.
//
// HTTP: POST /admin/api/editor/{sid}/tags/create
func (h *EditorHandler) HandleTagCreate(w http.ResponseWriter, r *http.Request) {
	sess, widget, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := widget.Create(r.Context()); err != nil {
		writeError(w, r, tagErr(err))
		return
	}
	h.writeState(w, sess, widget, nil)
}

func offeredTag(opts []taginput.Option, id int64) (model.Tag, bool) {
	for _, o := range opts {
		if !o.Create && o.Tag.ID == id {
			return o.Tag, true
		}
	}
	return model.Tag{}, false
}

// tagErr gives the in-flight sentinel a status.
func tagErr(err error) error {
	if errors.Is(err, taginput.ErrCreateInFlight) {
		return &apperror.AppError{Err: apperror.ErrConflict, Message: "tag is already being created", Cause: err}
	}
	return err
}
