// Package taginput is the tag autocomplete widget of the post editor: a
// filtered view over the tag collection with keyboard navigation and
// create-on-the-fly.
package taginput

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// TagStore is the slice of the API client the widget uses.
type TagStore interface {
	ListTags(ctx context.Context) ([]model.Tag, error)
	CreateTag(ctx context.Context, in model.TagInput) (*model.Tag, error)
}

// Option is one row of the dropdown. Create rows carry the name to create
// instead of a tag.
type Option struct {
	Tag    model.Tag `json:"tag"`
	Create bool      `json:"create"`
	Label  string    `json:"label"`
}

// View is the widget state the page renders.
type View struct {
	Input     string      `json:"input"`
	Open      bool        `json:"open"`
	Highlight int         `json:"highlight"`
	Options   []Option    `json:"options"`
	Selected  []model.Tag `json:"selected"`
	Loading   bool        `json:"loading"`
}

// Config configures a Widget.
type Config struct {
	AllowCreate bool
	// OnChange receives the attached tags after every change to them.
	OnChange func([]model.Tag)
	Logger   *slog.Logger
}

// Widget is safe for concurrent use.
type Widget struct {
	store TagStore
	cfg   Config
	group singleflight.Group

	mu        sync.Mutex
	all       []model.Tag
	loaded    bool
	selected  []model.Tag
	input     string
	filtered  []model.Tag
	highlight int
	open      bool
	creating  bool
}

// New returns a widget with the given tags already attached.
func New(store TagStore, selected []model.Tag, cfg Config) *Widget {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	w := &Widget{
		store:     store,
		cfg:       cfg,
		selected:  slices.Clone(selected),
		highlight: -1,
	}
	w.refilterLocked()
	return w
}

// Load fetches the tag collection. It only hits the API once; concurrent
// first calls share the request.
func (w *Widget) Load(ctx context.Context) error {
	w.mu.Lock()
	loaded := w.loaded
	w.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := w.group.Do("tags", func() (any, error) {
		tags, err := w.store.ListTags(ctx)
		if err != nil {
			return nil, err
		}
		w.mu.Lock()
		w.all = tags
		w.loaded = true
		w.refilterLocked()
		w.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return apperror.LoadFailed("tags", err)
	}
	return nil
}

// SetInput replaces the typed text, opens the dropdown and clears the
// highlight.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.input = text
	w.open = true
	w.refilterLocked()
}

// Focus opens the dropdown.
func (w *Widget) Focus() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = true
}

// refilterLocked recomputes the filtered view: unattached tags whose name
// contains the trimmed input, case-insensitively.
func (w *Widget) refilterLocked() {
	needle := strings.ToLower(strings.TrimSpace(w.input))

	w.filtered = w.filtered[:0]
	for _, t := range w.all {
		if w.isSelectedLocked(t.ID) {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(t.Name), needle) {
			w.filtered = append(w.filtered, t)
		}
	}
	w.highlight = -1
}

func (w *Widget) isSelectedLocked(id int64) bool {
	return slices.ContainsFunc(w.selected, func(t model.Tag) bool { return t.ID == id })
}

// offerCreateLocked reports whether the synthetic create row is shown.
func (w *Widget) offerCreateLocked() bool {
	name := strings.TrimSpace(w.input)
	if !w.cfg.AllowCreate || name == "" {
		return false
	}
	return !slices.ContainsFunc(w.filtered, func(t model.Tag) bool {
		return strings.EqualFold(t.Name, name)
	})
}

func (w *Widget) optionsLocked() []Option {
	opts := make([]Option, 0, len(w.filtered)+1)
	for _, t := range w.filtered {
		opts = append(opts, Option{Tag: t, Label: t.Name})
	}
	if w.offerCreateLocked() {
		name := strings.TrimSpace(w.input)
		opts = append(opts, Option{Create: true, Label: fmt.Sprintf("Create tag %q", name)})
	}
	return opts
}

// Options returns the dropdown rows.
func (w *Widget) Options() []Option {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.optionsLocked()
}

// MoveDown highlights the next row, stopping at the last one.
func (w *Widget) MoveDown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.highlight < len(w.optionsLocked())-1 {
		w.highlight++
	}
}

// MoveUp highlights the previous row, down to -1 (nothing highlighted).
func (w *Widget) MoveUp() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.highlight > -1 {
		w.highlight--
	}
}

// Enter selects the highlighted row. With nothing highlighted it creates a
// tag from the input when the create row is offered.
func (w *Widget) Enter(ctx context.Context) error {
	w.mu.Lock()
	opts := w.optionsLocked()
	h := w.highlight
	w.mu.Unlock()

	if h >= 0 && h < len(opts) {
		if opts[h].Create {
			_, err := w.Create(ctx)
			return err
		}
		w.Select(opts[h].Tag)
		return nil
	}

	if len(opts) > 0 && opts[len(opts)-1].Create {
		_, err := w.Create(ctx)
		return err
	}
	return nil
}

// Select attaches tag, clears the input and closes the dropdown.
func (w *Widget) Select(tag model.Tag) {
	w.mu.Lock()
	changed := false
	if !w.isSelectedLocked(tag.ID) {
		w.selected = append(w.selected, tag)
		changed = true
	}
	w.input = ""
	w.open = false
	w.refilterLocked()
	selected := slices.Clone(w.selected)
	w.mu.Unlock()

	if changed {
		w.emit(selected)
	}
}

// ErrCreateInFlight is returned when a create is already running.
var ErrCreateInFlight = errors.New("taginput: tag creation already in progress")

// Create makes a tag named after the trimmed input, adds it to the
// collection and attaches it.
func (w *Widget) Create(ctx context.Context) (*model.Tag, error) {
	w.mu.Lock()
	name := strings.TrimSpace(w.input)
	if !w.cfg.AllowCreate {
		w.mu.Unlock()
		return nil, apperror.Forbidden("tag creation is disabled")
	}
	if name == "" {
		w.mu.Unlock()
		return nil, apperror.ValidationFailed("name", "tag name is required")
	}
	if w.creating {
		w.mu.Unlock()
		return nil, ErrCreateInFlight
	}
	w.creating = true
	w.mu.Unlock()

	tag, err := w.store.CreateTag(ctx, model.TagInput{Name: name})

	w.mu.Lock()
	w.creating = false
	if err != nil {
		w.mu.Unlock()
		w.cfg.Logger.Warn("failed to create tag", "name", name, "error", err)
		return nil, apperror.WriteFailed("tag", err)
	}
	w.all = append(w.all, *tag)
	w.mu.Unlock()

	w.Select(*tag)
	return tag, nil
}

// Remove detaches the tag with the given ID.
func (w *Widget) Remove(id int64) {
	w.mu.Lock()
	before := len(w.selected)
	w.selected = slices.DeleteFunc(w.selected, func(t model.Tag) bool { return t.ID == id })
	changed := len(w.selected) != before
	w.refilterLocked()
	selected := slices.Clone(w.selected)
	w.mu.Unlock()

	if changed {
		w.emit(selected)
	}
}

// Backspace on an empty input detaches the most recently attached tag.
func (w *Widget) Backspace() {
	w.mu.Lock()
	if w.input != "" || len(w.selected) == 0 {
		w.mu.Unlock()
		return
	}
	last := w.selected[len(w.selected)-1].ID
	w.mu.Unlock()

	w.Remove(last)
}

// Escape closes the dropdown and clears the input.
func (w *Widget) Escape() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.open = false
	w.input = ""
	w.refilterLocked()
}

// ClickOutside closes the dropdown and leaves everything else alone.
func (w *Widget) ClickOutside() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
}

// Selected returns the attached tags in attachment order.
func (w *Widget) Selected() []model.Tag {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.selected)
}

// View snapshots the widget.
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	selected := slices.Clone(w.selected)
	if selected == nil {
		selected = []model.Tag{}
	}
	return View{
		Input:     w.input,
		Open:      w.open,
		Highlight: w.highlight,
		Options:   w.optionsLocked(),
		Selected:  selected,
		Loading:   w.creating,
	}
}

func (w *Widget) emit(selected []model.Tag) {
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(selected)
	}
}
