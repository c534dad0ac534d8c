package editor

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// PublishAtLayout is the wall-clock format of Draft.PublishAt, the same
// shape a datetime-local input produces.
const PublishAtLayout = "2006-01-02T15:04"

const publishAtLayoutSeconds = "2006-01-02T15:04:05"

// Draft is the editor's local copy of a post.
type Draft struct {
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Summary   string      `json:"summary"`
	Slug      string      `json:"slug"`
	Published bool        `json:"published"`
	Tags      []model.Tag `json:"tags"`
	// PublishAt is local wall-clock time in the session's location. Empty
	// lets the server pick the timestamp.
	PublishAt string `json:"publish_at"`
}

// DraftFromPost hydrates a draft from a fetched post, showing its creation
// time in loc.
func DraftFromPost(p *model.Post, loc *time.Location) Draft {
	d := Draft{
		Title:     p.Title,
		Content:   p.Content,
		Summary:   p.Summary,
		Slug:      p.Slug,
		Published: p.Published,
		Tags:      slices.Clone(p.Tags),
	}
	if d.Tags == nil {
		d.Tags = []model.Tag{}
	}
	if !p.CreatedAt.IsZero() {
		d.PublishAt = p.CreatedAt.In(loc).Format(PublishAtLayout)
	}
	return d
}

func (d Draft) clone() Draft {
	d.Tags = slices.Clone(d.Tags)
	if d.Tags == nil {
		d.Tags = []model.Tag{}
	}
	return d
}

// snapshot is the serialized form used for dirty checks.
func (d Draft) snapshot() string {
	b, _ := json.Marshal(d.clone())
	return string(b)
}

// Savable reports whether the draft passes the client-side guard: title
// and content must both contain something other than whitespace.
func (d Draft) Savable() error {
	if strings.TrimSpace(d.Title) == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if strings.TrimSpace(d.Content) == "" {
		return apperror.ValidationFailed("content", "content is required")
	}
	return nil
}

// Input builds the create/update body. PublishAt is read in loc and sent
// as UTC; an empty PublishAt is omitted.
func (d Draft) Input(loc *time.Location) (model.PostInput, error) {
	in := model.PostInput{
		Title:     d.Title,
		Content:   d.Content,
		Summary:   d.Summary,
		Slug:      d.Slug,
		Published: d.Published,
		TagIDs:    model.TagIDs(d.Tags),
	}
	if d.PublishAt != "" {
		t, err := parsePublishAt(d.PublishAt, loc)
		if err != nil {
			return model.PostInput{}, err
		}
		utc := t.UTC()
		in.CreatedAt = &utc
	}
	return in, nil
}

func parsePublishAt(v string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{PublishAtLayout, publishAtLayoutSeconds} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperror.ValidationFailed("publish_at", "publish time must look like 2006-01-02T15:04")
}
