package model

import "time"

// Tag is owned by the tag collection; posts reference tags by ID.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// TagWithCount is a tag plus the number of published posts carrying it.
type TagWithCount struct {
	Tag
	PostCount int64 `json:"post_count"`
}

// TagInput is the body of tag create/update calls. An empty color lets the
// server pick its default.
type TagInput struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// TagIDs returns the IDs of tags in order.
func TagIDs(tags []Tag) []int64 {
	ids := make([]int64, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
