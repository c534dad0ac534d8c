// Package model defines the wire types of the Blanko REST API.
//
// The console never owns these records; it receives them from the API and
// sends request bodies back. The `json:"..."` tags therefore follow the
// backend's snake_case field names exactly.
package model

import "time"

// Post is a blog post as returned by the API.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	Slug      string    `json:"slug"`
	Published bool      `json:"published"`
	ViewCount int64     `json:"view_count"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostInput is the body of both create and update calls.
//
// Slug is omitted when empty so the server derives it. Summary is always
// sent so that clearing it reaches the server.
// CreatedAt is omitted when nil, which tells the server to keep (update) or
// assign (create) its default timestamp.
type PostInput struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Summary   string     `json:"summary"`
	Slug      string     `json:"slug,omitempty"`
	Published bool       `json:"published"`
	TagIDs    []int64    `json:"tag_ids"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Pagination is the page envelope used by every list endpoint.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// HasNext reports whether a page after the current one exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// HasPrev reports whether a page before the current one exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// PostList is one page of posts.
type PostList struct {
	Posts      []Post     `json:"posts"`
	Pagination Pagination `json:"pagination"`
}
