package model

import "time"

// CommentStatus is the moderation state the backend tracks for a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentHidden   CommentStatus = "hidden"
)

// Valid reports whether s is one of the three moderation states.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentHidden:
		return true
	}
	return false
}

// Comment is a visitor comment. Email and IPAddress are only filled on the
// admin endpoints.
type Comment struct {
	ID          int64         `json:"id"`
	PostID      int64         `json:"post_id"`
	PostTitle   string        `json:"post_title,omitempty"`
	AuthorName  string        `json:"author_name"`
	AuthorEmail string        `json:"author_email,omitempty"`
	Content     string        `json:"content"`
	Status      CommentStatus `json:"status,omitempty"`
	IPAddress   string        `json:"ip_address,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// CommentInput is the body of the public create-comment call.
type CommentInput struct {
	PostID      int64  `json:"post_id"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email,omitempty"`
	Content     string `json:"content"`
}

// CommentPage is the pagination envelope of the admin comment list, which
// names its fields differently from the other list endpoints.
type CommentPage struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalCount  int `json:"total_count"`
	Limit       int `json:"limit"`
}

// Pagination converts to the common envelope.
func (p CommentPage) Pagination() Pagination {
	return Pagination{Page: p.CurrentPage, Limit: p.Limit, Total: p.TotalCount, TotalPages: p.TotalPages}
}

// CommentList is one page of admin comments.
type CommentList struct {
	Comments   []Comment   `json:"comments"`
	Pagination CommentPage `json:"pagination"`
}

// CommentStats counts comments per moderation state.
type CommentStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Hidden   int64 `json:"hidden"`
}
