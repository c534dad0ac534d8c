package model

import "time"

// File is an attachment uploaded for a post.
type File struct {
	ID           int64     `json:"id"`
	PostID       int64     `json:"post_id"`
	OriginalName string    `json:"original_name"`
	DisplayName  string    `json:"display_name"`
	Description  string    `json:"description"`
	ServerPath   string    `json:"server_path"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsImage reports whether the attachment can be previewed inline.
func (f File) IsImage() bool {
	return len(f.MimeType) > 6 && f.MimeType[:6] == "image/"
}

// FileUpdate is the body of the update-file call.
type FileUpdate struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// FileList is one page of attachments.
type FileList struct {
	Files      []File     `json:"files"`
	Pagination Pagination `json:"pagination"`
}
