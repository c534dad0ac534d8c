package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
	"github.com/bytetopia/blanko-console/internal/service"
)

// VisitorPageSize is how many posts the home and tag pages list.
const VisitorPageSize = 10

// PostReader is what the visitor pages need from the post service.
type PostReader interface {
	List(ctx context.Context, page, limit int, publishedOnly bool) (*model.PostList, error)
	Get(ctx context.Context, slug string) (*model.Post, error)
	ListByTag(ctx context.Context, tagID int64, page, limit int) (*model.PostList, error)
}

// TagReader is what the visitor pages need from the tag service.
type TagReader interface {
	ListWithCounts(ctx context.Context) ([]model.TagWithCount, error)
	Get(ctx context.Context, id int64) (*model.Tag, error)
}

// CommentWriter is the visitor side of the comment service.
type CommentWriter interface {
	ListForPost(ctx context.Context, postID int64) ([]model.Comment, error)
	Submit(ctx context.Context, in model.CommentInput) (*model.Comment, error)
}

// VisitorHandler serves the public blog pages.
type VisitorHandler struct {
	posts    PostReader
	tags     TagReader
	comments CommentWriter
	render   *Renderer
	logger   *slog.Logger
}

func NewVisitorHandler(posts PostReader, tags TagReader, comments CommentWriter, render *Renderer, logger *slog.Logger) *VisitorHandler {
	return &VisitorHandler{posts: posts, tags: tags, comments: comments, render: render, logger: logger}
}

// PostPage is the model of /posts/{slug}.
type PostPage struct {
	Post     *model.Post
	Comments []model.Comment
	Form     model.CommentInput
	// CommentsErr is set when the post loaded but its comments did not.
	CommentsErr string
}

// TagPage is the model of /tags/{id}.
type TagPage struct {
	Tag   *model.Tag
	Posts *model.PostList
}

// HandleHome lists published posts.
//
// HTTP: GET /?page=N
func (h *VisitorHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	list, err := h.posts.List(r.Context(), pageParam(r), VisitorPageSize, true)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "home", View{Data: list})
}

// HandlePost shows one published post with its approved comments.
//
// HTTP: GET /posts/{slug}
func (h *VisitorHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.renderPost(w, r, http.StatusOK, post, model.CommentInput{}, "")
}

func (h *VisitorHandler) renderPost(w http.ResponseWriter, r *http.Request, status int, post *model.Post, form model.CommentInput, formErr string) {
	page := PostPage{Post: post, Form: form}
	var err error
	page.Comments, err = h.comments.ListForPost(r.Context(), post.ID)
	if err != nil {
		h.logger.Warn("loading comments failed",
			slog.Int64("post_id", post.ID),
			slog.String("error", err.Error()),
		)
		page.CommentsErr = "Comments could not be loaded."
	}

	h.render.Page(w, r, status, "post", View{Title: post.Title, Data: page, Error: formErr})
}

// HandleComment submits a visitor comment. Comments start out pending, so
// the visitor is told it awaits moderation.
//
// HTTP: POST /posts/{slug}/comments
func (h *VisitorHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := h.posts.Get(r.Context(), slug)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, apperror.ValidationFailed("", "invalid form"))
		return
	}
	in := model.CommentInput{
		PostID:      post.ID,
		AuthorName:  r.PostForm.Get("author_name"),
		AuthorEmail: r.PostForm.Get("author_email"),
		Content:     r.PostForm.Get("content"),
	}

	if _, err := h.comments.Submit(r.Context(), in); err != nil {
		status, _ := statusFor(err)
		if status >= 500 {
			h.logger.Error("submitting comment failed", slog.String("error", err.Error()))
		}
		h.renderPost(w, r, status, post, in, errorMessage(err))
		return
	}

	redirect(w, r, "/posts/"+url.PathEscape(slug),
		"Thanks! Your comment will appear once it is approved.")
}

// HandleTags lists every tag with its post count.
//
// HTTP: GET /tags
func (h *VisitorHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.ListWithCounts(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "tags", View{Title: "Tags", Data: tags})
}

// HandleTag lists the published posts carrying one tag.
//
// HTTP: GET /tags/{id}?page=N
func (h *VisitorHandler) HandleTag(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.render.Error(w, r, apperror.NotFound("tag", chi.URLParam(r, "id")))
		return
	}
	tag, err := h.tags.Get(r.Context(), id)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	posts, err := h.posts.ListByTag(r.Context(), id, pageParam(r), VisitorPageSize)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "tag", View{Title: tag.Name, Data: TagPage{Tag: tag, Posts: posts}})
}

var _ PostReader = (*service.PostService)(nil)
var _ TagReader = (*service.TagService)(nil)
var _ CommentWriter = (*service.CommentService)(nil)

// idParam reads a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, "invalid id "+strconv.Quote(raw))
	}
	return id, nil
}

// pageParam reads ?page=, defaulting to 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
