package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytetopia/blanko-console/internal/api"
	"github.com/bytetopia/blanko-console/internal/model"
	"github.com/bytetopia/blanko-console/internal/service"
)

// AdminPageSize is the page size of the admin post list.
const AdminPageSize = 20

// maxUploadMemory is how much of a multipart upload is held in memory
// before spilling to temp files.
const maxUploadMemory = 32 << 20

type Dashboard interface {
	Summary(ctx context.Context) (*service.Summary, error)
}

type PostAdmin interface {
	List(ctx context.Context, page, limit int, publishedOnly bool) (*model.PostList, error)
	Delete(ctx context.Context, id int64) error
}

type TagAdmin interface {
	ListWithCounts(ctx context.Context) ([]model.TagWithCount, error)
	Create(ctx context.Context, in model.TagInput) (*model.Tag, error)
	Update(ctx context.Context, id int64, in model.TagInput) (*model.Tag, error)
	Delete(ctx context.Context, id int64) error
}

type Moderator interface {
	List(ctx context.Context, page int, status model.CommentStatus) (*model.CommentList, error)
	Stats(ctx context.Context) (*model.CommentStats, error)
	SetStatus(ctx context.Context, id int64, status model.CommentStatus) error
	Delete(ctx context.Context, id int64) error
}

type FileAdmin interface {
	List(ctx context.Context, page int) (*model.FileList, error)
	Get(ctx context.Context, id int64) (*model.File, error)
	Upload(ctx context.Context, up api.Upload) (*model.File, error)
	Update(ctx context.Context, id int64, in model.FileUpdate) (*model.File, error)
	Delete(ctx context.Context, id int64) error
	URL(f model.File) string
}

type SettingsAdmin interface {
	Load(ctx context.Context) (*service.Settings, error)
	UpdateConfig(ctx context.Context, cfg model.SiteConfig) error
	UpdateFooterLinks(ctx context.Context, links []model.FooterLink) error
	ChangePassword(ctx context.Context, form service.PasswordForm) error
}

var (
	_ Dashboard     = (*service.DashboardService)(nil)
	_ PostAdmin     = (*service.PostService)(nil)
	_ TagAdmin      = (*service.TagService)(nil)
	_ Moderator     = (*service.ModerationService)(nil)
	_ FileAdmin     = (*service.FileService)(nil)
	_ SettingsAdmin = (*service.SettingsService)(nil)
)

// AdminServices bundles what the admin pages call.
type AdminServices struct {
	Dashboard  Dashboard
	Posts      PostAdmin
	Tags       TagAdmin
	Moderation Moderator
	Files      FileAdmin
	Settings   SettingsAdmin
}

// AdminHandler serves the admin pages other than the editor. Every form
// posts back and redirects (POST-redirect-GET), carrying the outcome as a
// notice; validation failures re-render the page with the error instead.
type AdminHandler struct {
	svc    AdminServices
	render *Renderer
	logger *slog.Logger
}

func NewAdminHandler(svc AdminServices, render *Renderer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, render: render, logger: logger}
}

// =========================================================================
// DASHBOARD AND POSTS
// =========================================================================

// HandleDashboard: GET /admin
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Dashboard.Summary(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "dashboard", View{Title: "Dashboard", Data: sum})
}

// HandlePosts lists every post, drafts included.
//
// HTTP: GET /admin/posts?page=N
func (h *AdminHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Posts.List(r.Context(), pageParam(r), AdminPageSize, false)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "admin_posts", View{Title: "Posts", Data: list})
}

// HandleDeletePost: POST /admin/posts/{id}/delete
func (h *AdminHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err == nil {
		err = h.svc.Posts.Delete(r.Context(), id)
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	redirect(w, r, "/admin/posts", "Post deleted")
}

// =========================================================================
// TAGS
// =========================================================================

// TagsPage is the model of /admin/tags.
type TagsPage struct {
	Tags []model.TagWithCount
	// Form echoes a rejected create/update back into the page.
	Form   model.TagInput
	FormID int64
}

// HandleTags: GET /admin/tags
func (h *AdminHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	h.renderTags(w, r, http.StatusOK, TagsPage{Form: model.TagInput{Color: "#1976d2"}}, "")
}

func (h *AdminHandler) renderTags(w http.ResponseWriter, r *http.Request, status int, page TagsPage, formErr string) {
	tags, err := h.svc.Tags.ListWithCounts(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	page.Tags = tags
	h.render.Page(w, r, status, "admin_tags", View{Title: "Tags", Data: page, Error: formErr})
}

// HandleCreateTag: POST /admin/tags (form: name, color)
func (h *AdminHandler) HandleCreateTag(w http.ResponseWriter, r *http.Request) {
	in := tagForm(r)
	if _, err := h.svc.Tags.Create(r.Context(), in); err != nil {
		h.formFailed(w, r, err, func(status int, msg string) {
			h.renderTags(w, r, status, TagsPage{Form: in}, msg)
		})
		return
	}
	redirect(w, r, "/admin/tags", "Tag created")
}

// HandleUpdateTag: POST /admin/tags/{id} (form: name, color)
func (h *AdminHandler) HandleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	in := tagForm(r)
	if _, err := h.svc.Tags.Update(r.Context(), id, in); err != nil {
		h.formFailed(w, r, err, func(status int, msg string) {
			h.renderTags(w, r, status, TagsPage{Form: in, FormID: id}, msg)
		})
		return
	}
	redirect(w, r, "/admin/tags", "Tag updated")
}

// HandleDeleteTag: POST /admin/tags/{id}/delete
func (h *AdminHandler) HandleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err == nil {
		err = h.svc.Tags.Delete(r.Context(), id)
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	redirect(w, r, "/admin/tags", "Tag deleted")
}

func tagForm(r *http.Request) model.TagInput {
	r.ParseForm()
	return model.TagInput{Name: r.PostForm.Get("name"), Color: r.PostForm.Get("color")}
}

// =========================================================================
// COMMENTS
// =========================================================================

// CommentsPage is the model of /admin/comments.
type CommentsPage struct {
	Comments []model.Comment
	Page     model.Pagination
	Stats    *model.CommentStats
	Status   model.CommentStatus
	Statuses []model.CommentStatus
}

// HandleComments: GET /admin/comments?status=pending&page=N
func (h *AdminHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	status := model.CommentStatus(r.URL.Query().Get("status"))
	list, err := h.svc.Moderation.List(r.Context(), pageParam(r), status)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	stats, err := h.svc.Moderation.Stats(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "admin_comments", View{
		Title: "Comments",
		Data: CommentsPage{
			Comments: list.Comments,
			Page:     list.Pagination.Pagination(),
			Stats:    stats,
			Status:   status,
			Statuses: []model.CommentStatus{model.CommentPending, model.CommentApproved, model.CommentHidden},
		},
	})
}

// HandleCommentStatus: POST /admin/comments/{id}/status (form: status)
func (h *AdminHandler) HandleCommentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err == nil {
		r.ParseForm()
		err = h.svc.Moderation.SetStatus(r.Context(), id, model.CommentStatus(r.PostForm.Get("status")))
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	redirect(w, r, commentsReturn(r), "Comment updated")
}

// HandleDeleteComment: POST /admin/comments/{id}/delete
func (h *AdminHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err == nil {
		err = h.svc.Moderation.Delete(r.Context(), id)
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	redirect(w, r, commentsReturn(r), "Comment deleted")
}

// commentsReturn keeps the operator on the filter they acted from.
func commentsReturn(r *http.Request) string {
	if f := model.CommentStatus(r.FormValue("filter")); f.Valid() {
		return "/admin/comments?status=" + string(f)
	}
	return "/admin/comments"
}

// =========================================================================
// FILES
// =========================================================================

// FileRow pairs an attachment with its public address.
type FileRow struct {
	model.File
	URL string
}

// FilesPage is the model of /admin/files.
type FilesPage struct {
	Files []FileRow
	Page  model.Pagination
}

// HandleFiles: GET /admin/files?page=N
func (h *AdminHandler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	h.renderFiles(w, r, http.StatusOK, "")
}

func (h *AdminHandler) renderFiles(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	list, err := h.svc.Files.List(r.Context(), pageParam(r))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	page := FilesPage{Page: list.Pagination, Files: make([]FileRow, 0, len(list.Files))}
	for _, f := range list.Files {
		page.Files = append(page.Files, FileRow{File: f, URL: h.svc.Files.URL(f)})
	}
	h.render.Page(w, r, status, "admin_files", View{Title: "Files", Data: page, Error: formErr})
}

// HandleUpload: POST /admin/files (multipart: post_id, file, display_name, description)
func (h *AdminHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.renderFiles(w, r, http.StatusBadRequest, "Upload could not be read: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderFiles(w, r, http.StatusBadRequest, "Please choose a file to upload")
		return
	}
	defer file.Close()

	var postID int64
	if v := strings.TrimSpace(r.FormValue("post_id")); v != "" {
		postID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.renderFiles(w, r, http.StatusBadRequest, "post id must be a number")
			return
		}
	}

	_, err = h.svc.Files.Upload(r.Context(), api.Upload{
		PostID:      postID,
		Filename:    header.Filename,
		DisplayName: r.FormValue("display_name"),
		Description: r.FormValue("description"),
		Content:     file,
	})
	if err != nil {
		h.formFailed(w, r, err, func(status int, msg string) {
			h.renderFiles(w, r, status, msg)
		})
		return
	}
	redirect(w, r, "/admin/files", "File uploaded")
}

// FilePage is the model of /admin/files/{id}.
type FilePage struct {
	File FileRow
}

// HandleFile: GET /admin/files/{id}
func (h *AdminHandler) HandleFile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	f, err := h.svc.Files.Get(r.Context(), id)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.renderFile(w, r, http.StatusOK, *f, "")
}

func (h *AdminHandler) renderFile(w http.ResponseWriter, r *http.Request, status int, f model.File, formErr string) {
	h.render.Page(w, r, status, "admin_file", View{
		Title: f.DisplayName,
		Data:  FilePage{File: FileRow{File: f, URL: h.svc.Files.URL(f)}},
		Error: formErr,
	})
}

// HandleUpdateFile: POST /admin/files/{id} (form: display_name, description)
func (h *AdminHandler) HandleUpdateFile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	r.ParseForm()
	in := model.FileUpdate{DisplayName: r.PostForm.Get("display_name"), Description: r.PostForm.Get("description")}

	if _, err := h.svc.Files.Update(r.Context(), id, in); err != nil {
		h.formFailed(w, r, err, func(status int, msg string) {
			f, getErr := h.svc.Files.Get(r.Context(), id)
			if getErr != nil {
				h.render.Error(w, r, getErr)
				return
			}
			f.DisplayName, f.Description = in.DisplayName, in.Description
			h.renderFile(w, r, status, *f, msg)
		})
		return
	}
	redirect(w, r, fmt.Sprintf("/admin/files/%d", id), "File updated")
}

// HandleDeleteFile: POST /admin/files/{id}/delete
func (h *AdminHandler) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err == nil {
		err = h.svc.Files.Delete(r.Context(), id)
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	redirect(w, r, "/admin/files", "File deleted")
}

// =========================================================================
// SETTINGS
// =========================================================================

// SettingsPage is the model of /admin/settings.
type SettingsPage struct {
	*service.Settings
	Languages []service.Language
}

// HandleSettings: GET /admin/settings
func (h *AdminHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	h.renderSettings(w, r, http.StatusOK, nil, "")
}

// renderSettings shows the stored settings, or override when a rejected
// form should be echoed back.
func (h *AdminHandler) renderSettings(w http.ResponseWriter, r *http.Request, status int, override func(*service.Settings), formErr string) {
	s, err := h.svc.Settings.Load(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	if override != nil {
		override(s)
	}
	h.render.Page(w, r, status, "admin_settings", View{
		Title: "Settings",
		Data:  SettingsPage{Settings: s, Languages: service.Languages},
		Error: formErr,
	})
}

// HandleUpdateConfig: POST /admin/settings/config
func (h *AdminHandler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	cfg := model.SiteConfig{
		BlogName:        r.PostForm.Get("blog_name"),
		BlogDescription: r.PostForm.Get("blog_description"),
		FontFamily:      r.PostForm.Get("font_family"),
		Timezone:        r.PostForm.Get("timezone"),
		Language:        r.PostForm.Get("language"),
	}
	if err := h.svc.Settings.UpdateConfig(r.Context(), cfg); err != nil {
		h.formFailed(w, r, err, func(status int, msg string) {
			h.renderSettings(w, r, status, func(s *service.Settings) { s.Config = cfg }, msg)
		})
		return
	}
	redirect(w, r, "/admin/settings", "Settings saved")
}

// HandleUpdateFooterLinks takes parallel link_text/link_url fields; rows
// left entirely blank are dropped.
//
// HTTP: POST /admin/settings/footer
func (h *AdminHandler) HandleUpdateFooterLinks(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	texts, urls := r.PostForm["link_text"], r.PostForm["link_url"]
	var links []model.FooterLink
	for i := range max(len(texts), len(urls)) {
		var l model.FooterLink
		if i < len(texts) {
			l.Text = texts[i]
		}
		if i < len(urls) {
			l.URL = urls[i]
		}
		if strings.TrimSpace(l.Text) == "" && strings.TrimSpace(l.URL) == "" {
			continue
		}
		links = append(links, l)
	}

	if err := h.svc.Settings.UpdateFooterLinks(r.Context(), links); err != nil {
		h.formFailed(w, r, err, func(status int, msg string) {
			h.renderSettings(w, r, status, func(s *service.Settings) { s.FooterLinks = links }, msg)
		})
		return
	}
	redirect(w, r, "/admin/settings", "Footer links saved")
}

// HandleChangePassword: POST /admin/settings/password
func (h *AdminHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	form := service.PasswordForm{
		Current: r.PostForm.Get("current_password"),
		New:     r.PostForm.Get("new_password"),
		Confirm: r.PostForm.Get("confirm_password"),
	}
	if err := h.svc.Settings.ChangePassword(r.Context(), form); err != nil {
		h.formFailed(w, r, err, func(status int, msg string) {
			h.renderSettings(w, r, status, nil, msg)
		})
		return
	}
	redirect(w, r, "/admin/settings", "Password updated successfully")
}

// formFailed re-renders a form page for errors the operator can fix and
// falls back to the error page for everything else.
func (h *AdminHandler) formFailed(w http.ResponseWriter, r *http.Request, err error, rerender func(status int, msg string)) {
	status, _ := statusFor(err)
	if status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity {
		rerender(status, errorMessage(err))
		return
	}
	h.render.Error(w, r, err)
}
