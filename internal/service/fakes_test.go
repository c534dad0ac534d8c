package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bytetopia/blanko-console/internal/api"
	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// =========================================================================
// FAKE API
// =========================================================================
//
// fakeAPI stands in for *api.Client. It implements every small interface
// the services declare, keeps records in maps, and records the last write
// so tests can check what would have gone over the wire.
//
// Set err to make every call fail, as if the backend were down.

type fakeAPI struct {
	mu sync.Mutex

	posts    []model.Post
	tags     map[int64]model.Tag
	comments map[int64]model.Comment
	files    map[int64]model.File
	configs  map[string]string
	stats    model.CommentStats
	nextID   int64

	err error

	lastConfig    map[string]string
	lastPassword  *model.PasswordChange
	lastStatus    model.CommentStatus
	lastListLimit int
	lastUpload    *api.Upload
	uploadBody    string
	calls         int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tags:     make(map[int64]model.Tag),
		comments: make(map[int64]model.Comment),
		files:    make(map[int64]model.File),
		configs:  make(map[string]string),
		nextID:   100,
	}
}

func (f *fakeAPI) call() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeAPI) ListPosts(_ context.Context, page, limit int, publishedOnly bool) (*model.PostList, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastListLimit = limit

	var out []model.Post
	for _, p := range f.posts {
		if publishedOnly && !p.Published {
			continue
		}
		out = append(out, p)
	}
	total := len(out)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	return &model.PostList{
		Posts:      out[start:end],
		Pagination: model.Pagination{Page: page, Limit: limit, Total: total, TotalPages: (total + limit - 1) / limit},
	}, nil
}

func (f *fakeAPI) GetPublicPost(_ context.Context, slug string) (*model.Post, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	for _, p := range f.posts {
		if p.Slug == slug && p.Published {
			return &p, nil
		}
	}
	return nil, apperror.NotFound("post", slug)
}

func (f *fakeAPI) ListPostsByTag(ctx context.Context, tagID int64, page, limit int) (*model.PostList, error) {
	return f.ListPosts(ctx, page, limit, true)
}

func (f *fakeAPI) DeletePost(_ context.Context, id int64) error {
	if err := f.call(); err != nil {
		return err
	}
	for i, p := range f.posts {
		if p.ID == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("post", fmt.Sprint(id))
}

func (f *fakeAPI) ListTags(_ context.Context) ([]model.Tag, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	out := make([]model.Tag, 0, len(f.tags))
	for _, t := range f.tags {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeAPI) ListTagsWithCounts(_ context.Context) ([]model.TagWithCount, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	out := make([]model.TagWithCount, 0, len(f.tags))
	for _, t := range f.tags {
		out = append(out, model.TagWithCount{Tag: t})
	}
	return out, nil
}

func (f *fakeAPI) GetTag(_ context.Context, id int64) (*model.Tag, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	t, ok := f.tags[id]
	if !ok {
		return nil, apperror.NotFound("tag", fmt.Sprint(id))
	}
	return &t, nil
}

func (f *fakeAPI) CreateTag(_ context.Context, in model.TagInput) (*model.Tag, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	f.nextID++
	t := model.Tag{ID: f.nextID, Name: in.Name, Color: in.Color}
	f.tags[t.ID] = t
	return &t, nil
}

func (f *fakeAPI) UpdateTag(_ context.Context, id int64, in model.TagInput) (*model.Tag, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	if _, ok := f.tags[id]; !ok {
		return nil, apperror.NotFound("tag", fmt.Sprint(id))
	}
	t := model.Tag{ID: id, Name: in.Name, Color: in.Color}
	f.tags[id] = t
	return &t, nil
}

func (f *fakeAPI) DeleteTag(_ context.Context, id int64) error {
	if err := f.call(); err != nil {
		return err
	}
	delete(f.tags, id)
	return nil
}

func (f *fakeAPI) ListComments(_ context.Context, postID int64) ([]model.Comment, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	var out []model.Comment
	for _, c := range f.comments {
		if c.PostID == postID && c.Status == model.CommentApproved {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateComment(_ context.Context, in model.CommentInput) (*model.Comment, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	f.nextID++
	c := model.Comment{
		ID:          f.nextID,
		PostID:      in.PostID,
		AuthorName:  in.AuthorName,
		AuthorEmail: in.AuthorEmail,
		Content:     in.Content,
		Status:      model.CommentPending,
	}
	f.comments[c.ID] = c
	return &c, nil
}

func (f *fakeAPI) ListAdminComments(_ context.Context, page, limit int, status model.CommentStatus) (*model.CommentList, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	f.lastStatus = status
	f.lastListLimit = limit
	var out []model.Comment
	for _, c := range f.comments {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return &model.CommentList{
		Comments:   out,
		Pagination: model.CommentPage{CurrentPage: page, Limit: limit, TotalCount: len(out), TotalPages: 1},
	}, nil
}

func (f *fakeAPI) CommentStats(_ context.Context) (*model.CommentStats, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	s := f.stats
	return &s, nil
}

func (f *fakeAPI) UpdateCommentStatus(_ context.Context, id int64, status model.CommentStatus) error {
	if err := f.call(); err != nil {
		return err
	}
	c, ok := f.comments[id]
	if !ok {
		return apperror.NotFound("comment", fmt.Sprint(id))
	}
	c.Status = status
	f.comments[id] = c
	return nil
}

func (f *fakeAPI) DeleteComment(_ context.Context, id int64) error {
	if err := f.call(); err != nil {
		return err
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeAPI) ListFiles(_ context.Context, page, limit int) (*model.FileList, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	f.lastListLimit = limit
	out := make([]model.File, 0, len(f.files))
	for _, file := range f.files {
		out = append(out, file)
	}
	return &model.FileList{Files: out, Pagination: model.Pagination{Page: page, Limit: limit, Total: len(out), TotalPages: 1}}, nil
}

func (f *fakeAPI) GetFile(_ context.Context, id int64) (*model.File, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	file, ok := f.files[id]
	if !ok {
		return nil, apperror.NotFound("file", fmt.Sprint(id))
	}
	return &file, nil
}

func (f *fakeAPI) UploadFile(_ context.Context, up api.Upload) (*model.File, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(up.Content)
	if err != nil {
		return nil, err
	}
	f.lastUpload = &up
	f.uploadBody = string(body)
	f.nextID++
	file := model.File{
		ID:           f.nextID,
		PostID:       up.PostID,
		OriginalName: up.Filename,
		DisplayName:  up.DisplayName,
		Description:  up.Description,
		ServerPath:   fmt.Sprintf("files/%d/%s", f.nextID, up.Filename),
		Size:         int64(len(body)),
	}
	f.files[file.ID] = file
	return &file, nil
}

func (f *fakeAPI) UpdateFile(_ context.Context, id int64, in model.FileUpdate) (*model.File, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	file, ok := f.files[id]
	if !ok {
		return nil, apperror.NotFound("file", fmt.Sprint(id))
	}
	file.DisplayName, file.Description = in.DisplayName, in.Description
	f.files[id] = file
	return &file, nil
}

func (f *fakeAPI) DeleteFile(_ context.Context, id int64) error {
	if err := f.call(); err != nil {
		return err
	}
	delete(f.files, id)
	return nil
}

func (f *fakeAPI) FileURL(serverPath string) string {
	return "http://blog.test/uploads/" + serverPath
}

func (f *fakeAPI) GetConfig(_ context.Context) (map[string]string, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(f.configs))
	for k, v := range f.configs {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAPI) UpdateConfig(_ context.Context, configs map[string]string) error {
	if err := f.call(); err != nil {
		return err
	}
	f.lastConfig = configs
	for k, v := range configs {
		f.configs[k] = v
	}
	return nil
}

func (f *fakeAPI) UpdatePassword(_ context.Context, in model.PasswordChange) error {
	if err := f.call(); err != nil {
		return err
	}
	f.lastPassword = &in
	return nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
