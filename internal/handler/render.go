// Package handler contains the console's HTTP handlers.
//
// Pages are rendered server-side with html/template; the editor and tag
// widget additionally expose small JSON endpoints under /admin/api that the
// page script drives. Handlers parse requests and pick templates. Rules
// live in the service, editor, and taginput packages.
package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/bytetopia/blanko-console/internal/auth"
	"github.com/bytetopia/blanko-console/internal/model"
	"github.com/bytetopia/blanko-console/internal/siteconfig"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the embedded stylesheet and scripts, rooted so that
// "console.css" resolves to static/console.css.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// SiteSource supplies the blog-wide display settings.
type SiteSource interface {
	Current() siteconfig.State
	Location() *time.Location
}

// UserSource reports the logged-in operator, if any.
type UserSource interface {
	User() *model.User
}

// View is what every page template receives. Data holds the page model.
type View struct {
	Title   string
	Site    model.SiteConfig
	SiteErr string
	User    *model.User
	Path    string
	Notice  string
	Error   string
	Data    any
}

// Renderer parses every page once at startup and renders them on demand.
//
// Each page is parsed together with layout.html, which defines the
// document shell and calls {{template "content" .}}. Parsing per page
// keeps the "content" blocks from colliding.
type Renderer struct {
	pages  map[string]*template.Template
	md     goldmark.Markdown
	site   SiteSource
	users  UserSource
	logger *slog.Logger
}

func NewRenderer(site SiteSource, users UserSource, logger *slog.Logger) (*Renderer, error) {
	rd := &Renderer{
		pages:  make(map[string]*template.Template),
		site:   site,
		users:  users,
		logger: logger,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("handler: listing templates: %w", err)
	}
	for _, name := range names {
		base := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		if base == "layout" {
			continue
		}
		tmpl, err := template.New(base).Funcs(rd.funcs()).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s: %w", name, err)
		}
		rd.pages[base] = tmpl
	}
	return rd, nil
}

func (rd *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": rd.Markdown,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(rd.site.Location()).Format("Jan 2, 2006")
		},
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(rd.site.Location()).Format("Jan 2, 2006 15:04")
		},
		"filesize":  formatSize,
		"hasPrefix": strings.HasPrefix,
		"add":       func(a, b int) int { return a + b },
		"pageURL":   pageURL,
	}
}

// Markdown renders src with GitHub-flavoured extensions. Raw HTML in the
// source is dropped.
func (rd *Renderer) Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := rd.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Page renders the named page with status.
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, name string, v View) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	state := rd.site.Current()
	v.Site = state.Config
	if state.Err != nil {
		v.SiteErr = state.Err.Error()
	}
	v.User = rd.users.User()
	v.Path = r.URL.Path
	if v.Notice == "" {
		v.Notice = r.URL.Query().Get("notice")
	}

	// Render into a buffer so a template error does not leave a half-written
	// page behind a 200.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", v); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Error renders the error page for err. An expired session sends the
// browser to the login page instead.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	if status == http.StatusUnauthorized {
		http.Redirect(w, r, loginURLFor(r), http.StatusSeeOther)
		return
	}
	if status >= 500 {
		rd.logger.Error("page failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	rd.Page(w, r, status, "error", View{
		Title: http.StatusText(status),
		Error: errorMessage(err),
		Data:  status,
	})
}

// redirect sends the browser to target with a one-shot notice.
func redirect(w http.ResponseWriter, r *http.Request, target, notice string) {
	if notice != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "notice=" + url.QueryEscape(notice)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// loginURLFor is where a request that hit an expired session should send
// the operator. JSON calls come from a page, so the page is the target.
func loginURLFor(r *http.Request) string {
	target := r.URL.RequestURI()
	if strings.HasPrefix(r.URL.Path, "/admin/api/") {
		target = "/admin"
		if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" {
			target = ref.RequestURI()
		}
	}
	return auth.LoginURL(auth.SafeRedirect(target, "/admin"))
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

// pageURL returns path with its page query parameter set, keeping any
// other parameters in extra.
func pageURL(path string, page int, extra ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(extra); i += 2 {
		if extra[i+1] != "" {
			q.Set(extra[i], extra[i+1])
		}
	}
	if page > 1 {
		q.Set("page", fmt.Sprint(page))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
