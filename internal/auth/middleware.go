package auth

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// SessionChecker is the part of the session store the guard needs.
type SessionChecker interface {
	IsAuthenticated() bool
}

// RequireSession guards the admin route tree. Anonymous page requests are
// redirected to the login page with the original path preserved; anonymous
// API requests get a 401.
func RequireSession(sessions SessionChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions.IsAuthenticated() {
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("anonymous request to guarded route", "path", r.URL.Path)

			if wantsJSON(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"login required"}`))
				return
			}

			http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
		})
	}
}

// LoginURL builds the login page address that returns to target afterwards.
func LoginURL(target string) string {
	if target == "" || target == "/" {
		return "/login"
	}
	return "/login?redirect=" + url.QueryEscape(target)
}

// SafeRedirect returns target when it is a local absolute path and fallback
// otherwise, so the login form cannot be used as an open redirect.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return target
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/admin/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
