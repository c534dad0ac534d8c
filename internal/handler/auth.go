package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bytetopia/blanko-console/internal/auth"
	"github.com/bytetopia/blanko-console/internal/model"
	"github.com/bytetopia/blanko-console/internal/service"
)

// Authenticator is the login flow the handler drives.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (*model.User, error)
	Logout(ctx context.Context) error
}

var _ Authenticator = (*service.AuthService)(nil)

// AuthHandler serves the login page and the logout action.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginPage → show the form, or skip it when already logged in
//   - HandleLogin     → exchange credentials, then return to the page that asked
//   - HandleLogout    → end the session
type AuthHandler struct {
	auth     Authenticator
	sessions auth.SessionChecker
	render   *Renderer
	logger   *slog.Logger
}

func NewAuthHandler(authn Authenticator, sessions auth.SessionChecker, render *Renderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authn, sessions: sessions, render: render, logger: logger}
}

// LoginForm is the model of the login page.
type LoginForm struct {
	Username string
	Redirect string
}

// HandleLoginPage shows the login form.
//
// HTTP: GET /login?redirect=/admin/posts
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	target := auth.SafeRedirect(r.URL.Query().Get("redirect"), "/admin")
	if h.sessions.IsAuthenticated() {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	h.render.Page(w, r, http.StatusOK, "login", View{
		Title: "Login",
		Data:  LoginForm{Redirect: target},
	})
}

// HandleLogin checks the credentials and, on success, returns the operator
// to the page the guard bounced them from.
//
// HTTP: POST /login (form: username, password, redirect)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := LoginForm{
		Username: r.PostForm.Get("username"),
		Redirect: auth.SafeRedirect(r.PostForm.Get("redirect"), "/admin"),
	}

	_, err := h.auth.Login(r.Context(), model.Credentials{
		Username: form.Username,
		Password: r.PostForm.Get("password"),
	})
	if err != nil {
		status, _ := statusFor(err)
		msg := errorMessage(err)
		// The API answers bad credentials with 401, which is not an expired
		// session here.
		if status == http.StatusUnauthorized {
			msg = "Invalid username or password"
		}
		h.render.Page(w, r, status, "login", View{Title: "Login", Error: msg, Data: form})
		return
	}

	http.Redirect(w, r, form.Redirect, http.StatusSeeOther)
}

// HandleLogout ends the session and returns to the blog.
//
// HTTP: POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		h.logger.Error("logout failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
