package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bytetopia/blanko-console/internal/model"
	"github.com/bytetopia/blanko-console/internal/session"
)

// SessionStore is the part of session.Store the login flow drives.
type SessionStore interface {
	Login(ctx context.Context, authn session.Authenticator, creds model.Credentials) (*model.User, error)
	Logout(ctx context.Context) error
	Clear(ctx context.Context) error
}

// EditorCloser stops every open editor. Editors belong to the logged-in
// operator and must not keep autosaving after the session ends.
type EditorCloser interface {
	CloseAll()
}

// AuthService handles logging the operator in and out.
//
//	AuthHandler (HTTP) → AuthService → session.Store (local storage)
//	                                 ↘ api.Client (POST /auth/login)
type AuthService struct {
	sessions SessionStore
	authn    session.Authenticator
	editors  EditorCloser
	logger   *slog.Logger
}

func NewAuthService(sessions SessionStore, authn session.Authenticator, editors EditorCloser, logger *slog.Logger) *AuthService {
	return &AuthService{
		sessions: sessions,
		authn:    authn,
		editors:  editors,
		logger:   logger,
	}
}

// Login exchanges credentials for a token and persists the session.
func (s *AuthService) Login(ctx context.Context, creds model.Credentials) (*model.User, error) {
	user, err := s.sessions.Login(ctx, s.authn, creds)
	if err != nil {
		s.logger.Warn("login failed", slog.String("username", creds.Username), slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return user, nil
}

// Logout clears the session and closes open editors.
func (s *AuthService) Logout(ctx context.Context) error {
	s.closeEditors()
	if err := s.sessions.Logout(ctx); err != nil {
		return fmt.Errorf("service/auth: logging out: %w", err)
	}
	return nil
}

// Expire is the API client's unauthorized hook: the server rejected the
// token, so the session is dropped the same way a logout drops it.
func (s *AuthService) Expire() {
	s.logger.Warn("api rejected the session token, logging out")
	// The hook may run on an autosaver goroutine, and CloseAll waits for
	// every autosaver to return.
	go s.closeEditors()
	if err := s.sessions.Clear(context.Background()); err != nil {
		s.logger.Error("clearing expired session", slog.String("error", err.Error()))
	}
}

func (s *AuthService) closeEditors() {
	if s.editors != nil {
		s.editors.CloseAll()
	}
}
