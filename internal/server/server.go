// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects the API client, the
// services, the handlers and the middleware, and decides
//   - which URL patterns map to which handler functions
//   - which routes need a logged-in operator
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config → sqlite.DB → session.Store ─┐
//	                                    ├→ api.Client → services → handlers
//	         siteconfig.Store ←─────────┘
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bytetopia/blanko-console/internal/api"
	"github.com/bytetopia/blanko-console/internal/auth"
	"github.com/bytetopia/blanko-console/internal/config"
	"github.com/bytetopia/blanko-console/internal/editor"
	"github.com/bytetopia/blanko-console/internal/handler"
	"github.com/bytetopia/blanko-console/internal/middleware"
	sqliteRepo "github.com/bytetopia/blanko-console/internal/repository/sqlite"
	"github.com/bytetopia/blanko-console/internal/service"
	"github.com/bytetopia/blanko-console/internal/session"
	"github.com/bytetopia/blanko-console/internal/siteconfig"
)

// startupTimeout bounds the session restore and the first config fetch.
const startupTimeout = 10 * time.Second

// sweepInterval is how often idle editor sessions are looked for.
const sweepInterval = time.Minute

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the editor sessions. On
// shutdown the sessions are stopped first, so no autosave writes after the
// store is gone, then the database is closed.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	sessions *session.Store
	site     *siteconfig.Store
	editors  *editor.Registry
}

// New creates a Server from cfg.
//
// The whole dependency chain is assembled here:
//  1. Open the local store (sqlite.New) and restore the login from it
//  2. Create the API client, authenticated by the session
//  3. Load the site config and create the editor registry
//  4. Create the services and the handlers, then wire them to routes
//
// A backend that is down at startup is not fatal: the site config falls
// back to its defaults and pages report the failure when they load.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Storage.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sealer, err := auth.NewSealer(cfg.Session.Secret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token sealer: %w", err)
	}
	if !sealer.Enabled() {
		logger.Warn("session secret not set, the API token is stored unencrypted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	sessions := session.NewStore(db, sealer, logger)
	if err := sessions.Restore(ctx); err != nil {
		logger.Warn("restoring session failed, starting logged out", slog.String("error", err.Error()))
	}

	// The client reports a rejected token through the hook, which needs the
	// auth service, which needs the editor registry, which needs the client.
	var authSvc *service.AuthService
	client := api.New(cfg.API.BaseURL, cfg.API.Timeout,
		api.WithTokenSource(sessions),
		api.WithUnauthorizedHook(func() {
			if authSvc != nil {
				authSvc.Expire()
			}
		}),
		api.WithLogger(logger),
	)

	site := siteconfig.NewStore(client, logger)
	if err := site.Refetch(ctx); err != nil {
		logger.Warn("loading site config failed, using defaults",
			slog.String("api", cfg.API.BaseURL),
			slog.String("error", err.Error()),
		)
	}

	editors := editor.NewRegistry(client, editor.RegistryConfig{
		AutosaveInterval: cfg.Editor.AutosaveInterval,
		Location:         site.Location,
	}, logger)

	authSvc = service.NewAuthService(sessions, client, editors, logger)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		sessions: sessions,
		site:     site,
		editors:  editors,
	}

	if err := s.setupRoutes(client, authSvc); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /                          → published posts
//	GET  /posts/{slug}              → one post with its comments
//	POST /posts/{slug}/comments     → submit a comment
//	GET  /tags, /tags/{id}          → tag cloud, posts by tag
//	GET  /login, POST /login        → login form
//	POST /logout                    → end the session
//	     /admin/...                 → operator pages (login required)
//	     /admin/api/...             → editor JSON endpoints (login required)
//	GET  /static/*                  → embedded CSS and JS
//	GET  /healthz                   → liveness probe
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the client IP from proxy headers
//  3. Recoverer: catches panics and returns 500 instead of crashing
//  4. Logger: logs each request with its ID and timing
func (s *Server) setupRoutes(client *api.Client, authSvc *service.AuthService) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(handler.Static())))
	s.router.Get("/healthz", s.handleHealth)

	render, err := handler.NewRenderer(s.site, s.sessions, s.logger)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	// DEPENDENCY CHAIN:
	//   api.Client implements every service's API interface
	//   services receive the client (and the stores they keep fresh)
	//   handlers receive the services
	posts := service.NewPostService(client, s.logger)
	tags := service.NewTagService(client, s.logger)
	comments := service.NewCommentService(client, s.logger)

	visitor := handler.NewVisitorHandler(posts, tags, comments, render, s.logger)
	authH := handler.NewAuthHandler(authSvc, s.sessions, render, s.logger)
	admin := handler.NewAdminHandler(handler.AdminServices{
		Dashboard:  service.NewDashboardService(client, s.logger),
		Posts:      posts,
		Tags:       tags,
		Moderation: service.NewModerationService(client, s.logger),
		Files:      service.NewFileService(client, s.logger),
		Settings:   service.NewSettingsService(client, s.site, s.logger),
	}, render, s.logger)
	editorH := handler.NewEditorHandler(s.editors, client, render, s.logger)

	// === Visitor pages ===
	s.router.Get("/", visitor.HandleHome)
	s.router.Get("/posts/{slug}", visitor.HandlePost)
	s.router.Post("/posts/{slug}/comments", visitor.HandleComment)
	s.router.Get("/tags", visitor.HandleTags)
	s.router.Get("/tags/{id}", visitor.HandleTag)

	// === Login ===
	s.router.Get("/login", authH.HandleLoginPage)
	s.router.Post("/login", authH.HandleLogin)
	s.router.Post("/logout", authH.HandleLogout)

	// === Admin ===
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireSession(s.sessions, s.logger))

		r.Get("/", admin.HandleDashboard)

		r.Get("/posts", admin.HandlePosts)
		r.Get("/posts/new", editorH.HandleNew)
		r.Get("/posts/{id}", editorH.HandleEdit)
		r.Post("/posts/{id}/delete", admin.HandleDeletePost)

		r.Get("/tags", admin.HandleTags)
		r.Post("/tags", admin.HandleCreateTag)
		r.Post("/tags/{id}", admin.HandleUpdateTag)
		r.Post("/tags/{id}/delete", admin.HandleDeleteTag)

		r.Get("/comments", admin.HandleComments)
		r.Post("/comments/{id}/status", admin.HandleCommentStatus)
		r.Post("/comments/{id}/delete", admin.HandleDeleteComment)

		r.Get("/files", admin.HandleFiles)
		r.Post("/files", admin.HandleUpload)
		r.Get("/files/{id}", admin.HandleFile)
		r.Post("/files/{id}", admin.HandleUpdateFile)
		r.Post("/files/{id}/delete", admin.HandleDeleteFile)

		r.Get("/settings", admin.HandleSettings)
		r.Post("/settings/config", admin.HandleUpdateConfig)
		r.Post("/settings/footer", admin.HandleUpdateFooterLinks)
		r.Post("/settings/password", admin.HandleChangePassword)

		r.Route("/api", func(r chi.Router) {
			r.Post("/preview", editorH.HandlePreview)
			r.Route("/editor/{sid}", func(r chi.Router) {
				r.Get("/", editorH.HandleStatus)
				r.Delete("/", editorH.HandleClose)
				r.Put("/fields/{field}", editorH.HandleField)
				r.Post("/save", editorH.HandleSave)
				r.Post("/dismiss", editorH.HandleDismiss)
				r.Post("/close", editorH.HandleClose)
				r.Put("/tags/input", editorH.HandleTagInput)
				r.Post("/tags/keys/{key}", editorH.HandleTagKey)
				r.Post("/tags/create", editorH.HandleTagCreate)
				r.Post("/tags/{tagID}", editorH.HandleTagSelect)
				r.Delete("/tags/{tagID}", editorH.HandleTagRemove)
			})
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// sweep closes editor sessions left idle by pages that never said goodbye.
func (s *Server) sweep(ctx context.Context) {
	if s.config.Editor.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.editors.CloseIdle(s.config.Editor.IdleTimeout); n > 0 {
				s.logger.Info("closed idle editor sessions", slog.Int("count", n))
			}
		}
	}
}

// Close stops every editor session and closes the database. Unsaved
// drafts are dropped.
func (s *Server) Close() error {
	s.editors.CloseAll()
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the editor sessions, then close the database
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.sweep(sweepCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("console starting",
			slog.String("url", "http://"+s.config.Addr()),
			slog.String("api", s.config.API.BaseURL),
			slog.String("storage", s.config.Storage.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("console stopped gracefully")
	}

	return nil
}
