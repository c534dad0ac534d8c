package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	AutosaveInterval time.Duration
	// Location supplies the zone publish times are entered in. It is asked
	// once per new session.
	Location func() *time.Location
}

type entry struct {
	session  *Session
	cancel   context.CancelFunc
	stopped  chan struct{}
	lastSeen time.Time
}

// Registry tracks the live editor sessions so the browser can address its
// session by ID. Each registered session runs its own Autosaver.
type Registry struct {
	posts  PostStore
	cfg    RegistryConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewRegistry(posts PostStore, cfg RegistryConfig, logger *slog.Logger) *Registry {
	if cfg.Location == nil {
		cfg.Location = func() *time.Location { return time.Local }
	}
	return &Registry{
		posts:    posts,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Open creates a session. postID 0 starts a new draft; otherwise the post
// is loaded first and the session is only registered if that succeeds.
// onPersisted is passed through to the session.
func (r *Registry) Open(ctx context.Context, postID int64, onPersisted func(int64)) (*Session, error) {
	id := xid.New().String()
	s := NewSession(id, r.posts, Options{
		Location:    r.cfg.Location(),
		Logger:      r.logger,
		OnPersisted: onPersisted,
	})

	if postID != 0 {
		if err := s.Load(ctx, postID); err != nil {
			s.Close()
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e := &entry{session: s, cancel: cancel, stopped: make(chan struct{}), lastSeen: r.now()}

	r.mu.Lock()
	r.sessions[id] = e
	r.mu.Unlock()

	go func() {
		defer close(e.stopped)
		NewAutosaver(s, r.cfg.AutosaveInterval, r.logger).Run(runCtx)
	}()

	r.logger.Info("editor session opened", "editor_session", id, "post_id", postID)
	return s, nil
}

// Get returns a live session and marks it as recently used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

// Close closes and forgets one session. Unknown IDs are ignored.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		r.stop(e)
		r.logger.Info("editor session closed", "editor_session", id)
	}
}

// CloseIdle closes sessions not used for longer than maxIdle and returns
// how many were closed.
func (r *Registry) CloseIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var idle []*entry
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, e := range idle {
		r.stop(e)
	}
	if len(idle) > 0 {
		r.logger.Info("closed idle editor sessions", "count", len(idle))
	}
	return len(idle)
}

// CloseAll closes every session and waits for their autosavers to stop.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		all = append(all, e)
	}
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		r.stop(e)
	}
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) stop(e *entry) {
	e.session.Close()
	e.cancel()
	<-e.stopped
}
