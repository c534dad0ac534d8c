// Package siteconfig caches the blog-wide display settings.
package siteconfig

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bytetopia/blanko-console/internal/model"
)

// ErrLoad is reported in State.Err when the last fetch failed.
var ErrLoad = errors.New("failed to load site configuration")

// Fetcher reads the raw config map. The API client implements it.
type Fetcher interface {
	GetConfig(ctx context.Context) (map[string]string, error)
}

// State is a snapshot of the store.
type State struct {
	Config    model.SiteConfig
	Loading   bool
	Err       error
	FetchedAt time.Time
}

// Store holds the current site config. Until the first fetch completes,
// and after a failed one, it serves the defaults.
type Store struct {
	fetcher Fetcher
	logger  *slog.Logger
	group   singleflight.Group

	mu    sync.RWMutex
	state State

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

func NewStore(fetcher Fetcher, logger *slog.Logger) *Store {
	return &Store{
		fetcher: fetcher,
		logger:  logger,
		state:   State{Config: model.DefaultSiteConfig(), Loading: true},
		subs:    make(map[int]func(State)),
	}
}

// Current returns the latest state.
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Config is shorthand for Current().Config.
func (s *Store) Config() model.SiteConfig {
	return s.Current().Config
}

// Refetch reloads the config. Concurrent callers share one request. On
// failure the defaults are served and the error is kept in State.Err.
func (s *Store) Refetch(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	s.mu.Unlock()

	_, err, _ := s.group.Do("config", func() (any, error) {
		configs, err := s.fetcher.GetConfig(ctx)

		s.mu.Lock()
		if err != nil {
			s.state = State{Config: model.DefaultSiteConfig(), Err: ErrLoad, FetchedAt: time.Now()}
		} else {
			s.state = State{Config: model.SiteConfigFromMap(configs), FetchedAt: time.Now()}
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("site config fetch failed", "error", err)
		} else {
			s.logger.Debug("site config loaded", "blog_name", s.Config().BlogName)
		}
		s.notify()
		return nil, err
	})
	if err != nil {
		return errors.Join(ErrLoad, err)
	}
	return nil
}

// Location resolves the configured timezone, falling back to the console's
// local zone when it is empty or unknown.
func (s *Store) Location() *time.Location {
	return ResolveLocation(s.Config().Timezone)
}

// ResolveLocation loads name, returning time.Local when it is empty or
// cannot be loaded.
func ResolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// Subscribe registers fn to run after every fetch. The returned function
// unregisters it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	state := s.Current()

	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
