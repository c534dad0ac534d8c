// Package session holds the console's single authenticated session: the
// admin user and the API token, persisted in local storage so a restart
// does not log the operator out.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/auth"
	"github.com/bytetopia/blanko-console/internal/model"
	"github.com/bytetopia/blanko-console/internal/repository"
)

// Storage keys.
const (
	TokenKey = "auth_token"
	UserKey  = "user"
)

// ErrNoToken is returned by Token when nobody is logged in.
var ErrNoToken = errors.New("session: no token")

// Authenticator exchanges credentials for a token. The API client
// implements it.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (*model.LoginResult, error)
}

// State is what subscribers are told after every change.
type State struct {
	User          *model.User
	Authenticated bool
}

// Store is the auth session. It is safe for concurrent use.
type Store struct {
	kv     repository.KeyValueStore
	sealer *auth.Sealer
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	user  *model.User
	token *oauth2.Token

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

var _ oauth2.TokenSource = (*Store)(nil)

func NewStore(kv repository.KeyValueStore, sealer *auth.Sealer, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		sealer: sealer,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]func(State)),
	}
}

// Restore loads a previously persisted session. Incomplete, unreadable or
// expired stored data is discarded and the store starts anonymous.
func (s *Store) Restore(ctx context.Context) error {
	rawToken, tokenErr := s.kv.Get(ctx, TokenKey)
	rawUser, userErr := s.kv.Get(ctx, UserKey)

	for _, err := range []error{tokenErr, userErr} {
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("session: restoring: %w", err)
		}
	}
	if tokenErr != nil || userErr != nil {
		if tokenErr == nil || userErr == nil {
			s.logger.Info("discarding incomplete stored session")
			return s.Clear(ctx)
		}
		return nil
	}

	tok, user, err := s.decode(rawToken, rawUser)
	if err != nil {
		s.logger.Warn("discarding unreadable stored session", "error", err)
		return s.Clear(ctx)
	}
	if auth.Expired(tok, s.now()) {
		s.logger.Info("stored session has expired", "user", user.Username)
		return s.Clear(ctx)
	}

	s.mu.Lock()
	s.token, s.user = tok, user
	s.mu.Unlock()

	s.logger.Info("session restored", "user", user.Username, "expires", tok.Expiry)
	s.notify()
	return nil
}

func (s *Store) decode(rawToken, rawUser string) (*oauth2.Token, *model.User, error) {
	opened, err := s.sealer.Open(rawToken)
	if err != nil {
		return nil, nil, err
	}
	tok, err := auth.ParseToken(opened)
	if err != nil {
		return nil, nil, err
	}

	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, nil, fmt.Errorf("parsing stored user: %w", err)
	}
	return tok, &user, nil
}

// Login authenticates against the API and persists the result.
func (s *Store) Login(ctx context.Context, authn Authenticator, creds model.Credentials) (*model.User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if creds.Password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	res, err := authn.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("session: logging in: %w", err)
	}

	tok, err := auth.ParseToken(res.Token)
	if err != nil {
		return nil, fmt.Errorf("session: login returned an unusable token: %w", err)
	}

	sealed, err := s.sealer.Seal(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("session: sealing token: %w", err)
	}
	userJSON, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("session: encoding user: %w", err)
	}

	if err := s.kv.Set(ctx, TokenKey, sealed); err != nil {
		return nil, fmt.Errorf("session: persisting token: %w", err)
	}
	if err := s.kv.Set(ctx, UserKey, string(userJSON)); err != nil {
		return nil, fmt.Errorf("session: persisting user: %w", err)
	}

	user := res.User
	s.mu.Lock()
	s.token, s.user = tok, &user
	s.mu.Unlock()

	s.logger.Info("logged in", "user", user.Username)
	s.notify()
	return &user, nil
}

// Logout ends the session.
func (s *Store) Logout(ctx context.Context) error {
	s.logger.Info("logging out")
	return s.Clear(ctx)
}

// Clear forgets the session in memory and in storage. It is idempotent and
// only notifies subscribers when something was actually cleared.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	had := s.token != nil || s.user != nil
	s.token, s.user = nil, nil
	s.mu.Unlock()

	var errs []error
	for _, key := range []string{TokenKey, UserKey} {
		if err := s.kv.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	if had {
		s.notify()
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("session: clearing storage: %w", err)
	}
	return nil
}

// Token implements oauth2.TokenSource. It returns ErrNoToken when
// anonymous and an AuthExpired error once the token's exp has passed.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, ErrNoToken
	}
	if auth.Expired(s.token, s.now()) {
		return nil, apperror.AuthExpired()
	}
	tok := *s.token
	return &tok, nil
}

// User returns a copy of the logged-in user, or nil.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a non-expired session is held.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && !auth.Expired(s.token, s.now())
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	user := s.User()
	return State{User: user, Authenticated: s.IsAuthenticated()}
}

// Subscribe registers fn to be called after every change. The returned
// function unregisters it.
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
	state := s.Snapshot()

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
