// Package identity keeps the signed-in user for the client and lets other
// parts of the program observe changes to it.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gigboard/internal/client"
)

var ErrNotLoggedIn = errors.New("not logged in")

// API is the subset of the job API client the session needs.
type API interface {
	Register(ctx context.Context, email, password, displayName, photoURL string) (client.AuthResult, error)
	Login(ctx context.Context, email, password string) (client.AuthResult, error)
	LoginFederated(ctx context.Context, provider, idToken string) (client.AuthResult, error)
	Me(ctx context.Context) (client.User, error)
	UpdateProfile(ctx context.Context, upd client.ProfileUpdate) (client.User, error)
	SetToken(token string)
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	PhotoURL    string
}

type Session struct {
	api    API
	store  TokenStore
	logger *slog.Logger

	mu      sync.Mutex
	current *client.User
	subs    map[int]func(*client.User)
	nextSub int
}

func NewSession(api API, store TokenStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{api: api, store: store, logger: logger, subs: map[int]func(*client.User){}}
}

// Restore loads a persisted token and refreshes the user from /me.
// A rejected token is discarded and the session stays signed out.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	tok, err := s.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if tok == "" {
		return nil
	}
	s.api.SetToken(tok)

	u, err := s.api.Me(ctx)
	if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrNotFound) {
		s.logger.Info("stored session rejected", "err", err)
		s.api.SetToken("")
		return s.store.ClearToken(ctx)
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	s.set(&u)
	return nil
}

func (s *Session) Register(ctx context.Context, in RegisterInput) (client.User, error) {
	res, err := s.api.Register(ctx, in.Email, in.Password, in.DisplayName, in.PhotoURL)
	if err != nil {
		return client.User{}, fmt.Errorf("register: %w", err)
	}
	return s.adopt(ctx, res)
}

func (s *Session) Login(ctx context.Context, email, password string) (client.User, error) {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return client.User{}, fmt.Errorf("login: %w", err)
	}
	return s.adopt(ctx, res)
}

// LoginWithProvider exchanges an ID token issued by a federated provider.
func (s *Session) LoginWithProvider(ctx context.Context, provider, idToken string) (client.User, error) {
	res, err := s.api.LoginFederated(ctx, provider, idToken)
	if err != nil {
		return client.User{}, fmt.Errorf("login with %s: %w", provider, err)
	}
	return s.adopt(ctx, res)
}

func (s *Session) Logout(ctx context.Context) error {
	s.api.SetToken("")
	s.set(nil)
	if s.store == nil {
		return nil
	}
	return s.store.ClearToken(ctx)
}

func (s *Session) UpdateProfile(ctx context.Context, displayName, photoURL *string) (client.User, error) {
	if _, ok := s.Current(); !ok {
		return client.User{}, ErrNotLoggedIn
	}
	u, err := s.api.UpdateProfile(ctx, client.ProfileUpdate{DisplayName: displayName, PhotoURL: photoURL})
	if err != nil {
		return client.User{}, fmt.Errorf("update profile: %w", err)
	}
	s.set(&u)
	return u, nil
}

// Current returns the signed-in user.
func (s *Session) Current() (client.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return client.User{}, false
	}
	return *s.current, true
}

// Subscribe calls fn with the current user now and after every change.
// fn receives nil when signed out.
func (s *Session) Subscribe(fn func(*client.User)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	cur := cloneUser(s.current)
	s.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) adopt(ctx context.Context, res client.AuthResult) (client.User, error) {
	s.api.SetToken(res.Token)
	if s.store != nil {
		if err := s.store.SetToken(ctx, res.Token); err != nil {
			s.logger.Warn("persist token failed", "err", err)
		}
	}
	u := res.User
	s.set(&u)
	return u, nil
}

func (s *Session) set(u *client.User) {
	s.mu.Lock()
	s.current = cloneUser(u)
	fns := make([]func(*client.User), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(cloneUser(u))
	}
}

func cloneUser(u *client.User) *client.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// DisplayName falls back to the local part of the email when the user has
// not set a name.
func DisplayName(u client.User) string {
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// IsAdmin reports the role the backend assigned.
func IsAdmin(u client.User) bool {
	return u.Role == "admin"
}
