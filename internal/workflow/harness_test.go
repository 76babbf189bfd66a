package workflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gigboard/internal/auth"
	"gigboard/internal/client"
	"gigboard/internal/config"
	"gigboard/internal/db"
	api "gigboard/internal/http"
	"gigboard/internal/identity"
	"gigboard/internal/localcache"

	"github.com/stretchr/testify/require"
)

// server is a real job API over a temp sqlite database.
type server struct {
	URL     string
	accepts atomic.Int64
	removes atomic.Int64
}

func newServer(t *testing.T) *server {
	t.Helper()
	gdb, err := db.Connect("sqlite://"+filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAndIndexes(gdb))

	cfg := config.Config{JWTSecret: "test"}
	h := api.NewRouter(cfg, gdb, auth.NewJWT(cfg.JWTSecret), nil, nil)

	s := &server{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/jobs/accept":
			s.accepts.Add(1)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/jobs/accepted/"):
			s.removes.Add(1)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

type recorder struct {
	mu       sync.Mutex
	messages []message
	navs     []navigation
}

type message struct {
	Level Level
	Text  string
}

type navigation struct {
	Delay time.Duration
	To    View
}

func (r *recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	r.messages = append(r.messages, message{level, msg})
	r.mu.Unlock()
}

func (r *recorder) NavigateAfter(delay time.Duration, to View) {
	r.mu.Lock()
	r.navs = append(r.navs, navigation{delay, to})
	r.mu.Unlock()
}

func (r *recorder) last() message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return message{}
	}
	return r.messages[len(r.messages)-1]
}

func (r *recorder) navigations() []navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]navigation(nil), r.navs...)
}

type answer struct {
	yes   bool
	asked int
}

func (a *answer) Confirm(context.Context, string) (bool, error) {
	a.asked++
	return a.yes, nil
}

// user is one signed-in client: its own API client, session and cache.
type user struct {
	api     *client.Client
	session *identity.Session
	cache   *localcache.Store
	ui      *recorder
	confirm *answer
}

func newUser(t *testing.T, srv *server, email, name string) *user {
	t.Helper()
	c := client.New(srv.URL)
	cache, err := localcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	sess := identity.NewSession(c, cache, nil)
	_, err = sess.Register(context.Background(), identity.RegisterInput{Email: email, Password: "hunter22", DisplayName: name})
	require.NoError(t, err)

	return &user{api: c, session: sess, cache: cache, ui: &recorder{}, confirm: &answer{yes: true}}
}

// signIn opens a second client for an account made by newUser, with an
// empty cache of its own.
func signIn(t *testing.T, srv *server, email string) *user {
	t.Helper()
	c := client.New(srv.URL)
	cache, err := localcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	sess := identity.NewSession(c, cache, nil)
	_, err = sess.Login(context.Background(), email, "hunter22")
	require.NoError(t, err)

	return &user{api: c, session: sess, cache: cache, ui: &recorder{}, confirm: &answer{yes: true}}
}

func (u *user) acceptances() *Acceptances {
	return NewAcceptances(AcceptanceDeps{
		API:       u.api,
		Cache:     u.cache,
		Sessions:  u.session,
		Navigator: u.ui,
		Notifier:  u.ui,
		Confirmer: u.confirm,
	})
}

func (u *user) authoring() *Authoring {
	return NewAuthoring(AuthoringDeps{
		API:       u.api,
		Sessions:  u.session,
		Navigator: u.ui,
		Notifier:  u.ui,
		Confirmer: u.confirm,
	})
}

func (u *user) post(t *testing.T, title, cat string) client.Job {
	t.Helper()
	j, err := u.authoring().CreateJob(context.Background(), Fields{
		Title:      title,
		Category:   cat,
		Summary:    "A longer summary that describes " + title + " in enough detail to read well.",
		CoverImage: "https://img.example.com/cover.png",
	})
	require.NoError(t, err)
	return j
}
