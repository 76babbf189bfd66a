package localcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "nested", "cache.db")
	s, err := Open(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, p
}

func TestPutGetDelete(t *testing.T) {
	t.Parallel()
	s, _ := openTemp(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "J1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, Entry{JobID: "J1", UserEmail: "a@x.com", UserName: "a", AcceptedAt: at, JobTitle: "Logo"}))

	e, ok, err := s.Get(ctx, "J1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", e.UserEmail)
	assert.Equal(t, "Logo", e.JobTitle)
	assert.True(t, at.Equal(e.AcceptedAt))

	require.NoError(t, s.Delete(ctx, "J1"))
	has, err := s.Has(ctx, "J1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSurvivesReopen(t *testing.T) {
	t.Parallel()
	s, p := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Entry{JobID: "J1", UserEmail: "a@x.com"}))
	require.NoError(t, s.SetToken(ctx, "tok-1"))
	require.NoError(t, s.Close())

	again, err := Open(p)
	require.NoError(t, err)
	defer again.Close()

	has, err := again.Has(ctx, "J1")
	require.NoError(t, err)
	assert.True(t, has)

	tok, err := again.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	require.NoError(t, again.ClearToken(ctx))
	tok, err = again.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestListOrdersNewestFirst(t *testing.T) {
	t.Parallel()
	s, _ := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, Entry{JobID: "old", UserEmail: "a@x.com", AcceptedAt: base}))
	require.NoError(t, s.Put(ctx, Entry{JobID: "new", UserEmail: "a@x.com", AcceptedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Put(ctx, Entry{JobID: "other", UserEmail: "b@x.com", AcceptedAt: base}))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].JobID)

	mine, err := s.ListByEmail(ctx, "A@X.com")
	require.NoError(t, err)
	require.Len(t, mine, 2)
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Entry{JobID: "stale", UserEmail: "a@x.com", JobTitle: "Gone"}))
	require.NoError(t, s.Put(ctx, Entry{JobID: "kept", UserEmail: "a@x.com", JobTitle: "Kept title"}))
	require.NoError(t, s.Put(ctx, Entry{JobID: "theirs", UserEmail: "b@x.com"}))

	added, removed, err := s.Reconcile(ctx, "a@x.com", []Entry{
		{JobID: "kept", UserEmail: "a@x.com"},
		{JobID: "fresh", UserEmail: "a@x.com", JobTitle: "Fresh"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	_, ok, _ := s.Get(ctx, "stale")
	assert.False(t, ok)

	kept, ok, _ := s.Get(ctx, "kept")
	require.True(t, ok)
	assert.Equal(t, "Kept title", kept.JobTitle)

	_, ok, _ = s.Get(ctx, "theirs")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, "fresh")
	assert.True(t, ok)
}

func TestReconcileKeepsOtherUsersRows(t *testing.T) {
	t.Parallel()
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Entry{JobID: "J1", UserEmail: "b@x.com", UserName: "b", JobTitle: "Logo"}))

	added, removed, err := s.Reconcile(ctx, "a@x.com", []Entry{{JobID: "J1", UserEmail: "a@x.com", UserName: "a"}})
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Zero(t, removed)

	e, ok, err := s.Get(ctx, "J1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b@x.com", e.UserEmail)
	assert.Equal(t, "b", e.UserName)

	mine, err := s.ListByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}
