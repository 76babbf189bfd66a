package workflow

import (
	"context"
	"errors"
	"testing"

	"gigboard/internal/client"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateThenGetRoundTrip(t *testing.T) {
	srv := newServer(t)
	poster := newUser(t, srv, "poster@x.com", "Dana Poster")
	ctx := context.Background()
	flow := poster.authoring()

	budget := decimal.RequireFromString("250.50")
	in := Fields{
		Title:      "Professional Logo Design",
		Category:   "graphics-design",
		Summary:    "We need a crisp, scalable logo for a neighbourhood bakery. #branding #logo",
		CoverImage: "https://img.example.com/logo.png",
		Budget:     &budget,
	}
	created, err := flow.CreateJob(ctx, in)
	require.NoError(t, err)

	got, err := poster.api.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, "Graphics Design", got.Category)
	assert.Equal(t, in.Summary, got.Summary)
	assert.Equal(t, in.CoverImage, got.CoverImage)
	assert.Equal(t, "Dana Poster", got.PostedBy)
	assert.Equal(t, "poster@x.com", got.UserEmail)
	require.NotNil(t, got.Budget)
	assert.True(t, budget.Equal(*got.Budget))
	assert.ElementsMatch(t, []string{"branding", "logo"}, got.Tags)

	assert.Equal(t, []navigation{{DefaultRedirectDelay, ViewPostedJobs}}, poster.ui.navigations())
	assert.Equal(t, LevelSuccess, poster.ui.last().Level)
	require.Len(t, flow.PostedJobs(), 1)
}

type countingAPI struct {
	AuthoringAPI
	adds int
}

func (c *countingAPI) AddJob(context.Context, client.JobInput) (client.Job, error) {
	c.adds++
	return client.Job{ID: "new"}, nil
}

func TestCreateValidationMakesNoCall(t *testing.T) {
	fake := &countingAPI{}
	ui := &recorder{}
	flow := NewAuthoring(AuthoringDeps{
		API:       fake,
		Sessions:  staticSession{client.User{Email: "poster@x.com"}},
		Notifier:  ui,
		Navigator: ui,
	})

	_, err := flow.CreateJob(context.Background(), Fields{Title: "  ", Summary: "x"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"title", "category", "coverImage"}, ve.Missing)
	assert.Zero(t, fake.adds)
	assert.Equal(t, LevelError, ui.last().Level)

	_, err = flow.CreateJob(context.Background(), Fields{Title: "T", Category: "Plumbing", Summary: "s", CoverImage: "https://x.io/a.png"})
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Invalid, "category")
	assert.Zero(t, fake.adds)
	assert.Empty(t, ui.navigations())
}

func TestShortSummaryOnlyWarns(t *testing.T) {
	fake := &countingAPI{}
	ui := &recorder{}
	flow := NewAuthoring(AuthoringDeps{
		API:           fake,
		Sessions:      staticSession{client.User{Email: "poster@x.com"}},
		Notifier:      ui,
		Navigator:     ui,
		RedirectDelay: -1,
	})

	_, err := flow.CreateJob(context.Background(), Fields{Title: "T", Category: "SEO Services", Summary: "short", CoverImage: "https://x.io/a.png"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.adds)

	require.Len(t, ui.messages, 2)
	assert.Equal(t, LevelWarning, ui.messages[0].Level)
	assert.Equal(t, LevelSuccess, ui.messages[1].Level)
	assert.Equal(t, []navigation{{0, ViewPostedJobs}}, ui.navigations())
}

func TestEditRefusedForOtherOwner(t *testing.T) {
	srv := newServer(t)
	poster := newUser(t, srv, "poster@x.com", "Poster")
	other := newUser(t, srv, "mallory@x.com", "Mallory")
	j := poster.post(t, "Logo", "Graphics Design")

	flow := other.authoring()
	_, err := flow.EditJob(context.Background(), j.ID)
	require.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, []navigation{{0, ViewPostedJobs}}, other.ui.navigations())
	assert.Equal(t, LevelError, other.ui.last().Level)

	_, err = flow.UpdateJob(context.Background(), j.ID, FieldsFrom(j))
	require.ErrorIs(t, err, ErrNotOwner)

	got, err := poster.api.GetJobByID(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, "Logo", got.Title)
}

func TestServerRejectsForgedOwnerEmail(t *testing.T) {
	srv := newServer(t)
	poster := newUser(t, srv, "poster@x.com", "Poster")
	other := newUser(t, srv, "mallory@x.com", "Mallory")
	j := poster.post(t, "Logo", "Graphics Design")

	err := other.api.DeleteJob(context.Background(), j.ID, "poster@x.com")
	assert.True(t, errors.Is(err, client.ErrForbidden))

	in := client.JobInput{Title: "Hijacked", Category: j.Category, Summary: j.Summary, CoverImage: j.CoverImage}
	_, err = other.api.UpdateJob(context.Background(), j.ID, in)
	assert.True(t, errors.Is(err, client.ErrForbidden))
}

func TestEditMissingJob(t *testing.T) {
	srv := newServer(t)
	poster := newUser(t, srv, "poster@x.com", "Poster")

	_, err := poster.authoring().EditJob(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, poster.ui.navigations())
}

func TestUpdateJobByOwner(t *testing.T) {
	srv := newServer(t)
	poster := newUser(t, srv, "poster@x.com", "Poster")
	j := poster.post(t, "Logo", "Graphics Design")
	ctx := context.Background()

	flow := poster.authoring()
	_, err := flow.LoadPostedJobs(ctx)
	require.NoError(t, err)

	current, err := flow.EditJob(ctx, j.ID)
	require.NoError(t, err)
	f := FieldsFrom(current)
	f.Title = "Logo and business cards"

	updated, err := flow.UpdateJob(ctx, j.ID, f)
	require.NoError(t, err)
	assert.Equal(t, "Logo and business cards", updated.Title)

	posted := flow.PostedJobs()
	require.Len(t, posted, 1)
	assert.Equal(t, "Logo and business cards", posted[0].Title)
}

func TestDeleteJobNeedsConfirmation(t *testing.T) {
	srv := newServer(t)
	poster := newUser(t, srv, "poster@x.com", "Poster")
	keep := poster.post(t, "Keep me", "UI/UX Design")
	drop := poster.post(t, "Drop me", "Mobile Development")
	ctx := context.Background()

	flow := poster.authoring()
	jobs, err := flow.LoadPostedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	poster.confirm.yes = false
	require.ErrorIs(t, flow.DeleteJob(ctx, drop.ID), ErrCancelled)
	assert.Len(t, flow.PostedJobs(), 2)

	poster.confirm.yes = true
	require.NoError(t, flow.DeleteJob(ctx, drop.ID))
	posted := flow.PostedJobs()
	require.Len(t, posted, 1)
	assert.Equal(t, keep.ID, posted[0].ID)

	// second delete fails remotely; the list is untouched
	require.Error(t, flow.DeleteJob(ctx, drop.ID))
	assert.Len(t, flow.PostedJobs(), 1)
	assert.Equal(t, LevelError, poster.ui.last().Level)
}
