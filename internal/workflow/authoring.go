package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gigboard/internal/category"
	"gigboard/internal/client"
	"gigboard/internal/identity"

	"github.com/shopspring/decimal"
)

// RecommendedSummaryLength is the soft minimum for a job summary. Shorter
// summaries are accepted with a warning.
const RecommendedSummaryLength = 50

// AuthoringAPI is the part of the job API the authoring flow uses.
type AuthoringAPI interface {
	AddJob(ctx context.Context, in client.JobInput) (client.Job, error)
	UpdateJob(ctx context.Context, id string, in client.JobInput) (client.Job, error)
	DeleteJob(ctx context.Context, id, userEmail string) error
	GetJobByID(ctx context.Context, id string) (client.Job, error)
	GetMyJobs(ctx context.Context, email string) ([]client.Job, error)
}

// Fields is the job form.
type Fields struct {
	Title      string
	Category   string
	Summary    string
	CoverImage string
	Budget     *decimal.Decimal
}

// ValidationError lists the form fields that block submission.
type ValidationError struct {
	Missing []string
	Invalid map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	for _, f := range []string{"category", "budget"} {
		if msg, ok := e.Invalid[f]; ok {
			parts = append(parts, f+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

// Validate checks the required fields and returns the normalized form.
func (f Fields) Validate() (Fields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Category = strings.TrimSpace(f.Category)
	f.Summary = strings.TrimSpace(f.Summary)
	f.CoverImage = strings.TrimSpace(f.CoverImage)

	ve := &ValidationError{Invalid: map[string]string{}}
	if f.Title == "" {
		ve.Missing = append(ve.Missing, "title")
	}
	if f.Category == "" {
		ve.Missing = append(ve.Missing, "category")
	} else if name, ok := category.Normalize(f.Category); ok {
		f.Category = name
	} else {
		ve.Invalid["category"] = fmt.Sprintf("%q is not one of %s", f.Category, strings.Join(category.Names(), ", "))
	}
	if f.Summary == "" {
		ve.Missing = append(ve.Missing, "summary")
	}
	if f.CoverImage == "" {
		ve.Missing = append(ve.Missing, "coverImage")
	}
	if f.Budget != nil && f.Budget.IsNegative() {
		ve.Invalid["budget"] = "must not be negative"
	}

	if len(ve.Missing) > 0 || len(ve.Invalid) > 0 {
		return f, ve
	}
	return f, nil
}

func (f Fields) input(owner client.User) client.JobInput {
	return client.JobInput{
		Title:      f.Title,
		Category:   f.Category,
		Summary:    f.Summary,
		CoverImage: f.CoverImage,
		Budget:     f.Budget,
		PostedBy:   identity.DisplayName(owner),
		UserEmail:  owner.Email,
	}
}

// FieldsFrom prefills the form from an existing job.
func FieldsFrom(j client.Job) Fields {
	return Fields{Title: j.Title, Category: j.Category, Summary: j.Summary, CoverImage: j.CoverImage, Budget: j.Budget}
}

type AuthoringDeps struct {
	API           AuthoringAPI
	Sessions      Sessions
	Navigator     Navigator
	Notifier      Notifier
	Confirmer     Confirmer
	Logger        *slog.Logger
	RedirectDelay time.Duration
}

// Authoring creates, edits and deletes the signed-in user's job posts.
type Authoring struct {
	api     AuthoringAPI
	session Sessions
	nav     Navigator
	notify  Notifier
	confirm Confirmer
	logger  *slog.Logger
	delay   time.Duration

	mu       sync.Mutex
	posted   []client.Job
	inflight map[string]bool
}

func NewAuthoring(d AuthoringDeps) *Authoring {
	a := &Authoring{
		api:      d.API,
		session:  d.Sessions,
		nav:      d.Navigator,
		notify:   d.Notifier,
		confirm:  d.Confirmer,
		logger:   d.Logger,
		delay:    d.RedirectDelay,
		inflight: map[string]bool{},
	}
	if a.nav == nil {
		a.nav = nopNavigator{}
	}
	if a.notify == nil {
		a.notify = nopNotifier{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.delay == 0 {
		a.delay = DefaultRedirectDelay
	} else if a.delay < 0 {
		a.delay = 0
	}
	return a
}

// CreateJob posts a new job as the signed-in user.
func (a *Authoring) CreateJob(ctx context.Context, f Fields) (client.Job, error) {
	u, ok := a.session.Current()
	if !ok {
		return client.Job{}, ErrNotLoggedIn
	}
	f, err := f.Validate()
	if err != nil {
		a.notify.Notify(LevelError, err.Error())
		return client.Job{}, err
	}
	if utf8.RuneCountInString(f.Summary) < RecommendedSummaryLength {
		a.notify.Notify(LevelWarning, fmt.Sprintf("A summary of at least %d characters helps freelancers understand the job", RecommendedSummaryLength))
	}

	const key = "create"
	if !a.begin(key) {
		return client.Job{}, ErrBusy
	}
	defer a.end(key)

	j, err := a.api.AddJob(ctx, f.input(u))
	if err != nil {
		a.notify.Notify(LevelError, "Failed to post job: "+errMessage(err))
		return client.Job{}, fmt.Errorf("create job: %w", err)
	}

	a.mu.Lock()
	a.posted = append([]client.Job{j}, a.posted...)
	a.mu.Unlock()

	a.logger.Info("job posted", "job_id", j.ID, "category", j.Category)
	a.notify.Notify(LevelSuccess, "Job posted successfully!")
	a.nav.NavigateAfter(a.delay, ViewPostedJobs)
	return j, nil
}

// EditJob loads a job for editing. Jobs owned by someone else are refused
// and the user is sent back to their own posts.
func (a *Authoring) EditJob(ctx context.Context, jobID string) (client.Job, error) {
	u, ok := a.session.Current()
	if !ok {
		return client.Job{}, ErrNotLoggedIn
	}
	j, err := a.api.GetJobByID(ctx, jobID)
	if errors.Is(err, client.ErrNotFound) {
		a.notify.Notify(LevelError, "Job not found")
		return client.Job{}, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if err != nil {
		a.notify.Notify(LevelError, "Failed to load job: "+errMessage(err))
		return client.Job{}, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if !strings.EqualFold(j.UserEmail, u.Email) {
		a.notify.Notify(LevelError, "You don't have permission to edit this job")
		a.nav.NavigateAfter(0, ViewPostedJobs)
		return client.Job{}, ErrNotOwner
	}
	return j, nil
}

// UpdateJob re-checks ownership, validates and saves f.
func (a *Authoring) UpdateJob(ctx context.Context, jobID string, f Fields) (client.Job, error) {
	u, ok := a.session.Current()
	if !ok {
		return client.Job{}, ErrNotLoggedIn
	}
	if _, err := a.EditJob(ctx, jobID); err != nil {
		return client.Job{}, err
	}
	f, err := f.Validate()
	if err != nil {
		a.notify.Notify(LevelError, err.Error())
		return client.Job{}, err
	}

	if !a.begin(jobID) {
		return client.Job{}, ErrBusy
	}
	defer a.end(jobID)

	j, err := a.api.UpdateJob(ctx, jobID, f.input(u))
	if err != nil {
		a.notify.Notify(LevelError, "Failed to update job: "+errMessage(err))
		return client.Job{}, fmt.Errorf("update job %s: %w", jobID, err)
	}

	a.mu.Lock()
	for i := range a.posted {
		if a.posted[i].ID == jobID {
			a.posted[i] = j
		}
	}
	a.mu.Unlock()

	a.notify.Notify(LevelSuccess, "Job updated successfully!")
	a.nav.NavigateAfter(a.delay, ViewPostedJobs)
	return j, nil
}

// LoadPostedJobs refreshes the signed-in user's posts.
func (a *Authoring) LoadPostedJobs(ctx context.Context) ([]client.Job, error) {
	u, ok := a.session.Current()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	jobs, err := a.api.GetMyJobs(ctx, u.Email)
	if err != nil {
		a.notify.Notify(LevelError, "Failed to load your jobs: "+errMessage(err))
		return nil, fmt.Errorf("list posted jobs: %w", err)
	}
	a.mu.Lock()
	a.posted = append([]client.Job(nil), jobs...)
	a.mu.Unlock()
	return jobs, nil
}

func (a *Authoring) PostedJobs() []client.Job {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]client.Job(nil), a.posted...)
}

// DeleteJob removes a job after confirmation. The posted list only changes
// when the API call succeeds.
func (a *Authoring) DeleteJob(ctx context.Context, jobID string) error {
	u, ok := a.session.Current()
	if !ok {
		return ErrNotLoggedIn
	}
	if a.confirm == nil {
		return ErrCancelled
	}
	ok, err := a.confirm.Confirm(ctx, "Delete this job? This cannot be undone.")
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrCancelled
	}

	if !a.begin(jobID) {
		return ErrBusy
	}
	defer a.end(jobID)

	if err := a.api.DeleteJob(ctx, jobID, u.Email); err != nil {
		if errors.Is(err, client.ErrForbidden) {
			a.notify.Notify(LevelError, "You can only delete jobs you posted")
			return ErrNotOwner
		}
		a.notify.Notify(LevelError, "Failed to delete job: "+errMessage(err))
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}

	a.mu.Lock()
	kept := a.posted[:0:0]
	for _, j := range a.posted {
		if j.ID != jobID {
			kept = append(kept, j)
		}
	}
	a.posted = kept
	a.mu.Unlock()

	a.notify.Notify(LevelSuccess, "Job deleted")
	return nil
}

func (a *Authoring) begin(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inflight[key] {
		return false
	}
	a.inflight[key] = true
	return true
}

func (a *Authoring) end(key string) {
	a.mu.Lock()
	delete(a.inflight, key)
	a.mu.Unlock()
}
