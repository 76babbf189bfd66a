package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gigboard/internal/client"
	"gigboard/internal/identity"
	"gigboard/internal/localcache"

	"golang.org/x/sync/errgroup"
)

// State is where a job sits in the acceptance flow for this client.
type State int

const (
	StateOpen State = iota
	StateAccepting
	StateAccepted
	StateResolving
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateAccepted:
		return "accepted"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	default:
		return "open"
	}
}

type Resolution string

const (
	ResolutionDone      Resolution = "done"
	ResolutionCancelled Resolution = "cancelled"
)

// maxDetailFetches bounds the per-task job lookups in ListAcceptedTasks.
const maxDetailFetches = 8

// AcceptanceAPI is the part of the job API the acceptance flow uses.
type AcceptanceAPI interface {
	AcceptJob(ctx context.Context, req client.AcceptRequest) (client.Acceptance, error)
	GetMyAcceptedTasks(ctx context.Context, email string) ([]client.Acceptance, error)
	GetJobByID(ctx context.Context, id string) (client.Job, error)
	RemoveAcceptedJob(ctx context.Context, id, userEmail, resolution string) error
}

// Cache is the local record of jobs this client accepted.
type Cache interface {
	Get(ctx context.Context, jobID string) (localcache.Entry, bool, error)
	Put(ctx context.Context, e localcache.Entry) error
	Delete(ctx context.Context, jobID string) error
	Reconcile(ctx context.Context, email string, live []localcache.Entry) (added, removed int, err error)
}

// AcceptedTask is an acceptance merged with its job. Job is nil when the job
// could not be fetched.
type AcceptedTask struct {
	AcceptanceID string
	JobID        string
	UserEmail    string
	UserName     string
	AcceptedAt   time.Time
	Job          *client.Job
}

func (t AcceptedTask) Title() string {
	if t.Job == nil {
		return ""
	}
	return t.Job.Title
}

type AcceptanceDeps struct {
	API       AcceptanceAPI
	Cache     Cache
	Sessions  Sessions
	Navigator Navigator
	Notifier  Notifier
	Confirmer Confirmer
	Logger    *slog.Logger
	// RedirectDelay defaults to DefaultRedirectDelay; a negative value means
	// no delay.
	RedirectDelay time.Duration
	Now           func() time.Time
}

// Acceptances is the accept/resolve flow for one signed-in client.
type Acceptances struct {
	api     AcceptanceAPI
	cache   Cache
	session Sessions
	nav     Navigator
	notify  Notifier
	confirm Confirmer
	logger  *slog.Logger
	delay   time.Duration
	now     func() time.Time

	mu     sync.Mutex
	states map[string]State
	tasks  []AcceptedTask
}

func NewAcceptances(d AcceptanceDeps) *Acceptances {
	a := &Acceptances{
		api:     d.API,
		cache:   d.Cache,
		session: d.Sessions,
		nav:     d.Navigator,
		notify:  d.Notifier,
		confirm: d.Confirmer,
		logger:  d.Logger,
		delay:   d.RedirectDelay,
		now:     d.Now,
		states:  map[string]State{},
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
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// State reports the flow state of jobID. Jobs without an in-memory state
// are Accepted when the cache holds them and Open otherwise.
func (a *Acceptances) State(ctx context.Context, jobID string) State {
	a.mu.Lock()
	st, ok := a.states[jobID]
	a.mu.Unlock()
	if ok {
		return st
	}
	if _, cached, err := a.cache.Get(ctx, jobID); err == nil && cached {
		return StateAccepted
	}
	return StateOpen
}

// AcceptJob accepts job for the signed-in user. A job already in the local
// cache or marked Accepted is refused without contacting the API. A conflict
// from the API is recorded locally and reported as ErrAlreadyAccepted.
func (a *Acceptances) AcceptJob(ctx context.Context, job client.Job) (client.Acceptance, error) {
	u, ok := a.session.Current()
	if !ok {
		a.notify.Notify(LevelWarning, "Please log in to accept jobs")
		a.nav.NavigateAfter(0, ViewLogin)
		return client.Acceptance{}, ErrNotLoggedIn
	}

	if _, cached, err := a.cache.Get(ctx, job.ID); err != nil {
		return client.Acceptance{}, fmt.Errorf("read cache: %w", err)
	} else if cached {
		a.notify.Notify(LevelWarning, "You have already accepted this job")
		return client.Acceptance{}, ErrAlreadyAccepted
	}

	if strings.EqualFold(job.UserEmail, u.Email) {
		a.notify.Notify(LevelWarning, "You cannot accept a job you posted")
		return client.Acceptance{}, ErrOwnJob
	}

	// Accepted is left only through ResolveTask or Reconcile.
	a.mu.Lock()
	st := a.states[job.ID]
	a.mu.Unlock()
	if st == StateAccepted {
		a.notify.Notify(LevelWarning, "You have already accepted this job")
		return client.Acceptance{}, ErrAlreadyAccepted
	}

	if !a.transition(job.ID, StateAccepting, StateOpen, StateResolved) {
		return client.Acceptance{}, ErrBusy
	}

	name := identity.DisplayName(u)
	rec, err := a.api.AcceptJob(ctx, client.AcceptRequest{JobID: job.ID, UserEmail: u.Email, UserName: name})
	if errors.Is(err, client.ErrConflict) {
		// The server already holds an acceptance by this user.
		a.remember(ctx, job, u.Email, name, a.now())
		a.notify.Notify(LevelWarning, "You have already accepted this job")
		a.logger.Info("accept conflict", "job_id", job.ID)
		return client.Acceptance{}, ErrAlreadyAccepted
	}
	if err != nil {
		a.setState(job.ID, StateOpen)
		a.notify.Notify(LevelError, "Failed to accept job: "+errMessage(err))
		a.logger.Warn("accept failed", "job_id", job.ID, "err", err)
		return client.Acceptance{}, fmt.Errorf("accept job %s: %w", job.ID, err)
	}

	acceptedAt := rec.AcceptedAt
	if acceptedAt.IsZero() {
		acceptedAt = a.now()
	}
	a.remember(ctx, job, u.Email, name, acceptedAt)
	a.notify.Notify(LevelSuccess, "Job accepted successfully!")
	a.nav.NavigateAfter(a.delay, ViewAcceptedTasks)
	return rec, nil
}

// ListAcceptedTasks loads the acceptances of email and their jobs. A job
// that fails to load leaves its task with Job == nil instead of failing the
// list. The result also backs ResolveTask.
func (a *Acceptances) ListAcceptedTasks(ctx context.Context, email string) ([]AcceptedTask, error) {
	email, err := a.resolveEmail(email)
	if err != nil {
		return nil, err
	}
	tasks, err := a.fetchTasks(ctx, email)
	if err != nil {
		a.notify.Notify(LevelError, "Failed to load accepted tasks: "+errMessage(err))
		return nil, err
	}

	a.mu.Lock()
	a.tasks = tasks
	for _, t := range tasks {
		if st := a.states[t.JobID]; st != StateResolving {
			a.states[t.JobID] = StateAccepted
		}
	}
	a.mu.Unlock()
	return cloneTasks(tasks), nil
}

// Tasks returns the list from the last ListAcceptedTasks, minus resolved
// items.
func (a *Acceptances) Tasks() []AcceptedTask {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneTasks(a.tasks)
}

// ResolveTask marks an accepted task done or cancelled after the user
// confirms. The task leaves the list only once the API has removed it.
func (a *Acceptances) ResolveTask(ctx context.Context, acceptanceID, email string, res Resolution) error {
	if res != ResolutionDone && res != ResolutionCancelled {
		return fmt.Errorf("unknown resolution %q", res)
	}
	email, err := a.resolveEmail(email)
	if err != nil {
		return err
	}

	a.mu.Lock()
	idx := a.indexOf(acceptanceID)
	if idx < 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: accepted task %s", ErrNotFound, acceptanceID)
	}
	task := a.tasks[idx]
	if a.states[task.JobID] == StateResolving {
		a.mu.Unlock()
		return ErrBusy
	}
	a.mu.Unlock()

	if a.confirm == nil {
		return ErrCancelled
	}
	prompt := fmt.Sprintf("Mark %q as completed? This cannot be undone.", displayTitle(task))
	if res == ResolutionCancelled {
		prompt = fmt.Sprintf("Cancel %q? This cannot be undone.", displayTitle(task))
	}
	ok, err := a.confirm.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrCancelled
	}

	if !a.transition(task.JobID, StateResolving, StateAccepted, StateOpen) {
		return ErrBusy
	}

	if err := a.api.RemoveAcceptedJob(ctx, acceptanceID, email, string(res)); err != nil {
		a.setState(task.JobID, StateAccepted)
		a.notify.Notify(LevelError, "Failed to update task: "+errMessage(err))
		a.logger.Warn("resolve failed", "acceptance_id", acceptanceID, "resolution", res, "err", err)
		return fmt.Errorf("resolve task %s: %w", acceptanceID, err)
	}

	if err := a.cache.Delete(ctx, task.JobID); err != nil {
		a.logger.Warn("cache delete failed", "job_id", task.JobID, "err", err)
	}

	a.mu.Lock()
	if i := a.indexOf(acceptanceID); i >= 0 {
		a.tasks = append(a.tasks[:i:i], a.tasks[i+1:]...)
	}
	a.states[task.JobID] = StateResolved
	a.mu.Unlock()

	if res == ResolutionDone {
		a.notify.Notify(LevelSuccess, "Task marked as completed")
	} else {
		a.notify.Notify(LevelSuccess, "Task cancelled")
	}
	return nil
}

// Reconcile brings the cache in line with the server for email: stale
// entries are removed and missing ones added. In-memory states follow, so a
// job resolved elsewhere can be accepted again.
func (a *Acceptances) Reconcile(ctx context.Context, email string) (added, removed int, err error) {
	email, err = a.resolveEmail(email)
	if err != nil {
		return 0, 0, err
	}
	tasks, err := a.fetchTasks(ctx, email)
	if err != nil {
		return 0, 0, err
	}

	live := make([]localcache.Entry, 0, len(tasks))
	for _, t := range tasks {
		live = append(live, localcache.Entry{
			JobID:      t.JobID,
			UserEmail:  t.UserEmail,
			UserName:   t.UserName,
			AcceptedAt: t.AcceptedAt,
			JobTitle:   t.Title(),
		})
	}
	added, removed, err = a.cache.Reconcile(ctx, email, live)
	if err != nil {
		return 0, 0, fmt.Errorf("reconcile cache: %w", err)
	}

	held := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		held[t.JobID] = true
	}
	a.mu.Lock()
	for id, st := range a.states {
		if st == StateAccepted && !held[id] {
			delete(a.states, id)
		}
	}
	for id := range held {
		if a.states[id] != StateResolving {
			a.states[id] = StateAccepted
		}
	}
	a.mu.Unlock()
	a.logger.Info("cache reconciled", "email", email, "added", added, "removed", removed)
	return added, removed, nil
}

func (a *Acceptances) fetchTasks(ctx context.Context, email string) ([]AcceptedTask, error) {
	recs, err := a.api.GetMyAcceptedTasks(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list accepted tasks: %w", err)
	}

	tasks := make([]AcceptedTask, len(recs))
	var g errgroup.Group
	g.SetLimit(maxDetailFetches)
	for i, r := range recs {
		i, r := i, r
		tasks[i] = AcceptedTask{
			AcceptanceID: r.ID,
			JobID:        r.JobID,
			UserEmail:    r.UserEmail,
			UserName:     r.UserName,
			AcceptedAt:   r.AcceptedAt,
		}
		g.Go(func() error {
			j, err := a.api.GetJobByID(ctx, r.JobID)
			if err != nil {
				a.logger.Warn("job detail fetch failed", "job_id", r.JobID, "err", err)
				return nil
			}
			tasks[i].Job = &j
			return nil
		})
	}
	_ = g.Wait()
	return tasks, nil
}

// remember records job as accepted by email in the cache and in memory.
func (a *Acceptances) remember(ctx context.Context, job client.Job, email, name string, at time.Time) {
	if err := a.cache.Put(ctx, localcache.Entry{
		JobID:      job.ID,
		UserEmail:  email,
		UserName:   name,
		AcceptedAt: at,
		JobTitle:   job.Title,
	}); err != nil {
		// a later Reconcile restores the entry from the server
		a.logger.Warn("cache write failed", "job_id", job.ID, "err", err)
	}
	a.setState(job.ID, StateAccepted)
}

func (a *Acceptances) resolveEmail(email string) (string, error) {
	u, ok := a.session.Current()
	if !ok {
		return "", ErrNotLoggedIn
	}
	if strings.TrimSpace(email) == "" {
		return u.Email, nil
	}
	return email, nil
}

// transition moves jobID to next when its current state is one of from.
func (a *Acceptances) transition(jobID string, next State, from ...State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.states[jobID]
	for _, f := range from {
		if cur == f {
			a.states[jobID] = next
			return true
		}
	}
	return false
}

func (a *Acceptances) setState(jobID string, st State) {
	a.mu.Lock()
	a.states[jobID] = st
	a.mu.Unlock()
}

// indexOf must be called with a.mu held.
func (a *Acceptances) indexOf(acceptanceID string) int {
	for i, t := range a.tasks {
		if t.AcceptanceID == acceptanceID {
			return i
		}
	}
	return -1
}

func cloneTasks(in []AcceptedTask) []AcceptedTask {
	out := make([]AcceptedTask, len(in))
	copy(out, in)
	return out
}

func displayTitle(t AcceptedTask) string {
	if title := t.Title(); title != "" {
		return title
	}
	return t.JobID
}

func errMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
