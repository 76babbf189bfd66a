// Package workflow drives the user-facing job flows: browsing, accepting and
// resolving tasks, and authoring job posts. It talks to the job API through
// the client package and reports outcomes through small UI interfaces so the
// same flows back the CLI and tests.
package workflow

import (
	"context"
	"errors"
	"time"

	"gigboard/internal/client"
	"gigboard/internal/identity"
)

// DefaultRedirectDelay is how long a success message stays visible before
// the navigator moves on.
const DefaultRedirectDelay = 2 * time.Second

var (
	ErrNotLoggedIn     = identity.ErrNotLoggedIn
	ErrAlreadyAccepted = errors.New("job already accepted")
	ErrOwnJob          = errors.New("cannot accept your own job")
	ErrBusy            = errors.New("a request for this item is already in flight")
	ErrCancelled       = errors.New("cancelled by user")
	ErrNotOwner        = errors.New("you can only change jobs you posted")
	ErrNotFound        = errors.New("not found")
)

// View names a screen the navigator can show.
type View string

const (
	ViewJobs          View = "jobs"
	ViewAcceptedTasks View = "my-accepted-tasks"
	ViewPostedJobs    View = "my-posted-jobs"
	ViewLogin         View = "login"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier shows short-lived messages to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// Navigator moves the user to another view once delay has elapsed.
type Navigator interface {
	NavigateAfter(delay time.Duration, to View)
}

// Confirmer asks the user to approve an irreversible action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Sessions exposes the signed-in user.
type Sessions interface {
	Current() (client.User, bool)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Level, string) {}

type nopNavigator struct{}

func (nopNavigator) NavigateAfter(time.Duration, View) {}
