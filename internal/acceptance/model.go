package acceptance

import (
	"fmt"
	"strings"
	"time"
)

// Acceptance links a job to the user who committed to doing it. Resolving
// it deletes the row; the outcome survives only in the event history.
type Acceptance struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	JobID      string    `gorm:"not null;uniqueIndex:uq_acceptance_job_user"`
	UserEmail  string    `gorm:"not null;uniqueIndex:uq_acceptance_job_user;index"`
	UserName   string    `gorm:"not null"`
	AcceptedAt time.Time `gorm:"not null"`
}

const (
	EventAccepted  = "ACCEPTED"
	EventCompleted = "COMPLETED"
	EventCancelled = "CANCELLED"
)

// Event is append-only.
type Event struct {
	ID           uint64    `gorm:"primaryKey"`
	AcceptanceID string    `gorm:"index;not null"`
	JobID        string    `gorm:"index;not null"`
	UserEmail    string    `gorm:"index;not null"`
	Type         string    `gorm:"not null"`
	JobTitle     string    `gorm:"not null;default:''"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (Event) TableName() string { return "acceptance_events" }

type Resolution string

const (
	ResolutionDone      Resolution = "done"
	ResolutionCancelled Resolution = "cancelled"
)

// ParseResolution defaults to done when s is empty.
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(strings.ToLower(strings.TrimSpace(s))) {
	case "", ResolutionDone, "completed":
		return ResolutionDone, nil
	case ResolutionCancelled, "canceled":
		return ResolutionCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown resolution %q", ErrInvalidInput, s)
}

func (r Resolution) eventType() string {
	if r == ResolutionCancelled {
		return EventCancelled
	}
	return EventCompleted
}
