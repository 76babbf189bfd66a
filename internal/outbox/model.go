package outbox

import "time"

const (
	TypeAcceptanceCreated  = "ACCEPTANCE_CREATED"
	TypeAcceptanceResolved = "ACCEPTANCE_RESOLVED"
)

const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Task is a pending side effect written in the same transaction as the
// state change that caused it.
type Task struct {
	ID uint64 `gorm:"primaryKey"`

	Type    string `gorm:"type:text;not null"`
	Payload string `gorm:"type:text;not null;default:'{}'"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string `gorm:"type:text"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Task) TableName() string { return "outbox_tasks" }

// Notification tells a job poster that something happened to one of their
// jobs.
type Notification struct {
	To         string `json:"to"`
	JobID      string `json:"job_id"`
	JobTitle   string `json:"job_title"`
	ByEmail    string `json:"by_email"`
	ByName     string `json:"by_name"`
	Resolution string `json:"resolution,omitempty"`
}
