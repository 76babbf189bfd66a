package job

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Job is a freelance work posting. UserEmail identifies the owner.
type Job struct {
	ID         string              `gorm:"primaryKey;type:varchar(36)"`
	Title      string              `gorm:"not null"`
	Category   string              `gorm:"index;not null"`
	Summary    string              `gorm:"type:text;not null"`
	CoverImage string              `gorm:"not null"`
	PostedBy   string              `gorm:"not null"`
	UserEmail  string              `gorm:"index;not null"`
	Budget     decimal.NullDecimal `gorm:"type:numeric(12,2)"`

	// Tags holds the #hashtags found in Summary, stored in array literal form.
	Tags pq.StringArray `gorm:"type:text;not null;default:'{}'"`

	PostedDate time.Time `gorm:"index;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// Input carries the user-editable fields of a job.
type Input struct {
	Title      string
	Category   string
	Summary    string
	CoverImage string
	Budget     *decimal.Decimal
}

// Owner is the posting user.
type Owner struct {
	Email string
	Name  string
}
