package client

import (
	"time"

	"github.com/shopspring/decimal"
)

type Job struct {
	ID         string           `json:"_id"`
	Title      string           `json:"title"`
	Category   string           `json:"category"`
	Summary    string           `json:"summary"`
	CoverImage string           `json:"coverImage"`
	PostedBy   string           `json:"postedBy"`
	UserEmail  string           `json:"userEmail"`
	Budget     *decimal.Decimal `json:"budget,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	PostedDate time.Time        `json:"postedDate"`
	UpdatedAt  time.Time        `json:"updatedAt,omitempty"`
}

// JobInput is the body of create and update requests.
type JobInput struct {
	Title      string           `json:"title"`
	Category   string           `json:"category"`
	Summary    string           `json:"summary"`
	CoverImage string           `json:"coverImage"`
	Budget     *decimal.Decimal `json:"budget,omitempty"`
	PostedBy   string           `json:"postedBy,omitempty"`
	UserEmail  string           `json:"userEmail,omitempty"`
}

type Acceptance struct {
	ID         string    `json:"_id"`
	JobID      string    `json:"jobId"`
	UserEmail  string    `json:"userEmail"`
	UserName   string    `json:"userName"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

type AcceptRequest struct {
	JobID     string `json:"jobId"`
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
}

type HistoryEvent struct {
	ID           uint64    `json:"id"`
	AcceptanceID string    `json:"acceptanceId"`
	JobID        string    `json:"jobId"`
	JobTitle     string    `json:"jobTitle"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type Stats struct {
	TotalJobs        int64           `json:"totalJobs"`
	TotalAcceptances int64           `json:"totalAcceptances"`
	ByCategory       []CategoryCount `json:"byCategory"`
}

type User struct {
	ID          uint64 `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Role        string `json:"role"`
	Provider    string `json:"provider"`
}

// AuthResult is returned by register and the login endpoints.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}
