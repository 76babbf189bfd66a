package auth

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ProviderPassword = "password"
)

type User struct {
	ID           uint64    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null;default:''"`
	DisplayName  string    `gorm:"not null;default:''"`
	PhotoURL     string    `gorm:"not null;default:''"`
	Role         string    `gorm:"not null;default:'user'"`
	Provider     string    `gorm:"not null;default:'password'"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// Name returns the display name, falling back to the local part of the email.
func (u User) Name() string {
	return FallbackName(u.DisplayName, u.Email)
}

func FallbackName(displayName, email string) string {
	if n := strings.TrimSpace(displayName); n != "" {
		return n
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
