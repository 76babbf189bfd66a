package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already used")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrFederationDisabled = errors.New("federated login disabled")
)

// Service owns user accounts. The role of every account is derived from
// AdminEmails whenever the account is read, so the backend is the single
// source of role information.
type Service struct {
	DB          *gorm.DB
	JWT         *JWT
	Federated   *FederatedVerifier
	AdminEmails []string
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	PhotoURL    string
}

// Session is the result of a successful sign-in.
type Session struct {
	Token string
	User  User
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") || len(in.Password) < 6 {
		return Session{}, ErrInvalidInput
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	u := User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PhotoURL:     strings.TrimSpace(in.PhotoURL),
		Role:         s.roleFor(email),
		Provider:     ProviderPassword,
	}

	db := s.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return Session{}, err
	}
	if n > 0 {
		return Session{}, ErrEmailTaken
	}
	if err := db.Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidInput
	}

	var u User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !ComparePassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

// LoginFederated signs in (creating the account on first use) a user vouched
// for by the federation broker.
func (s *Service) LoginFederated(ctx context.Context, provider, idToken string) (Session, error) {
	if s.Federated == nil {
		return Session{}, ErrFederationDisabled
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" || provider == ProviderPassword || idToken == "" {
		return Session{}, ErrInvalidInput
	}
	ident, err := s.Federated.Verify(idToken)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}

	var u User
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", ident.Email).First(&u).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		u = User{
			Email:       ident.Email,
			DisplayName: ident.Name,
			PhotoURL:    ident.PhotoURL,
			Role:        s.roleFor(ident.Email),
			Provider:    provider,
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		return Session{}, err
	}
	return s.issue(u)
}

func (s *Service) Get(ctx context.Context, id uint64) (User, error) {
	var u User
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	u.Role = s.roleFor(u.Email)
	return u, nil
}

// UpdateProfile changes display name and photo URL. Empty values are kept
// as they are.
func (s *Service) UpdateProfile(ctx context.Context, id uint64, displayName, photoURL *string) (User, error) {
	updates := map[string]any{}
	if displayName != nil {
		updates["display_name"] = strings.TrimSpace(*displayName)
	}
	if photoURL != nil {
		updates["photo_url"] = strings.TrimSpace(*photoURL)
	}
	if len(updates) > 0 {
		res := s.DB.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return User{}, res.Error
		}
		if res.RowsAffected == 0 {
			return User{}, ErrUserNotFound
		}
	}
	return s.Get(ctx, id)
}

func (s *Service) issue(u User) (Session, error) {
	u.Role = s.roleFor(u.Email)
	token, err := s.JWT.Sign(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u}, nil
}

func (s *Service) roleFor(email string) string {
	for _, a := range s.AdminEmails {
		if strings.EqualFold(a, email) {
			return RoleAdmin
		}
	}
	return RoleUser
}
