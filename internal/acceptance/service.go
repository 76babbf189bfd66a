package acceptance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gigboard/internal/auth"
	"gigboard/internal/job"
	"gigboard/internal/outbox"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("accepted task not found")
	ErrForbidden       = errors.New("accepted task belongs to another user")
	ErrAlreadyAccepted = errors.New("job already accepted by this user")
	ErrOwnJob          = errors.New("cannot accept your own job")
	ErrInvalidInput    = errors.New("invalid acceptance")
)

// Recorder observes acceptance lifecycle transitions.
type Recorder interface {
	RecordAccepted(ctx context.Context, category string)
	RecordResolved(ctx context.Context, resolution string)
}

type Service struct {
	DB       *gorm.DB
	Logger   *slog.Logger
	Recorder Recorder
}

type AcceptInput struct {
	JobID     string
	UserEmail string
	UserName  string
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Accept records that UserEmail takes on JobID. The acceptance, its history
// event and the poster notification are written atomically.
func (s *Service) Accept(ctx context.Context, in AcceptInput) (Acceptance, error) {
	email := auth.NormalizeEmail(in.UserEmail)
	if strings.TrimSpace(in.JobID) == "" || email == "" {
		return Acceptance{}, ErrInvalidInput
	}

	var (
		out Acceptance
		j   job.Job
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", in.JobID).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return job.ErrNotFound
			}
			return err
		}
		if strings.EqualFold(j.UserEmail, email) {
			return ErrOwnJob
		}

		var n int64
		if err := tx.Model(&Acceptance{}).Where("job_id = ? AND user_email = ?", j.ID, email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyAccepted
		}

		now := time.Now().UTC()
		out = Acceptance{
			ID:         uuid.NewString(),
			JobID:      j.ID,
			UserEmail:  email,
			UserName:   auth.FallbackName(in.UserName, email),
			AcceptedAt: now,
		}
		if err := tx.Create(&out).Error; err != nil {
			// lost a race against a concurrent accept of the same pair
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyAccepted
			}
			return err
		}
		if err := insertEvent(tx, out, EventAccepted, j.Title); err != nil {
			return err
		}
		return outbox.Enqueue(tx, outbox.TypeAcceptanceCreated, outbox.Notification{
			To:       j.UserEmail,
			JobID:    j.ID,
			JobTitle: j.Title,
			ByEmail:  out.UserEmail,
			ByName:   out.UserName,
		}, now)
	})
	if err != nil {
		return Acceptance{}, err
	}

	if s.Recorder != nil {
		s.Recorder.RecordAccepted(ctx, j.Category)
	}
	s.logger().InfoContext(ctx, "job accepted", "job_id", out.JobID, "acceptance_id", out.ID, "user", out.UserEmail)
	return out, nil
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]Acceptance, error) {
	var out []Acceptance
	err := s.DB.WithContext(ctx).
		Where("user_email = ?", auth.NormalizeEmail(email)).
		Order("accepted_at desc").
		Find(&out).Error
	return out, err
}

// Remove deletes the acceptance on behalf of requester, recording the
// resolution in the history.
func (s *Service) Remove(ctx context.Context, id, requester string, res Resolution) (Acceptance, error) {
	var a Acceptance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !strings.EqualFold(a.UserEmail, requester) {
			return ErrForbidden
		}
		if err := tx.Delete(&Acceptance{}, "id = ?", a.ID).Error; err != nil {
			return err
		}

		// the job may have been deleted since it was accepted
		var j job.Job
		if err := tx.Where("id = ?", a.JobID).Limit(1).Find(&j).Error; err != nil {
			return err
		}
		if err := insertEvent(tx, a, res.eventType(), j.Title); err != nil {
			return err
		}
		if j.ID == "" {
			return nil
		}
		return outbox.Enqueue(tx, outbox.TypeAcceptanceResolved, outbox.Notification{
			To:         j.UserEmail,
			JobID:      j.ID,
			JobTitle:   j.Title,
			ByEmail:    a.UserEmail,
			ByName:     a.UserName,
			Resolution: string(res),
		}, time.Now())
	})
	if err != nil {
		return Acceptance{}, err
	}

	if s.Recorder != nil {
		s.Recorder.RecordResolved(ctx, string(res))
	}
	s.logger().InfoContext(ctx, "accepted task resolved", "acceptance_id", a.ID, "job_id", a.JobID, "resolution", res)
	return a, nil
}

// History returns the acceptance events of email, newest first.
func (s *Service) History(ctx context.Context, email string) ([]Event, error) {
	var out []Event
	err := s.DB.WithContext(ctx).
		Where("user_email = ?", auth.NormalizeEmail(email)).
		Order("id desc").
		Find(&out).Error
	return out, err
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&Acceptance{}).Count(&n).Error
	return n, err
}

func insertEvent(tx *gorm.DB, a Acceptance, typ, jobTitle string) error {
	ev := Event{
		AcceptanceID: a.ID,
		JobID:        a.JobID,
		UserEmail:    a.UserEmail,
		Type:         typ,
		JobTitle:     jobTitle,
		CreatedAt:    time.Now().UTC(),
	}
	return tx.Create(&ev).Error
}
