package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"gigboard/internal/category"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("job not found")
	ErrForbidden    = errors.New("not the owner of this job")
	ErrInvalidInput = errors.New("invalid job")
)

const (
	DefaultLatest = 6
	MaxLatest     = 50
)

var sortColumns = map[string]string{
	"postedDate": "posted_date",
	"title":      "title",
}

type ListOptions struct {
	SortBy    string // postedDate (default) or title
	SortOrder string // asc or desc (default)
	Tag       string
}

type Service struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]Job, error) {
	col, ok := sortColumns[opts.SortBy]
	if !ok {
		col = sortColumns["postedDate"]
	}
	dir := "desc"
	if strings.EqualFold(opts.SortOrder, "asc") {
		dir = "asc"
	}

	q := s.DB.WithContext(ctx).Model(&Job{})
	if tag := strings.ToLower(strings.TrimSpace(opts.Tag)); tag != "" {
		// Tags are stored as a quoted array literal, e.g. {"go","react"}.
		q = q.Where(`tags LIKE ? ESCAPE '\'`, `%"`+likeEscaper.Replace(tag)+`"%`)
	}

	var out []Job
	if err := q.Order(col + " " + dir).Order("id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Latest(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultLatest
	}
	if limit > MaxLatest {
		limit = MaxLatest
	}
	var out []Job
	err := s.DB.WithContext(ctx).Order("posted_date desc").Limit(limit).Find(&out).Error
	return out, err
}

// ByCategory accepts a display name or a URL slug. Unknown categories yield
// an empty list.
func (s *Service) ByCategory(ctx context.Context, cat string) ([]Job, error) {
	name, ok := category.Normalize(cat)
	if !ok {
		return []Job{}, nil
	}
	var out []Job
	err := s.DB.WithContext(ctx).Where("category = ?", name).Order("posted_date desc").Find(&out).Error
	return out, err
}

// likeEscaper quotes the LIKE wildcards and the escape character itself.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Service) ByOwner(ctx context.Context, email string) ([]Job, error) {
	var out []Job
	err := s.DB.WithContext(ctx).
		Where("user_email = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("posted_date desc").
		Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	var j Job
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return j, nil
}

func (s *Service) Create(ctx context.Context, owner Owner, in Input) (Job, error) {
	in, err := normalize(in)
	if err != nil {
		return Job{}, err
	}
	email := strings.ToLower(strings.TrimSpace(owner.Email))
	if email == "" {
		return Job{}, fmt.Errorf("%w: owner email required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	j := Job{
		ID:         uuid.NewString(),
		Title:      in.Title,
		Category:   in.Category,
		Summary:    in.Summary,
		CoverImage: in.CoverImage,
		PostedBy:   owner.Name,
		UserEmail:  email,
		Budget:     nullDecimal(in.Budget),
		Tags:       pq.StringArray(ExtractTags(in.Summary)),
		PostedDate: now,
		UpdatedAt:  now,
	}
	if err := s.DB.WithContext(ctx).Create(&j).Error; err != nil {
		return Job{}, err
	}
	s.logger().InfoContext(ctx, "job created", "job_id", j.ID, "owner", email, "category", j.Category)
	return j, nil
}

// Update replaces the editable fields. requester must own the job.
func (s *Service) Update(ctx context.Context, id, requester string, in Input) (Job, error) {
	in, err := normalize(in)
	if err != nil {
		return Job{}, err
	}

	var out Job
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !strings.EqualFold(out.UserEmail, requester) {
			return ErrForbidden
		}

		out.Title = in.Title
		out.Category = in.Category
		out.Summary = in.Summary
		out.CoverImage = in.CoverImage
		out.Budget = nullDecimal(in.Budget)
		out.Tags = pq.StringArray(ExtractTags(in.Summary))
		out.UpdatedAt = time.Now().UTC()
		return tx.Save(&out).Error
	})
	if err != nil {
		return Job{}, err
	}
	s.logger().InfoContext(ctx, "job updated", "job_id", id)
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id, requester string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		if err := tx.Where("id = ?", id).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !strings.EqualFold(j.UserEmail, requester) {
			return ErrForbidden
		}
		return tx.Delete(&Job{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "job deleted", "job_id", id)
	return nil
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

func (s *Service) CountByCategory(ctx context.Context) ([]CategoryCount, int64, error) {
	var rows []CategoryCount
	if err := s.DB.WithContext(ctx).Model(&Job{}).
		Select("category, count(*) as count").
		Group("category").
		Order("count desc, category asc").
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	var total int64
	for _, r := range rows {
		total += r.Count
	}
	return rows, total, nil
}

func normalize(in Input) (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Summary = strings.TrimSpace(in.Summary)
	in.CoverImage = strings.TrimSpace(in.CoverImage)

	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Category) == "" {
		missing = append(missing, "category")
	}
	if in.Summary == "" {
		missing = append(missing, "summary")
	}
	if in.CoverImage == "" {
		missing = append(missing, "coverImage")
	}
	if len(missing) > 0 {
		return in, fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	name, ok := category.Normalize(in.Category)
	if !ok {
		return in, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}
	in.Category = name

	u, err := url.Parse(in.CoverImage)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return in, fmt.Errorf("%w: coverImage must be an http(s) URL", ErrInvalidInput)
	}
	if in.Budget != nil && in.Budget.IsNegative() {
		return in, fmt.Errorf("%w: budget must not be negative", ErrInvalidInput)
	}
	return in, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d.Round(2), Valid: true}
}
