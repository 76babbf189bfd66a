package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

const stuckAfter = 5 * time.Minute

// Enqueue inserts a task using tx, so callers can make it atomic with their
// own writes.
func Enqueue(tx *gorm.DB, typ string, payload any, runAt time.Time) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t := Task{
		Type:        typ,
		Payload:     string(b),
		RunAt:       runAt.UTC(),
		Status:      StatusPending,
		MaxAttempts: 8,
	}
	return tx.Create(&t).Error
}

type Repo struct {
	DB *gorm.DB
}

// Claim locks one due task for workerID. It returns nil when nothing is due.
// On Postgres the claim uses SKIP LOCKED so several workers never take the
// same task; other dialects fall back to a conditional update.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Task, error) {
	now := time.Now().UTC()
	var task Task
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING tasks
		if err := tx.Model(&Task{}).
			Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", StatusRunning, now.Add(-stuckAfter)).
			Updates(map[string]any{"status": StatusPending, "locked_by": nil, "locked_at": nil, "updated_at": now}).Error; err != nil {
			return err
		}

		if tx.Dialector.Name() == "postgres" {
			return tx.Raw(`
with cte as (
  select id
  from outbox_tasks
  where status='PENDING' and run_at <= ?
  order by run_at asc
  for update skip locked
  limit 1
)
update outbox_tasks
set status='RUNNING', locked_by=?, locked_at=?, updated_at=?
where id in (select id from cte)
returning *;
`, now, workerID, now, now).Scan(&task).Error
		}

		var cand Task
		if err := tx.Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at asc").First(&cand).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		res := tx.Model(&Task{}).
			Where("id = ? AND status = ?", cand.ID, StatusPending).
			Updates(map[string]any{"status": StatusRunning, "locked_by": workerID, "locked_at": now, "updated_at": now})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		return tx.First(&task, cand.ID).Error
	})
	if err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, nil
	}
	return &task, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusDone, "updated_at": time.Now().UTC()}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusFailed, "last_error": errMsg, "updated_at": time.Now().UTC()}).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusPending,
			"attempts":   attempts,
			"run_at":     runAt.UTC(),
			"locked_by":  nil,
			"locked_at":  nil,
			"last_error": errMsg,
			"updated_at": time.Now().UTC(),
		}).Error
}
