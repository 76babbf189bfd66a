package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Notifier delivers notifications to job posters.
type Notifier interface {
	Notify(ctx context.Context, kind string, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, kind string, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notify poster",
		"kind", kind, "to", n.To, "job_id", n.JobID, "job_title", n.JobTitle,
		"by", n.ByEmail, "resolution", n.Resolution)
	return nil
}

type Worker struct {
	ID       string
	Repo     *Repo
	Notifier Notifier
	Logger   *slog.Logger
	Interval time.Duration
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce claims and handles at most one task. It reports whether a task was
// handled.
func (w *Worker) RunOnce(ctx context.Context) bool {
	task, err := w.Repo.Claim(ctx, w.ID)
	if err != nil {
		w.logger().ErrorContext(ctx, "outbox claim failed", "worker", w.ID, "error", err)
		return false
	}
	if task == nil {
		return false
	}
	w.handle(ctx, task)
	return true
}

func (w *Worker) handle(ctx context.Context, task *Task) {
	switch task.Type {
	case TypeAcceptanceCreated, TypeAcceptanceResolved:
		w.handleNotification(ctx, task)
	default:
		_ = w.Repo.MarkFailed(ctx, task.ID, "unknown task type")
	}
}

func (w *Worker) handleNotification(ctx context.Context, task *Task) {
	var n Notification
	if err := json.Unmarshal([]byte(task.Payload), &n); err != nil || n.To == "" {
		_ = w.Repo.MarkFailed(ctx, task.ID, "bad payload")
		return
	}

	if err := w.Notifier.Notify(ctx, task.Type, n); err != nil {
		w.retry(ctx, task, fmt.Sprintf("notify: %v", err))
		return
	}
	_ = w.Repo.MarkDone(ctx, task.ID)
}

func (w *Worker) retry(ctx context.Context, task *Task, errMsg string) {
	attempts := task.Attempts + 1
	if attempts >= task.MaxAttempts {
		w.logger().WarnContext(ctx, "outbox task failed permanently", "task_id", task.ID, "error", errMsg)
		_ = w.Repo.MarkFailed(ctx, task.ID, errMsg)
		return
	}

	_ = w.Repo.RetryLater(ctx, task.ID, attempts, time.Now().Add(Backoff(attempts)), errMsg)
}

// Backoff is 2^attempts seconds, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}
