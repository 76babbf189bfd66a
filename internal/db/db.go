package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gigboard/internal/acceptance"
	"gigboard/internal/auth"
	"gigboard/internal/job"
	"gigboard/internal/outbox"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens dsn with the matching driver: "sqlite://path" (or
// "sqlite::memory:") selects sqlite, anything else is handed to Postgres.
func Connect(dsn string, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		path = strings.TrimPrefix(path, "//")
		if path == "" {
			return nil, fmt.Errorf("sqlite dsn %q has no path", dsn)
		}
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger(log),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if gdb.Dialector.Name() == "sqlite" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

func gormLogger(log *slog.Logger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.NewSlogLogger(log, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&auth.User{},
		&job.Job{},
		&acceptance.Acceptance{},
		&acceptance.Event{},
		&outbox.Task{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_jobs_category_posted on jobs(category, posted_date desc);`,
		`create index if not exists idx_jobs_owner_posted on jobs(user_email, posted_date desc);`,
		`create index if not exists idx_acceptances_user_time on acceptances(user_email, accepted_at desc);`,
		`create index if not exists idx_outbox_due on outbox_tasks(status, run_at);`,
		`create index if not exists idx_outbox_lock on outbox_tasks(status, locked_at);`,
	}
	if gdb.Dialector.Name() == "postgres" {
		// case-insensitive title search
		stmts = append(stmts, `create index if not exists idx_jobs_title_lower on jobs(lower(title));`)
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
