// Package localcache persists client-side hints across runs: which jobs this
// machine believes it accepted, and the current session token.
package localcache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so accepted_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Entry is one cached acceptance, keyed by job id.
type Entry struct {
	JobID      string
	UserEmail  string
	UserName   string
	AcceptedAt time.Time
	JobTitle   string
}

type Store struct {
	db *sql.DB
}

func Open(p string) (*Store, error) {
	if strings.TrimSpace(p) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		version := migrationVersion(e.Name())
		if e.IsDir() || version <= 0 {
			continue
		}
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", e.Name(), err)
		}
		if n > 0 {
			continue
		}
		body, err := migrationFiles.ReadFile(path.Join("migrations", e.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			version, formatTime(time.Now())); err != nil {
			return fmt.Errorf("record migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// migrationVersion reads the numeric prefix of "001_init.sql".
func migrationVersion(name string) int {
	digits := name
	if i := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = name[:i]
	}
	n, _ := strconv.Atoi(digits)
	return n
}

func (s *Store) Get(ctx context.Context, jobID string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, user_email, user_name, accepted_at, job_title FROM acceptances WHERE job_id = ?`, jobID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Has reports whether jobID has an entry.
func (s *Store) Has(ctx context.Context, jobID string) (bool, error) {
	_, ok, err := s.Get(ctx, jobID)
	return ok, err
}

// Put inserts or replaces the entry for e.JobID.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.JobID) == "" {
		return fmt.Errorf("job id is required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO acceptances (job_id, user_email, user_name, accepted_at, job_title)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			user_email = excluded.user_email,
			user_name = excluded.user_name,
			accepted_at = excluded.accepted_at,
			job_title = excluded.job_title`,
		e.JobID, e.UserEmail, e.UserName, formatTime(e.AcceptedAt), e.JobTitle)
	return err
}

func (s *Store) Delete(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM acceptances WHERE job_id = ?`, jobID)
	return err
}

// List returns every entry, newest acceptance first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `SELECT job_id, user_email, user_name, accepted_at, job_title
		FROM acceptances ORDER BY accepted_at DESC, job_id`)
}

func (s *Store) ListByEmail(ctx context.Context, email string) ([]Entry, error) {
	return s.query(ctx, `SELECT job_id, user_email, user_name, accepted_at, job_title
		FROM acceptances WHERE lower(user_email) = lower(?) ORDER BY accepted_at DESC, job_id`, email)
}

// Reconcile makes the entries owned by email match live, the server's view.
// Entries missing from live are dropped, live ones are upserted, and entries
// of other users are not touched.
func (s *Store) Reconcile(ctx context.Context, email string, live []Entry) (added, removed int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	wanted := make(map[string]Entry, len(live))
	for _, e := range live {
		wanted[e.JobID] = e
	}

	rows, err := tx.QueryContext(ctx, `SELECT job_id, job_title FROM acceptances WHERE lower(user_email) = lower(?)`, email)
	if err != nil {
		return 0, 0, err
	}
	have := map[string]string{}
	for rows.Next() {
		var id, title string
		if err = rows.Scan(&id, &title); err != nil {
			rows.Close()
			return 0, 0, err
		}
		have[id] = title
	}
	if err = rows.Close(); err != nil {
		return 0, 0, err
	}

	for id := range have {
		if _, ok := wanted[id]; ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM acceptances WHERE job_id = ?`, id); err != nil {
			return 0, 0, err
		}
		removed++
	}

	for id, e := range wanted {
		title, exists := have[id]
		if e.JobTitle == "" {
			e.JobTitle = title
		}
		if e.UserEmail == "" {
			e.UserEmail = email
		}
		// a row held by another user keeps its owner
		var res sql.Result
		res, err = tx.ExecContext(ctx, `INSERT INTO acceptances (job_id, user_email, user_name, accepted_at, job_title)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(job_id) DO UPDATE SET
				user_email = excluded.user_email,
				user_name = excluded.user_name,
				accepted_at = excluded.accepted_at,
				job_title = excluded.job_title
			WHERE lower(acceptances.user_email) = lower(?)`,
			e.JobID, e.UserEmail, e.UserName, formatTime(e.AcceptedAt), e.JobTitle, email)
		if err != nil {
			return 0, 0, err
		}
		var n int64
		if n, err = res.RowsAffected(); err != nil {
			return 0, 0, err
		}
		if !exists && n > 0 {
			added++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	return added, removed, nil
}

// Token returns the persisted session token, or "" when signed out.
func (s *Store) Token(ctx context.Context) (string, error) {
	var tok string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM session WHERE id = 1`).Scan(&tok)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return tok, err
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.ClearToken(ctx)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO session (id, token, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		token, formatTime(time.Now()))
	return err
}

func (s *Store) ClearToken(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e  Entry
		at string
	)
	if err := sc.Scan(&e.JobID, &e.UserEmail, &e.UserName, &at, &e.JobTitle); err != nil {
		return Entry{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Entry{}, fmt.Errorf("parse accepted_at for %s: %w", e.JobID, err)
	}
	e.AcceptedAt = t
	return e, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}
