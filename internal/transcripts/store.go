package transcripts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the transcript cache.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one cached transcript.
type Entry struct {
	Stem      string
	AudioPath string
	Text      string
	Backend   string
	Model     string
	CreatedAt time.Time
}

// Strategy names recorded with match results.
const (
	StrategyTOC        = "toc"
	StrategyTranscript = "transcript"
)

// Match is the recorded chapter assignment for an audio stem. Best and
// Second are transcript-to-chapter similarities; TitleScore is the audio
// name to TOC title similarity of a table of contents match.
type Match struct {
	Stem       string
	ChapterID  string
	Best       int
	Second     int
	TitleScore int
	Strategy   string
	UpdatedAt  time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenReadOnly opens an existing cache for reads. It never creates the
// database or applies migrations; a missing file reports os.ErrNotExist.
func OpenReadOnly(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat cache: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a directory", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// query_only is per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA query_only = ON", "PRAGMA busy_timeout = 5000"} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the transcript for stem, or nil when it is not cached.
func (s *Store) Get(ctx context.Context, stem string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT stem, audio_path, transcript, backend, model, created_at FROM transcripts WHERE stem = ?`, stem)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript %s: %w", stem, err)
	}
	return entry, nil
}

// Put stores or replaces the transcript for entry.Stem.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Stem) == "" {
		return errors.New("transcript stem is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx, `INSERT INTO transcripts (stem, audio_path, transcript, backend, model, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(stem) DO UPDATE SET
    audio_path = excluded.audio_path,
    transcript = excluded.transcript,
    backend = excluded.backend,
    model = excluded.model,
    created_at = excluded.created_at`,
		entry.Stem, entry.AudioPath, entry.Text, entry.Backend, entry.Model, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("put transcript %s: %w", entry.Stem, err)
	}
	return nil
}

// List returns every cached transcript ordered by stem.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stem, audio_path, transcript, backend, model, created_at FROM transcripts ORDER BY stem`)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Delete removes the transcripts and match results for stems and reports
// how many transcripts were removed.
func (s *Store) Delete(ctx context.Context, stems ...string) (int64, error) {
	var removed int64
	for _, stem := range stems {
		res, err := s.exec(ctx, `DELETE FROM transcripts WHERE stem = ?`, stem)
		if err != nil {
			return removed, fmt.Errorf("delete transcript %s: %w", stem, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
		if _, err := s.exec(ctx, `DELETE FROM matches WHERE stem = ?`, stem); err != nil {
			return removed, fmt.Errorf("delete match %s: %w", stem, err)
		}
	}
	return removed, nil
}

// Clear removes every transcript and match result.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM transcripts`)
	if err != nil {
		return 0, fmt.Errorf("clear transcripts: %w", err)
	}
	if _, err := s.exec(ctx, `DELETE FROM matches`); err != nil {
		return 0, fmt.Errorf("clear matches: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecordMatch stores the chapter assignment for m.Stem.
func (s *Store) RecordMatch(ctx context.Context, m Match) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now()
	}
	_, err := s.exec(ctx, `INSERT INTO matches (stem, chapter_id, best, second, title_score, strategy, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(stem) DO UPDATE SET
    chapter_id = excluded.chapter_id,
    best = excluded.best,
    second = excluded.second,
    title_score = excluded.title_score,
    strategy = excluded.strategy,
    updated_at = excluded.updated_at`,
		m.Stem, m.ChapterID, m.Best, m.Second, m.TitleScore, m.Strategy, formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("record match %s: %w", m.Stem, err)
	}
	return nil
}

// Matches returns the recorded match results keyed by stem.
func (s *Store) Matches(ctx context.Context) (map[string]Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stem, chapter_id, best, second, title_score, strategy, updated_at FROM matches`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	matches := make(map[string]Match)
	for rows.Next() {
		var (
			m       Match
			updated string
		)
		if err := rows.Scan(&m.Stem, &m.ChapterID, &m.Best, &m.Second, &m.TitleScore, &m.Strategy, &updated); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.UpdatedAt = parseTime(updated)
		matches[m.Stem] = m
	}
	return matches, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry   Entry
		created string
	)
	if err := row.Scan(&entry.Stem, &entry.AudioPath, &entry.Text, &entry.Backend, &entry.Model, &created); err != nil {
		return nil, err
	}
	entry.CreatedAt = parseTime(created)
	return &entry, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
