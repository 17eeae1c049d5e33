package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sorter/internal/config"
)

// FileName is the database file created under the state directory.
const FileName = "history.db"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Entry is one completed relocation.
type Entry struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Category    string    `json:"category"`
	Extension   string    `json:"extension"`
	Renamed     bool      `json:"renamed"`
	Copied      bool      `json:"copied"`
	CreatedDir  bool      `json:"created_dir"`
	MovedAt     time.Time `json:"moved_at"`
}

// Store persists relocation history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the history database in the configured state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.StateDir, FileName))
}

// OpenPath opens the database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
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

// Record inserts e. A zero MovedAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return errors.New("history store is not open")
	}
	if strings.TrimSpace(e.Source) == "" || strings.TrimSpace(e.Destination) == "" {
		return errors.New("history entry requires source and destination")
	}
	if e.MovedAt.IsZero() {
		e.MovedAt = time.Now()
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO relocations
			(run_id, source_path, destination_path, category, extension, renamed, copied, created_dir, moved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.RunID, e.Source, e.Destination, e.Category, e.Extension,
			boolToInt(e.Renamed), boolToInt(e.Copied), boolToInt(e.CreatedDir),
			e.MovedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history store is not open")
	}
	if limit <= 0 {
		limit = 20
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, source_path, destination_path, category, extension,
		renamed, copied, created_dir, moved_at
		FROM relocations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var renamed, copied, createdDir int
		var movedAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Source, &e.Destination, &e.Category, &e.Extension,
			&renamed, &copied, &createdDir, &movedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Renamed = renamed != 0
		e.Copied = copied != 0
		e.CreatedDir = createdDir != 0
		if ts, parseErr := time.Parse(time.RFC3339Nano, movedAt); parseErr == nil {
			e.MovedAt = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Count returns the number of recorded relocations.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("history store is not open")
	}
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM relocations").Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
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
