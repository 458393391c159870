package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// playedAtLayout keeps nine fractional digits so the text column sorts in
// time order.
const playedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded title.
type Entry struct {
	ID         int64     `json:"id"`
	PlayedAt   time.Time `json:"playedAt"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist,omitempty"`
	RawText    string    `json:"rawText"`
	EndpointID string    `json:"endpoint"`
}

// Store persists now-playing history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file if needed and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create history dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "apply pragma %q", pragma)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.applyMigrations(ctx); err != nil {
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

func (s *Store) Insert(ctx context.Context, e Entry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO now_playing_history (played_at, title, artist, raw, endpoint) VALUES (?, ?, ?, ?, ?)`,
		e.PlayedAt.UTC().Format(playedAtLayout),
		e.Title,
		nullableString(e.Artist),
		e.RawText,
		e.EndpointID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert history entry")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "last insert id")
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, played_at, title, artist, raw, endpoint FROM now_playing_history ORDER BY played_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			playedAt string
			artist   sql.NullString
		)
		if err := rows.Scan(&e.ID, &playedAt, &e.Title, &artist, &e.RawText, &e.EndpointID); err != nil {
			return nil, errors.Wrap(err, "scan history entry")
		}
		e.PlayedAt, err = time.Parse(time.RFC3339Nano, playedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "parse played_at %q", playedAt)
		}
		e.Artist = artist.String
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate history")
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
