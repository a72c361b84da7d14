// Package storage persists the task collection and settings record in a
// single-table key-value store backed by SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
	"github.com/hiroki-koketsu/go-tasklist/internal/settings"
)

const (
	KeyTasks    = "tasks"
	KeySettings = "settings"
)

// ErrMalformed marks a stored value that could not be decoded. Callers
// fall back to defaults and carry on.
var ErrMalformed = errors.New("malformed stored value")

type Store struct {
	db *sql.DB
}

// Open creates the database file if needed and applies the schema.
// ":memory:" opens a throwaway database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path is empty")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Get returns the raw value for key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		key, value, now)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// LoadTasks returns the stored collection. A missing key is an empty list;
// an undecodable one is an empty list plus ErrMalformed.
func (s *Store) LoadTasks(ctx context.Context) ([]model.Task, error) {
	raw, ok, err := s.Get(ctx, KeyTasks)
	if err != nil {
		return []model.Task{}, err
	}
	if !ok {
		return []model.Task{}, nil
	}

	var tasks []model.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return []model.Task{}, fmt.Errorf("%w: %s: %v", ErrMalformed, KeyTasks, err)
	}

	valid := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		t.Normalize()
		if t.ID == "" || t.Title == "" {
			continue
		}
		valid = append(valid, t)
	}
	return valid, nil
}

func (s *Store) SaveTasks(ctx context.Context, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return s.Put(ctx, KeyTasks, string(data))
}

// LoadSettings resolves the stored record against the defaults. An
// undecodable record yields the defaults plus ErrMalformed.
func (s *Store) LoadSettings(ctx context.Context) (settings.Settings, error) {
	raw, ok, err := s.Get(ctx, KeySettings)
	if err != nil {
		return settings.Default(), err
	}
	if !ok {
		return settings.Default(), nil
	}

	var stored settings.Stored
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return settings.Default(), fmt.Errorf("%w: %s: %v", ErrMalformed, KeySettings, err)
	}
	return settings.Resolve(stored), nil
}

func (s *Store) SaveSettings(ctx context.Context, cfg settings.Settings) error {
	data, err := json.Marshal(cfg.Stored())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.Put(ctx, KeySettings, string(data))
}

func sqliteDSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
