package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key       TEXT PRIMARY KEY,
	stored_at INTEGER NOT NULL,
	payload   BLOB NOT NULL
);`

// SQLiteStore keeps entries in a SQLite file so they survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (Entry, bool, error) {
	var (
		storedAt int64
		payload  []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT stored_at, payload FROM cache_entries WHERE key = ?`, key,
	).Scan(&storedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Key: key, StoredAt: time.Unix(0, storedAt), Payload: payload}, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, stored_at, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET stored_at = excluded.stored_at, payload = excluded.payload`,
		e.Key, e.StoredAt.UnixNano(), e.Payload,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// OpenStore returns a SQLite store at path, or a memory store when path is
// empty or the database cannot be opened.
func OpenStore(logger *zap.Logger, path string) Store {
	if path == "" {
		return NewMemoryStore()
	}
	s, err := NewSQLiteStore(path)
	if err != nil {
		logger.Warn("Falling back to in-memory cache",
			zap.String("path", path),
			zap.Error(err))
		return NewMemoryStore()
	}
	logger.Info("Using SQLite cache", zap.String("path", path))
	return s
}
