package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aluiziolira/go-scrape-cars/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL
)`

// store persists cache entries in a single SQLite file.
type store struct {
	path string
	db   *sql.DB
}

// badRow is a persisted row whose payload could not be decoded.
type badRow struct {
	key string
	err error
}

// openStore opens (or creates) the store and reads every entry. Any failure
// to read the file as a cache store is reported as *CorruptError.
func openStore(ctx context.Context, path string) (*store, []models.CacheEntry, []badRow, error) {
	if err := ensureDir(path); err != nil {
		return nil, nil, nil, err
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open cache store: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &store{path: path, db: db}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, nil, nil, &CorruptError{Path: path, Err: err}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, nil, nil, &CorruptError{Path: path, Err: err}
	}

	entries, bad, err := s.loadAll(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, &CorruptError{Path: path, Err: err}
	}
	return s, entries, bad, nil
}

func (s *store) loadAll(ctx context.Context) ([]models.CacheEntry, []badRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, payload, fetched_at FROM cache_entries`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		entries []models.CacheEntry
		bad     []badRow
	)
	for rows.Next() {
		var (
			key       string
			payload   string
			fetchedAt int64
		)
		if err := rows.Scan(&key, &payload, &fetchedAt); err != nil {
			return nil, nil, err
		}
		var listings []models.Listing
		if err := json.Unmarshal([]byte(payload), &listings); err != nil {
			bad = append(bad, badRow{key: key, err: err})
			continue
		}
		entries = append(entries, models.CacheEntry{
			Key:       key,
			Listings:  listings,
			FetchedAt: time.Unix(0, fetchedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return entries, bad, nil
}

func (s *store) upsert(ctx context.Context, entry models.CacheEntry) error {
	payload, err := json.Marshal(entry.Listings)
	if err != nil {
		return fmt.Errorf("encode listings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		entry.Key, string(payload), entry.FetchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (s *store) delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
	}
	return nil
}

func (s *store) close() error {
	return s.db.Close()
}

// quarantine moves an unreadable store file aside so a fresh one can be created.
func quarantine(path string, now time.Time) (string, error) {
	target := fmt.Sprintf("%s.corrupt-%d", path, now.Unix())
	if err := os.Rename(path, target); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("move corrupt cache aside: %w", err)
	}
	for _, suffix := range []string{"-journal", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return target, nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
