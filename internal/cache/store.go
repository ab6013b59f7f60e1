// Package cache persists fetched guide documents between runs.
//
// The store is a single SQLite database keyed by URL. Each row keeps the
// decoded document body together with the HTTP cache validators and the
// fetch time, which is what the scheduler's cache-first policy consults
// before deciding to hit the network.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	url           TEXT PRIMARY KEY,
	channel_id    TEXT NOT NULL DEFAULT '',
	day           TEXT NOT NULL DEFAULT '',
	body          BLOB NOT NULL,
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_day ON documents(day);
`

// Entry is one cached document. Day is the ISO date for per-day guide
// documents and empty for the channel index and icons. LastModified is
// the raw Last-Modified header value as received.
type Entry struct {
	URL          string
	ChannelID    string
	Day          string
	Body         []byte
	ETag         string
	LastModified string
	FetchedAt    time.Time
}

// Store is a URL-keyed document cache backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the cached entry for url, or nil when absent.
func (s *Store) Get(url string) (*Entry, error) {
	e := &Entry{URL: url}
	var fetched int64
	err := s.db.QueryRow(
		`SELECT channel_id, day, body, etag, last_modified, fetched_at
		 FROM documents WHERE url = ?`, url).
		Scan(&e.ChannelID, &e.Day, &e.Body, &e.ETag, &e.LastModified, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", url, err)
	}
	e.FetchedAt = time.Unix(fetched, 0)
	return e, nil
}

// Put inserts or replaces the entry for e.URL.
func (s *Store) Put(e *Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (url, channel_id, day, body, etag, last_modified, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
			channel_id = excluded.channel_id,
			day = excluded.day,
			body = excluded.body,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			fetched_at = excluded.fetched_at`,
		e.URL, e.ChannelID, e.Day, e.Body, e.ETag, e.LastModified, e.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", e.URL, err)
	}
	return nil
}

// ExpireBefore deletes per-day documents dated before the given ISO
// date and reports how many were removed. Index and icon entries
// (empty day) are kept.
func (s *Store) ExpireBefore(day string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM documents WHERE day != '' AND day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("cache: expire: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear empties the whole cache.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}
