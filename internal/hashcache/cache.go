// Package hashcache persists message digests across runs so unchanged
// messages are not re-hashed. Entries are keyed by (message id, source file,
// hash method); the last writer for a key wins.
//
// The cache never invalidates on content change: a message edited in place
// without a new Message-ID keeps its old digest until Clear is called.
package hashcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at the given path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	// WAL keeps concurrent scanner reads cheap; the busy timeout lets
	// writers to different keys queue instead of failing.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure cache: %w", err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS message_digests (
	message_id  TEXT NOT NULL,
	source_file TEXT NOT NULL,
	hash_method TEXT NOT NULL,
	digest      TEXT NOT NULL,
	last_seen   INTEGER NOT NULL,
	PRIMARY KEY (message_id, source_file, hash_method)
);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached digest for the key triple, if present.
func (c *Cache) Get(ctx context.Context, messageID, sourceFile, method string) (string, bool, error) {
	var digest string
	err := c.db.QueryRowContext(ctx, `
		SELECT digest FROM message_digests
		WHERE message_id = ? AND source_file = ? AND hash_method = ?
	`, messageID, sourceFile, method).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return digest, true, nil
}

// Put stores a digest, replacing any previous entry for the same key triple.
func (c *Cache) Put(ctx context.Context, messageID, sourceFile, method, digest string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO message_digests (message_id, source_file, hash_method, digest, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(message_id, source_file, hash_method) DO UPDATE SET
			digest    = excluded.digest,
			last_seen = excluded.last_seen
	`, messageID, sourceFile, method, digest, time.Now().Unix())
	return err
}

// Clear drops every cached digest.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM message_digests")
	return err
}

// Len reports the number of cached entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM message_digests").Scan(&n)
	return n, err
}
