package boundary

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // sqlite driver
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS boundary_cache (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_boundary_cache_expires_at ON boundary_cache(expires_at);
`

// SQLiteCache persists boundary payloads in a local SQLite file so restarts start warm.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache opens (and migrates) the cache database at dsn.
func NewSQLiteCache(ctx context.Context, dsn string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return &SQLiteCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Name implements Cache.
func (c *SQLiteCache) Name() string { return "sqlite" }

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM boundary_cache WHERE key = ? AND expires_at > ?`,
		key, c.now().Unix()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get")
	}
	return data, true, nil
}

// Put implements Cache.
func (c *SQLiteCache) Put(ctx context.Context, key string, data []byte) error {
	expires := c.now().Add(c.ttl)
	if c.ttl <= 0 {
		expires = c.now().AddDate(100, 0, 0)
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO boundary_cache (key, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, data, expires.Unix())
	return eris.Wrap(err, "sqlite: put")
}

// Purge deletes expired entries and returns how many were removed.
func (c *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM boundary_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
