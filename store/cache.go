package store

import (
	"context"
	"database/sql"
	"time"
)

// URLCacheEntry is a cached render result keyed by URL, shared across
// stories that happen to link to the same page.
type URLCacheEntry struct {
	URL       string
	Content   string // decompressed
	Source    string
	BilledMs  int64
	FetchedAt int64
}

type CacheStore struct {
	db *sql.DB
}

func NewCacheStore(db *sql.DB) *CacheStore {
	return &CacheStore{db: db}
}

// Get returns the cached entry for url, or nil if absent.
func (c *CacheStore) Get(ctx context.Context, url string) (*URLCacheEntry, error) {
	var e URLCacheEntry
	var content string
	err := c.db.QueryRowContext(ctx, `
		SELECT url, content, source, billed_ms, fetched_at FROM url_cache WHERE url = ?`, url).
		Scan(&e.URL, &content, &e.Source, &e.BilledMs, &e.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Content = Decompress(content)
	return &e, nil
}

// Put stores (or replaces) the cache entry for url. Content is stored
// compressed; billed_ms reflects the cost actually incurred on this fetch
// (cache hits never call Put again).
func (c *CacheStore) Put(ctx context.Context, url, content, source string, billedMs int64) error {
	compressed, err := Compress(content)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO url_cache (url, content, source, billed_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			content=excluded.content, source=excluded.source,
			billed_ms=excluded.billed_ms, fetched_at=excluded.fetched_at`,
		url, compressed, source, billedMs, time.Now().Unix())
	return err
}

// DeleteOlderThan removes cache rows whose fetched_at precedes cutoff,
// returning the number of rows removed.
func (c *CacheStore) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM url_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
