// Package store implements the single embedded SQLite database that acts as
// both the system of record and the work queue for the pipeline: stories,
// their content-fetch state machine, the URL-content cache, the usage log,
// the rule tables, and per-user state all live here behind one *sql.DB.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Open opens (creating if necessary) the SQLite database at path, configures
// it for single-writer/concurrent-reader operation, and runs the schema
// migration.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?" +
		"_pragma=journal_mode(wal)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(on)" +
		"&_pragma=synchronous(normal)" +
		"&_pragma=mmap_size(268435456)" +
		"&_pragma=cache_size(-20000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Each task/request holds its own logical connection; SQLite serializes
	// writers internally via busy_timeout so a modest pool is fine.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("database ready", "path", path)
	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stories (
			id              INTEGER PRIMARY KEY,
			title           TEXT NOT NULL,
			url             TEXT,
			domain          TEXT,
			author          TEXT NOT NULL,
			time            INTEGER NOT NULL,
			score           INTEGER NOT NULL DEFAULT 0,
			descendants     INTEGER NOT NULL DEFAULT 0,
			content         TEXT,
			teaser          TEXT,
			content_status  TEXT NOT NULL DEFAULT 'pending',
			attempts        INTEGER NOT NULL DEFAULT 0,
			content_source  TEXT,
			billed_ms       INTEGER NOT NULL DEFAULT 0,
			hit_front_page  BOOLEAN NOT NULL DEFAULT 0,
			front_page_rank INTEGER,
			created_at      INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_stories_time ON stories(time);
		CREATE INDEX IF NOT EXISTS idx_stories_url ON stories(url);
		CREATE INDEX IF NOT EXISTS idx_stories_claim ON stories(content_status, attempts, time);

		CREATE TABLE IF NOT EXISTS url_cache (
			url        TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			source     TEXT NOT NULL,
			billed_ms  INTEGER NOT NULL DEFAULT 0,
			fetched_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS usage_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			story_id   INTEGER,
			url        TEXT,
			billed_ms  INTEGER NOT NULL DEFAULT 0,
			source     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_usage_log_created ON usage_log(created_at);

		CREATE TABLE IF NOT EXISTS usage_summary (
			month           TEXT PRIMARY KEY,
			request_count   INTEGER NOT NULL DEFAULT 0,
			total_billed_ms INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS merit_words    (word   TEXT PRIMARY KEY, weight INTEGER NOT NULL DEFAULT 1);
		CREATE TABLE IF NOT EXISTS demerit_words  (word   TEXT PRIMARY KEY, weight INTEGER NOT NULL DEFAULT 1);
		CREATE TABLE IF NOT EXISTS merit_domains  (domain TEXT PRIMARY KEY, weight INTEGER NOT NULL DEFAULT 1);
		CREATE TABLE IF NOT EXISTS demerit_domains(domain TEXT PRIMARY KEY, weight INTEGER NOT NULL DEFAULT 1);
		CREATE TABLE IF NOT EXISTS blocked_words  (word   TEXT PRIMARY KEY);
		CREATE TABLE IF NOT EXISTS blocked_domains(domain TEXT PRIMARY KEY);

		CREATE TABLE IF NOT EXISTS read_later (
			story_id   INTEGER PRIMARY KEY REFERENCES stories(id),
			created_at INTEGER NOT NULL
		);

		-- Deliberately no FK to stories: a dismissal must outlive the story it
		-- names so a later ingestion pass can never resurrect it.
		CREATE TABLE IF NOT EXISTS dismissed (
			story_id      INTEGER PRIMARY KEY,
			dismissed_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS history (
			story_id  INTEGER PRIMARY KEY REFERENCES stories(id),
			opened_at INTEGER NOT NULL
		);
	`)
	return err
}

// Reset wipes all mutable pipeline state (stories, read-later, URL cache,
// usage log and monthly usage summaries, dismissed, history) while leaving
// rule tables intact, per the --reset CLI flag.
func Reset(db *sql.DB) error {
	_, err := db.Exec(`
		DELETE FROM history;
		DELETE FROM read_later;
		DELETE FROM dismissed;
		DELETE FROM usage_log;
		DELETE FROM usage_summary;
		DELETE FROM url_cache;
		DELETE FROM stories;
	`)
	return err
}
