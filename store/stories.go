package store

import (
	"context"
	"database/sql"
	"time"
)

// Content-fetch status values. ClaimNext moves pending/retry rows to
// fetching; Finalize and StuckJobCleanup move them on from there.
const (
	StatusPending  = "pending"
	StatusFetching = "fetching"
	StatusDone     = "done"
	StatusBlocked  = "blocked"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
	StatusRetry    = "retry"
)

// MaxAttempts bounds the retry state machine; a job that exhausts it moves
// to a terminal state instead of looping through retry/fetching again.
const MaxAttempts = 3

type Story struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	URL           *string `json:"url"`
	Domain        *string `json:"domain"`
	Author        string  `json:"author"`
	Time          int64   `json:"time"`
	Score         int     `json:"score"`
	Descendants   int     `json:"descendants"`
	Content       *string `json:"-"`
	Teaser        *string `json:"teaser"`
	ContentStatus string  `json:"content_status"`
	Attempts      int     `json:"attempts"`
	ContentSource *string `json:"content_source"`
	BilledMs      int64   `json:"billed_ms"`
	HitFrontPage  bool    `json:"hit_front_page"`
	FrontPageRank *int    `json:"front_page_rank"`
	CreatedAt     int64   `json:"created_at"`
	UpdatedAt     int64   `json:"updated_at"`
}

// DecodedContent returns the decompressed article content, or "" if none has been
// fetched yet.
func (s *Story) DecodedContent() string {
	if s.Content == nil {
		return ""
	}
	return Decompress(*s.Content)
}

type StoryStore struct {
	db *sql.DB
}

func NewStoryStore(db *sql.DB) *StoryStore {
	return &StoryStore{db: db}
}

// IngestItem is the normalized shape an ingestion transport (Algolia or
// Firebase) produces for a single HN item, ready to upsert.
type IngestItem struct {
	ID          int64
	Title       string
	URL         *string
	Text        *string
	Author      string
	Time        int64
	Score       int
	Descendants int
}

// UpsertIngested writes a batch of ingested items. On conflict by id it
// updates only score and descendants, leaving content/status/attempts/
// front-page annotations untouched. Self-text stories (no URL, non-null
// text) get content populated with status=done/source=hn_text at first
// insert; that population is never repeated on conflict since the
// ON CONFLICT clause doesn't touch those columns either way.
func (s *StoryStore) UpsertIngested(ctx context.Context, items []IngestItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stories (
			id, title, url, domain, author, time, score, descendants,
			content, teaser, content_status, content_source,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			score=excluded.score,
			descendants=excluded.descendants,
			updated_at=excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, it := range items {
		var domain *string
		if it.URL != nil {
			d := deriveDomain(*it.URL)
			domain = &d
		}

		var content, teaser, status, source *string
		if it.URL == nil && it.Text != nil && *it.Text != "" {
			compressed, err := Compress(*it.Text)
			if err != nil {
				return err
			}
			content = &compressed
			t := Teaser(*it.Text)
			teaser = &t
			done := StatusDone
			status = &done
			src := "hn_text"
			source = &src
		} else {
			pending := StatusPending
			status = &pending
		}

		if _, err := stmt.ExecContext(ctx,
			it.ID, it.Title, it.URL, domain, it.Author, it.Time, it.Score, it.Descendants,
			content, teaser, *status, source, now, now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ClaimedJob is the row returned by ClaimNext: just enough to invoke the
// renderer and finalize the result.
type ClaimedJob struct {
	ID       int64
	URL      string
	Domain   string
	Attempts int
}

// ClaimNext atomically claims the single highest-priority pending/retry job
// (fewer attempts first, then older stories first) via one UPDATE...RETURNING
// statement — no read-then-write race window. Returns nil, nil if no job is
// eligible.
func (s *StoryStore) ClaimNext(ctx context.Context) (*ClaimedJob, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE stories SET
			content_status = 'fetching',
			attempts = attempts + 1,
			updated_at = ?
		WHERE id = (
			SELECT id FROM stories
			WHERE content_status IN ('pending', 'retry')
			AND url IS NOT NULL
			AND attempts < ?
			ORDER BY attempts ASC, time ASC
			LIMIT 1
		)
		RETURNING id, url, domain, attempts`, time.Now().Unix(), MaxAttempts)

	job := &ClaimedJob{}
	var domain sql.NullString
	err := row.Scan(&job.ID, &job.URL, &domain, &job.Attempts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job.Domain = domain.String
	return job, nil
}

// FinalizeResult is what a worker hands back after a renderer call (or a
// cache hit) to settle a claimed job.
type FinalizeResult struct {
	Status   string // one of the terminal/retry statuses
	Content  string // plaintext; empty means "leave content untouched"
	Source   string
	BilledMs int64
}

// Finalize writes a worker's result to a claimed story: on done/blocked (with
// a body) it compresses content and regenerates the teaser; status and
// content_source always update; attempts is left as ClaimNext set it (the
// caller increments again only via a subsequent ClaimNext call).
func (s *StoryStore) Finalize(ctx context.Context, id int64, r FinalizeResult) error {
	now := time.Now().Unix()

	if r.Content == "" {
		_, err := s.db.ExecContext(ctx, `
			UPDATE stories SET content_status = ?, content_source = ?, billed_ms = billed_ms + ?, updated_at = ?
			WHERE id = ?`, r.Status, nullIfEmpty(r.Source), r.BilledMs, now, id)
		return err
	}

	compressed, err := Compress(r.Content)
	if err != nil {
		return err
	}
	teaser := Teaser(r.Content)

	_, err = s.db.ExecContext(ctx, `
		UPDATE stories SET
			content = ?, teaser = ?, content_status = ?, content_source = ?,
			billed_ms = billed_ms + ?, updated_at = ?
		WHERE id = ?`, compressed, teaser, r.Status, nullIfEmpty(r.Source), r.BilledMs, now, id)
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetByID returns a single story, or nil if it doesn't exist.
func (s *StoryStore) GetByID(ctx context.Context, id int64) (*Story, error) {
	st := &Story{}
	err := s.db.QueryRowContext(ctx, storySelectColumns+` FROM stories WHERE id = ?`, id).Scan(scanStoryDests(st)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

const storySelectColumns = `
	SELECT id, title, url, domain, author, time, score, descendants,
		content, teaser, content_status, attempts, content_source,
		billed_ms, hit_front_page, front_page_rank, created_at, updated_at`

func scanStoryDests(st *Story) []any {
	return []any{
		&st.ID, &st.Title, &st.URL, &st.Domain, &st.Author, &st.Time, &st.Score, &st.Descendants,
		&st.Content, &st.Teaser, &st.ContentStatus, &st.Attempts, &st.ContentSource,
		&st.BilledMs, &st.HitFrontPage, &st.FrontPageRank, &st.CreatedAt, &st.UpdatedAt,
	}
}

// MaxTime returns MAX(time) over all stories, the derived ingestion
// checkpoint. Returns 0, false if the store is empty.
func (s *StoryStore) MaxTime(ctx context.Context) (int64, bool, error) {
	var t sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(time) FROM stories`).Scan(&t); err != nil {
		return 0, false, err
	}
	return t.Int64, t.Valid, nil
}

// Count returns the total number of stories.
func (s *StoryStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stories`).Scan(&n)
	return n, err
}

// MarkFrontPage sets hit_front_page=1 and front_page_rank=min(existing, rank)
// (NULL treated as infinity) for a story already present. A story pruned
// between snapshots simply matches zero rows.
func (s *StoryStore) MarkFrontPage(ctx context.Context, id int64, rank int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE stories SET
			hit_front_page = 1,
			front_page_rank = CASE
				WHEN front_page_rank IS NULL THEN ?
				WHEN front_page_rank > ? THEN ?
				ELSE front_page_rank
			END,
			updated_at = ?
		WHERE id = ?`, rank, rank, rank, time.Now().Unix(), id)
	return err
}

// StuckJobCleanup runs the startup/idle-triggered reconciliation described
// in the extraction-worker design: URL-less non-terminal stories are
// skipped, fetching rows with attempts remaining go back to retry, and any
// non-terminal row that has exhausted attempts is marked failed.
func (s *StoryStore) StuckJobCleanup(ctx context.Context) error {
	now := time.Now().Unix()

	if _, err := s.db.ExecContext(ctx, `
		UPDATE stories SET content_status = 'skipped', updated_at = ?
		WHERE url IS NULL AND content_status NOT IN ('done','failed','blocked','skipped')`, now); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE stories SET content_status = 'retry', updated_at = ?
		WHERE content_status = 'fetching' AND attempts < ?`, now, MaxAttempts); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE stories SET content_status = 'failed', updated_at = ?
		WHERE content_status NOT IN ('done','failed','blocked','skipped') AND attempts >= ?`, now, MaxAttempts)
	return err
}

// Vacuum runs VACUUM unconditionally; callers should gate this on
// FreePageStats per the opportunistic-vacuum policy.
func (s *StoryStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `VACUUM`)
	return err
}

// FreePageStats reports the database's reclaimable space for the
// opportunistic-vacuum check.
func (s *StoryStore) FreePageStats(ctx context.Context) (freePages, totalPages int64, err error) {
	if err := s.db.QueryRowContext(ctx, `PRAGMA freelist_count`).Scan(&freePages); err != nil {
		return 0, 0, err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&totalPages); err != nil {
		return 0, 0, err
	}
	return freePages, totalPages, nil
}

// DeleteStory removes a story and rows in child tables that reference it
// (read_later, history), child-before-parent. dismissed is deliberately left
// untouched — see the dismissed table's invariant in migrate().
func (s *StoryStore) DeleteStory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE story_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM read_later WHERE story_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func NowUnix() int64 {
	return time.Now().Unix()
}
