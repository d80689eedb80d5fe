package store

import (
	"context"
	"database/sql"
	"time"
)

// UsageLogEntry is one append-only billing record. Cache hits never append
// one — open question (a) in the design notes, implemented literally.
type UsageLogEntry struct {
	ID        int64
	StoryID   *int64
	URL       *string
	BilledMs  int64
	Source    string
	CreatedAt int64
}

// UsageSummary is a monthly rollup keyed "YYYY-MM".
type UsageSummary struct {
	Month         string
	RequestCount  int64
	TotalBilledMs int64
}

type UsageStore struct {
	db *sql.DB
}

func NewUsageStore(db *sql.DB) *UsageStore {
	return &UsageStore{db: db}
}

// Append writes one usage-log row. storyID/url may be nil.
func (u *UsageStore) Append(ctx context.Context, storyID *int64, url *string, billedMs int64, source string) error {
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO usage_log (story_id, url, billed_ms, source, created_at)
		VALUES (?, ?, ?, ?, ?)`, storyID, url, billedMs, source, time.Now().Unix())
	return err
}

// Summary returns all monthly rollups, most recent first.
func (u *UsageStore) Summary(ctx context.Context) ([]UsageSummary, error) {
	rows, err := u.db.QueryContext(ctx, `
		SELECT month, request_count, total_billed_ms FROM usage_summary ORDER BY month DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageSummary
	for rows.Next() {
		var s UsageSummary
		if err := rows.Scan(&s.Month, &s.RequestCount, &s.TotalBilledMs); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RollupOlderThan aggregates usage_log rows older than cutoff into
// usage_summary (upsert-add into any existing month row), then deletes the
// rolled-up rows. Returns the number of log rows rolled up.
func (u *UsageStore) RollupOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT strftime('%Y-%m', created_at, 'unixepoch') AS month, COUNT(*), COALESCE(SUM(billed_ms), 0)
		FROM usage_log WHERE created_at < ?
		GROUP BY month`, cutoff)
	if err != nil {
		return 0, err
	}

	type agg struct {
		month    string
		count    int64
		billedMs int64
	}
	var aggs []agg
	for rows.Next() {
		var a agg
		if err := rows.Scan(&a.month, &a.count, &a.billedMs); err != nil {
			rows.Close()
			return 0, err
		}
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_summary (month, request_count, total_billed_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET
			request_count = usage_summary.request_count + excluded.request_count,
			total_billed_ms = usage_summary.total_billed_ms + excluded.total_billed_ms`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var rolled int64
	for _, a := range aggs {
		if _, err := stmt.ExecContext(ctx, a.month, a.count, a.billedMs); err != nil {
			return 0, err
		}
		rolled += a.count
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_log WHERE created_at < ?`, cutoff); err != nil {
		return 0, err
	}

	return rolled, tx.Commit()
}

// DiscardSummariesOlderThan removes usage_summary rows whose month precedes
// the month containing cutoff.
func (u *UsageStore) DiscardSummariesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	month := cutoff.Format("2006-01")
	res, err := u.db.ExecContext(ctx, `DELETE FROM usage_summary WHERE month < ?`, month)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
