package store

import (
	"context"
	"database/sql"
	"time"
)

// UserStateStore manages the three per-user sets: read_later, dismissed,
// and history. dismissed deliberately carries no foreign key to stories —
// see the invariant noted in migrate().
type UserStateStore struct {
	db *sql.DB
}

func NewUserStateStore(db *sql.DB) *UserStateStore {
	return &UserStateStore{db: db}
}

func (u *UserStateStore) AddReadLater(ctx context.Context, storyID int64) error {
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO read_later (story_id, created_at) VALUES (?, ?)
		ON CONFLICT(story_id) DO NOTHING`, storyID, time.Now().Unix())
	return err
}

func (u *UserStateStore) RemoveReadLater(ctx context.Context, storyID int64) error {
	_, err := u.db.ExecContext(ctx, `DELETE FROM read_later WHERE story_id = ?`, storyID)
	return err
}

func (u *UserStateStore) ListReadLater(ctx context.Context) ([]int64, error) {
	return listIDs(ctx, u.db, `SELECT story_id FROM read_later ORDER BY created_at DESC`)
}

func (u *UserStateStore) Dismiss(ctx context.Context, storyID int64) error {
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO dismissed (story_id, dismissed_at) VALUES (?, ?)
		ON CONFLICT(story_id) DO UPDATE SET dismissed_at = excluded.dismissed_at`, storyID, time.Now().Unix())
	return err
}

func (u *UserStateStore) Undismiss(ctx context.Context, storyID int64) error {
	_, err := u.db.ExecContext(ctx, `DELETE FROM dismissed WHERE story_id = ?`, storyID)
	return err
}

// ClearDismissed removes every dismissal marker, independent of age.
func (u *UserStateStore) ClearDismissed(ctx context.Context) error {
	_, err := u.db.ExecContext(ctx, `DELETE FROM dismissed`)
	return err
}

func (u *UserStateStore) RecordOpened(ctx context.Context, storyID int64) error {
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO history (story_id, opened_at) VALUES (?, ?)
		ON CONFLICT(story_id) DO UPDATE SET opened_at = excluded.opened_at`, storyID, time.Now().Unix())
	return err
}

func listIDs(ctx context.Context, db *sql.DB, query string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
