package store

import (
	"context"
	"database/sql"
	"strings"
)

// RulesStore manages the six rule tables: four weighted (merit/demerit,
// words/domains) and two boolean (blocked words/domains). Words are
// normalized to lowercase on write; domains are stored verbatim.
type RulesStore struct {
	db *sql.DB
}

func NewRulesStore(db *sql.DB) *RulesStore {
	return &RulesStore{db: db}
}

func (r *RulesStore) AddMeritWord(ctx context.Context, word string, weight int) error {
	return upsertWeighted(ctx, r.db, "merit_words", "word", strings.ToLower(word), weight)
}

func (r *RulesStore) AddDemeritWord(ctx context.Context, word string, weight int) error {
	return upsertWeighted(ctx, r.db, "demerit_words", "word", strings.ToLower(word), weight)
}

func (r *RulesStore) AddMeritDomain(ctx context.Context, domain string, weight int) error {
	return upsertWeighted(ctx, r.db, "merit_domains", "domain", domain, weight)
}

func (r *RulesStore) AddDemeritDomain(ctx context.Context, domain string, weight int) error {
	return upsertWeighted(ctx, r.db, "demerit_domains", "domain", domain, weight)
}

func (r *RulesStore) RemoveMeritWord(ctx context.Context, word string) error {
	return deleteKey(ctx, r.db, "merit_words", "word", strings.ToLower(word))
}

func (r *RulesStore) RemoveDemeritWord(ctx context.Context, word string) error {
	return deleteKey(ctx, r.db, "demerit_words", "word", strings.ToLower(word))
}

func (r *RulesStore) RemoveMeritDomain(ctx context.Context, domain string) error {
	return deleteKey(ctx, r.db, "merit_domains", "domain", domain)
}

func (r *RulesStore) RemoveDemeritDomain(ctx context.Context, domain string) error {
	return deleteKey(ctx, r.db, "demerit_domains", "domain", domain)
}

func (r *RulesStore) BlockWord(ctx context.Context, word string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO blocked_words (word) VALUES (?) ON CONFLICT DO NOTHING`, strings.ToLower(word))
	return err
}

func (r *RulesStore) UnblockWord(ctx context.Context, word string) error {
	return deleteKey(ctx, r.db, "blocked_words", "word", strings.ToLower(word))
}

func (r *RulesStore) BlockDomain(ctx context.Context, domain string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO blocked_domains (domain) VALUES (?) ON CONFLICT DO NOTHING`, domain)
	return err
}

func (r *RulesStore) UnblockDomain(ctx context.Context, domain string) error {
	return deleteKey(ctx, r.db, "blocked_domains", "domain", domain)
}

func (r *RulesStore) ListBlockedWords(ctx context.Context) ([]string, error) {
	return listStrings(ctx, r.db, `SELECT word FROM blocked_words ORDER BY word`)
}

func (r *RulesStore) ListBlockedDomains(ctx context.Context) ([]string, error) {
	return listStrings(ctx, r.db, `SELECT domain FROM blocked_domains ORDER BY domain`)
}

func upsertWeighted(ctx context.Context, db *sql.DB, table, col, key string, weight int) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO `+table+` (`+col+`, weight) VALUES (?, ?)
		ON CONFLICT(`+col+`) DO UPDATE SET weight = excluded.weight`, key, weight)
	return err
}

func deleteKey(ctx context.Context, db *sql.DB, table, col, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+col+` = ?`, key)
	return err
}

func listStrings(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
