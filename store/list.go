package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// ScoredStory pairs a Story with the rule-derived annotations ListFiltered
// computes for it.
type ScoredStory struct {
	Story
	DomainMerit   int
	DomainDemerit int
	WordMerit     int
	WordDemerit   int
	NetScore      int
}

// ListQuery describes one page of the filtered story listing.
type ListQuery struct {
	DismissedOnly     bool
	IncludeBlocked    bool
	IncludeReadLater  bool // when false, read-later stories are excluded
	ReadLaterOnly     bool
	Sort              string // "newest" (default) or "oldest"
	Limit             int
	Cursor            string // "<time>:<id>" from a prior page, or ""
}

// ListResult is one page of ListFiltered.
type ListResult struct {
	Stories    []ScoredStory
	NextCursor string
	HasMore    bool
}

// ListFiltered returns a paginated, deduplicated, scored listing. It
// over-fetches in multiples of 3x the requested page size to compensate for
// post-SQL blocked-word filtering and URL dedup, looping until either the
// page is full or the store is exhausted.
func (s *StoryStore) ListFiltered(ctx context.Context, q ListQuery) (*ListResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 30
	}
	newestFirst := q.Sort != "oldest"

	blockedWords, err := s.loadBlockedWords(ctx)
	if err != nil {
		return nil, err
	}
	domainRules, err := s.loadDomainRules(ctx)
	if err != nil {
		return nil, err
	}
	wordRules, err := s.loadWordRules(ctx)
	if err != nil {
		return nil, err
	}

	var (
		seenURL  = map[string]bool{}
		out      []ScoredStory
		cursor   = q.Cursor
		exhausted bool
	)

	for len(out) < limit && !exhausted {
		fetchSize := limit * 3
		rows, err := s.fetchPage(ctx, q, cursor, newestFirst, fetchSize)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			exhausted = true
			break
		}

		consumed := 0
		for _, st := range rows {
			consumed++
			dedupKey := dedupKeyFor(st.Story)
			if seenURL[dedupKey] {
				cursor = cursorFor(st.Story)
				continue
			}

			title := strings.ToLower(st.Title)
			if !q.IncludeBlocked && containsAny(title, blockedWords) {
				cursor = cursorFor(st.Story)
				continue
			}
			if !q.IncludeBlocked && st.Domain != nil && domainRules.blocked[*st.Domain] {
				cursor = cursorFor(st.Story)
				continue
			}

			st.DomainMerit, st.DomainDemerit = domainRules.score(st.Domain)
			st.WordMerit, st.WordDemerit = wordRules.score(title)
			st.NetScore = (st.DomainMerit + st.WordMerit) - (st.DomainDemerit + st.WordDemerit)

			seenURL[dedupKey] = true
			out = append(out, st)
			cursor = cursorFor(st.Story)

			if len(out) >= limit {
				break
			}
		}

		if len(rows) < fetchSize && consumed == len(rows) {
			exhausted = true
		}
	}

	result := &ListResult{Stories: out}
	if len(out) > 0 {
		result.NextCursor = cursorFor(out[len(out)-1].Story)
	}
	result.HasMore = !exhausted

	return result, nil
}

func dedupKeyFor(st Story) string {
	if st.URL != nil && *st.URL != "" {
		return *st.URL
	}
	return fmt.Sprintf("hn:%d", st.ID)
}

func cursorFor(st Story) string {
	return fmt.Sprintf("%d:%d", st.Time, st.ID)
}

func parseCursor(cursor string) (t int64, id int64, ok bool) {
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	t, err1 := strconv.ParseInt(parts[0], 10, 64)
	id, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return t, id, true
}

func (s *StoryStore) fetchPage(ctx context.Context, q ListQuery, cursor string, newestFirst bool, limit int) ([]ScoredStory, error) {
	var where []string
	var args []any

	switch {
	case q.DismissedOnly:
		where = append(where, `stories.id IN (SELECT story_id FROM dismissed)`)
	default:
		where = append(where, `stories.id NOT IN (SELECT story_id FROM dismissed)`)
	}

	switch {
	case q.ReadLaterOnly:
		where = append(where, `stories.id IN (SELECT story_id FROM read_later)`)
	case !q.IncludeReadLater:
		where = append(where, `stories.id NOT IN (SELECT story_id FROM read_later)`)
	}

	cmp := "<"
	order := "DESC"
	if !newestFirst {
		cmp = ">"
		order = "ASC"
	}

	if cursor != "" {
		if t, id, ok := parseCursor(cursor); ok {
			where = append(where, fmt.Sprintf(`(stories.time %s ? OR (stories.time = ? AND stories.id %s ?))`, cmp, cmp))
			args = append(args, t, t, id)
		}
	}

	query := storySelectColumns + ` FROM stories`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY stories.time %s, stories.id %s LIMIT ?`, order, order)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoredStory
	for rows.Next() {
		var st ScoredStory
		if err := rows.Scan(scanStoryDests(&st.Story)...); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func (s *StoryStore) loadBlockedWords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM blocked_words`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

type domainRuleSet struct {
	merit   map[string]int
	demerit map[string]int
	blocked map[string]bool
}

func (d domainRuleSet) score(domain *string) (merit, demerit int) {
	if domain == nil {
		return 0, 0
	}
	return d.merit[*domain], d.demerit[*domain]
}

func (s *StoryStore) loadDomainRules(ctx context.Context) (domainRuleSet, error) {
	rs := domainRuleSet{merit: map[string]int{}, demerit: map[string]int{}, blocked: map[string]bool{}}

	if err := loadWeighted(ctx, s.db, `SELECT domain, weight FROM merit_domains`, rs.merit); err != nil {
		return rs, err
	}
	if err := loadWeighted(ctx, s.db, `SELECT domain, weight FROM demerit_domains`, rs.demerit); err != nil {
		return rs, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM blocked_domains`)
	if err != nil {
		return rs, err
	}
	defer rows.Close()
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return rs, err
		}
		rs.blocked[d] = true
	}
	return rs, rows.Err()
}

type wordRuleSet struct {
	merit   map[string]int
	demerit map[string]int
}

func (w wordRuleSet) score(lowerTitle string) (merit, demerit int) {
	for word, weight := range w.merit {
		if strings.Contains(lowerTitle, word) {
			merit += weight
		}
	}
	for word, weight := range w.demerit {
		if strings.Contains(lowerTitle, word) {
			demerit += weight
		}
	}
	return merit, demerit
}

func (s *StoryStore) loadWordRules(ctx context.Context) (wordRuleSet, error) {
	rs := wordRuleSet{merit: map[string]int{}, demerit: map[string]int{}}
	if err := loadWeighted(ctx, s.db, `SELECT word, weight FROM merit_words`, rs.merit); err != nil {
		return rs, err
	}
	if err := loadWeighted(ctx, s.db, `SELECT word, weight FROM demerit_words`, rs.demerit); err != nil {
		return rs, err
	}
	return rs, nil
}

func loadWeighted(ctx context.Context, db *sql.DB, query string, dest map[string]int) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var weight int
		if err := rows.Scan(&key, &weight); err != nil {
			return err
		}
		dest[key] = weight
	}
	return rows.Err()
}
