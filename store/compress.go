package store

import (
	"bytes"
	"compress/flate"
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
)

// compressedPrefix tags a content value as "z:" + base64(deflate(utf8)).
// Values without the prefix are legacy plaintext and are round-tripped
// unchanged.
const compressedPrefix = "z:"

// Compress deflates s and returns it tagged with compressedPrefix. Empty
// strings are never compressed (callers store NULL instead).
func Compress(s string) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("new flate writer: %w", err)
	}
	if _, err := w.Write([]byte(s)); err != nil {
		return "", fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close flate writer: %w", err)
	}
	return compressedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress reverses Compress. Values without the "z:" prefix are returned
// unchanged (legacy plaintext). Corrupt compressed content falls back to
// returning the raw stored bytes rather than erroring, per spec's
// "structural" error handling for this case.
func Decompress(s string) string {
	rest, ok := cutPrefix(s, compressedPrefix)
	if !ok {
		return s
	}

	raw, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		slog.Warn("corrupt compressed content: bad base64", "error", err)
		return s
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		slog.Warn("corrupt compressed content: bad deflate stream", "error", err)
		return s
	}
	return string(out)
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return s, false
	}
	return s[len(prefix):], true
}

// Teaser returns the first 300 characters of decompressed content, stripped
// of surrounding whitespace, with an ellipsis suffix iff the content was
// truncated.
func Teaser(content string) string {
	trimmed := trimSpace(content)
	runes := []rune(trimmed)
	if len(runes) <= 300 {
		return trimmed
	}
	return trimSpace(string(runes[:300])) + "..."
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// MigrateCompress walks uncompressed rows (content not NULL and without the
// "z:" prefix) in batches of 100, compresses them, verifies the round trip
// by decompressing and comparing bytes, and only then writes the batch. A
// mismatch leaves the row unchanged and counts as an error; the batch still
// commits the rows that verified correctly.
func MigrateCompress(ctx context.Context, db *sql.DB) (migrated, errored int, err error) {
	for {
		n, batchErrored, batchErr := migrateCompressBatch(ctx, db)
		if batchErr != nil {
			return migrated, errored, batchErr
		}
		migrated += n
		errored += batchErrored
		if n == 0 && batchErrored == 0 {
			return migrated, errored, nil
		}
	}
}

func migrateCompressBatch(ctx context.Context, db *sql.DB) (migrated, errored int, err error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, content FROM stories
		WHERE content IS NOT NULL AND substr(content, 1, 2) != ?
		LIMIT 100`, compressedPrefix)
	if err != nil {
		return 0, 0, fmt.Errorf("select uncompressed batch: %w", err)
	}

	type row struct {
		id      int64
		content string
	}
	var batch []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.content); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan row: %w", err)
		}
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, err
	}
	rows.Close()

	if len(batch) == 0 {
		return 0, 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE stories SET content = ? WHERE id = ?`)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		compressed, err := Compress(r.content)
		if err != nil {
			slog.Error("compress migration: compress failed", "story_id", r.id, "error", err)
			errored++
			continue
		}
		if Decompress(compressed) != r.content {
			slog.Error("compress migration: round-trip mismatch, leaving row unchanged", "story_id", r.id)
			errored++
			continue
		}
		if _, err := stmt.ExecContext(ctx, compressed, r.id); err != nil {
			slog.Error("compress migration: update failed", "story_id", r.id, "error", err)
			errored++
			continue
		}
		migrated++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit batch: %w", err)
	}
	return migrated, errored, nil
}
