package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// backupSlot is one rotation slot: a file name suffix and the age window
// [min,max) during which a file belongs in that slot.
type backupSlot struct {
	name string
	min  time.Duration
	max  time.Duration
}

// backupSlots is the fixed 15-slot schedule from §4.1: four hourly, seven
// daily, four weekly, oldest first.
var backupSlots = []backupSlot{
	{"1h", 0, time.Hour},
	{"2h", time.Hour, 2 * time.Hour},
	{"6h", 2 * time.Hour, 6 * time.Hour},
	{"12h", 6 * time.Hour, 12 * time.Hour},
	{"1d", 12 * time.Hour, 24 * time.Hour},
	{"2d", 24 * time.Hour, 2 * 24 * time.Hour},
	{"3d", 2 * 24 * time.Hour, 3 * 24 * time.Hour},
	{"4d", 3 * 24 * time.Hour, 4 * 24 * time.Hour},
	{"5d", 4 * 24 * time.Hour, 5 * 24 * time.Hour},
	{"6d", 5 * 24 * time.Hour, 6 * 24 * time.Hour},
	{"7d", 6 * 24 * time.Hour, 7 * 24 * time.Hour},
	{"1w", 7 * 24 * time.Hour, 7 * 24 * time.Hour},
	{"2w", 7 * 24 * time.Hour, 14 * 24 * time.Hour},
	{"3w", 14 * 24 * time.Hour, 21 * 24 * time.Hour},
	{"4w", 21 * 24 * time.Hour, 28 * 24 * time.Hour},
}

// BackupStore rotates the 15-slot backup schedule under a directory and
// takes fresh online backups of the primary store.
type BackupStore struct {
	db  *sql.DB
	dir string
}

func NewBackupStore(db *sql.DB, dir string) *BackupStore {
	return &BackupStore{db: db, dir: dir}
}

func (b *BackupStore) slotPath(name string) string {
	return filepath.Join(b.dir, fmt.Sprintf("backup-%s.db", name))
}

// Rotate walks the schedule oldest to newest, promoting or deleting aged
// slot files, then writes a fresh backup into the 1h slot (after promoting
// any existing 1h file to 2h if that slot is free and old enough). A
// failure on any single step is logged and does not abort the remaining
// steps, per §4.1.
func (b *BackupStore) Rotate(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	for i := len(backupSlots) - 1; i >= 0; i-- {
		slot := backupSlots[i]
		path := b.slotPath(slot.name)
		info, err := os.Stat(path)
		if err != nil {
			continue // slot empty, nothing to rotate
		}

		age := time.Since(info.ModTime())
		if age < slot.max {
			continue
		}

		if i == len(backupSlots)-1 {
			if err := os.Remove(path); err != nil {
				slog.Error("backup rotation: delete oldest slot failed", "slot", slot.name, "error", err)
			}
			continue
		}

		next := backupSlots[i+1]
		nextPath := b.slotPath(next.name)
		if _, err := os.Stat(nextPath); err == nil {
			continue // destination occupied; wait for its own rotation
		}
		if err := os.Rename(path, nextPath); err != nil {
			slog.Error("backup rotation: promote slot failed", "from", slot.name, "to", next.name, "error", err)
		}
	}

	return b.writeFreshBackup(ctx)
}

func (b *BackupStore) writeFreshBackup(ctx context.Context) error {
	onePath := b.slotPath("1h")
	if info, err := os.Stat(onePath); err == nil {
		if time.Since(info.ModTime()) >= time.Hour {
			twoPath := b.slotPath("2h")
			if _, err := os.Stat(twoPath); os.IsNotExist(err) {
				if err := os.Rename(onePath, twoPath); err != nil {
					slog.Error("backup rotation: make room in 1h slot failed", "error", err)
				}
			}
		}
	}

	if _, err := os.Stat(onePath); err == nil {
		return nil // couldn't make room; skip this pass's fresh backup
	}

	if _, err := b.db.ExecContext(ctx, `VACUUM INTO ?`, onePath); err != nil {
		return fmt.Errorf("vacuum into backup: %w", err)
	}
	return nil
}

// MaybeVacuum runs VACUUM if free pages exceed the configured threshold or
// percentage of the database, per the opportunistic-vacuum policy.
func MaybeVacuum(ctx context.Context, stories *StoryStore, freePageThreshold int64, freePercentThreshold float64) (ran bool, err error) {
	free, total, err := stories.FreePageStats(ctx)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}
	pct := float64(free) / float64(total) * 100
	if free < freePageThreshold && pct < freePercentThreshold {
		return false, nil
	}
	if err := stories.Vacuum(ctx); err != nil {
		return false, err
	}
	return true, nil
}
