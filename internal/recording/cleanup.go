package recording

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// StartRetentionTicker runs a background goroutine that periodically removes
// archived recording files older than maxAge from dir. Turn audio is removed
// inline by the dispatcher; this sweep only bounds the full-call archives,
// which otherwise grow without limit. A maxAge of 0 disables the sweep. The
// goroutine stops when the provided context is cancelled.
func StartRetentionTicker(ctx context.Context, dir string, maxAge, interval time.Duration, logger *slog.Logger) {
	if maxAge <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := sweep(dir, maxAge, logger)
				if removed > 0 {
					logger.Info("recording retention sweep", "removed", removed, "max_age", maxAge)
				}
			}
		}
	}()
}

// sweep deletes regular files in dir whose modification time is older than
// maxAge. Returns the number of files removed. Unreadable entries are
// logged and skipped.
func sweep(dir string, maxAge time.Duration, logger *slog.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("recording retention: reading directory", "dir", dir, "error", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("recording retention: removing file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}
