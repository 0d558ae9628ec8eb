package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LoadWatermark reads the last-processing-run timestamp. A missing or
// unparseable file falls back to 24 hours ago so a first run processes the
// last day of raw data.
func LoadWatermark(path string, now time.Time) time.Time {
	fallback := now.Add(-24 * time.Hour)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("watermark: unreadable file, falling back to 24h",
				zap.String("path", path), zap.Error(err))
		}
		return fallback
	}

	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		zap.L().Warn("watermark: unparseable timestamp, falling back to 24h",
			zap.String("path", path), zap.Error(err))
		return fallback
	}
	return t
}

// SaveWatermark writes the timestamp as the new watermark. Called only
// after a successful append so a crash in between reprocesses the same
// files on the next run (at-least-once, never data loss).
func SaveWatermark(path string, t time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "watermark: mkdir")
	}
	if err := os.WriteFile(path, []byte(t.Format(time.RFC3339Nano)), 0o644); err != nil {
		return eris.Wrap(err, "watermark: write")
	}
	return nil
}

// DiscoverFiles returns raw batch files under dir whose modification time
// is strictly after the watermark, sorted by name. Empty selection is a
// normal zero-work outcome, not an error.
func DiscoverFiles(dir string, since time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "discover: read dir %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			zap.L().Warn("discover: stat failed, skipping",
				zap.String("file", name), zap.Error(err))
			continue
		}
		if info.ModTime().After(since) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}
