package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gallerydl/pkg/logger"
)

// ErrDownloadTimeout means no new completed file appeared in the
// downloads folder before the deadline. The session degrades this to
// a warning rather than failing the item.
var ErrDownloadTimeout = errors.New("storage: timed out waiting for download")

// partialSuffixes are in-progress download artifacts the watcher must
// ignore until the browser finishes writing them.
var partialSuffixes = []string{".crdownload", ".tmp", ".part", ".download"}

// DownloadedFile describes one completed download.
type DownloadedFile struct {
	Path             string
	OriginalFilename string
	SizeBytes        int64
	Duration         time.Duration
}

// Watcher observes a downloads folder for files created by the
// browser. Usage: Snapshot before triggering the download, then
// WaitForNewFile to pick up what appeared.
type Watcher struct {
	dir  string
	poll time.Duration
	log  logger.Logger
}

// NewWatcher creates the folder if needed and returns a watcher over
// it.
func NewWatcher(dir string, poll time.Duration, log logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create downloads folder: %w", err)
	}
	return &Watcher{dir: dir, poll: poll, log: log}, nil
}

// Dir returns the watched folder path.
func (w *Watcher) Dir() string { return w.dir }

// Snapshot records the names currently present so WaitForNewFile can
// tell what is new.
func (w *Watcher) Snapshot() (map[string]bool, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read downloads folder: %w", err)
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Name()] = true
	}
	return seen, nil
}

// WaitForNewFile polls until a file absent from before appears
// completed, meaning it has no in-progress suffix and its size has
// stopped growing between two polls. Returns ErrDownloadTimeout when
// the deadline passes first.
func (w *Watcher) WaitForNewFile(ctx context.Context, before map[string]bool, timeout time.Duration) (*DownloadedFile, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	lastSizes := map[string]int64{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrDownloadTimeout
		}

		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return nil, fmt.Errorf("read downloads folder: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			if before[name] || e.IsDir() || isPartial(name) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			size := info.Size()
			if prev, ok := lastSizes[name]; ok && prev == size && size > 0 {
				return &DownloadedFile{
					Path:             filepath.Join(w.dir, name),
					OriginalFilename: name,
					SizeBytes:        size,
					Duration:         time.Since(start),
				}, nil
			}
			lastSizes[name] = size
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.poll):
		}
	}
}

// Rename moves a completed download to a name derived from pattern.
// Pattern placeholders: {id}, {date} and {name}. An empty pattern
// keeps the original name.
func (w *Watcher) Rename(f *DownloadedFile, pattern string, id int, ts time.Time) (string, error) {
	if pattern == "" {
		return f.Path, nil
	}
	name := strings.ReplaceAll(pattern, "{id}", fmt.Sprintf("%09d", id))
	name = strings.ReplaceAll(name, "{date}", ts.Format("2006-01-02_150405"))
	name = strings.ReplaceAll(name, "{name}", strings.TrimSuffix(f.OriginalFilename, filepath.Ext(f.OriginalFilename)))
	if !strings.Contains(name, ".") {
		name += filepath.Ext(f.OriginalFilename)
	}
	dst := filepath.Join(w.dir, name)
	if err := os.Rename(f.Path, dst); err != nil {
		return "", fmt.Errorf("rename download: %w", err)
	}
	f.Path = dst
	return dst, nil
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
