package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay waits for a file being written to stop changing before it is imported
const settleDelay = 500 * time.Millisecond

// ImportDir imports every catalog file in dir, in name order. Files that fail
// are logged and skipped; the number imported is returned.
func (im *Importer) ImportDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && FormatOf(e.Name()) != "" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	imported := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return imported, ctx.Err()
		}
		if _, err := im.ImportFile(ctx, path); err != nil {
			im.log.WithError(err).WithField("path", path).Warn("Skipping catalog file")
			continue
		}
		imported++
	}
	return imported, nil
}

// Watch imports catalog files as they are written to dir until ctx is done
func (im *Importer) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	im.log.WithField("dir", dir).Info("Watching for catalog files")

	// one pending timer per file
	pending := make(map[string]*time.Timer)
	ready := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || FormatOf(event.Name) == "" {
				continue
			}
			path := event.Name
			if t, ok := pending[path]; ok {
				t.Reset(settleDelay)
				continue
			}
			pending[path] = time.AfterFunc(settleDelay, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(pending, path)
			if _, err := im.ImportFile(ctx, path); err != nil {
				im.log.WithError(err).WithField("path", path).Warn("Failed to import catalog file")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			im.log.WithError(err).Warn("Catalog watcher error")
		}
	}
}
