package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/bukget/pkg/observability"
)

// reloadDelay coalesces the burst of events an editor save produces
const reloadDelay = 250 * time.Millisecond

// Watch reloads the configuration file at path whenever it changes and passes
// each valid result to onChange. Invalid files are logged and skipped. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *observability.Logger, onChange func(*Config)) error {
	if path == "" {
		return fmt.Errorf("no config file to watch")
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so replace-on-save editors are still seen
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	logger.WithField("path", path).Info("Watching configuration file")

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cfg, err := Load(path)
			if err != nil {
				logger.WithError(err).Warn("Ignoring invalid configuration change")
				continue
			}
			logger.WithField("path", path).Info("Configuration reloaded")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Configuration watcher error")
		}
	}
}
