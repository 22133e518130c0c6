// Package reload watches the configuration file and reports changes.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the directory holding path and calls
// onChange once per burst of changes to the file, until ctx is cancelled.
//
// The directory is watched rather than the file so that editors which
// replace the file by rename keep being observed.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("reload: resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: new watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("reload: watch %s: %w", filepath.Dir(abs), err)
	}

	logger.Info("reload: watching config", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("reload: stopped")
			return nil

		case <-fire:
			fire = nil
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("reload: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
