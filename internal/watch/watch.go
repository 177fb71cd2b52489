// Package watch re-runs an action when a file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit per save.
const DefaultDebounce = 300 * time.Millisecond

// FileWatcher calls OnChange after the watched file is written, created or
// renamed into place. Bursts of events within Debounce trigger one call.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context) error
	log      *slog.Logger
}

func New(path string, debounce time.Duration, log *slog.Logger, onChange func(ctx context.Context) error) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FileWatcher{path: abs, debounce: debounce, onChange: onChange, log: log}, nil
}

// Run blocks until ctx is done. OnChange errors are logged; watching
// continues.
func (fw *FileWatcher) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors that save via rename replace the inode.
	dir := filepath.Dir(fw.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	fw.log.Info("watching for changes", "path", fw.path)

	name := filepath.Base(fw.path)
	timer := time.NewTimer(fw.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				fw.log.Debug("change detected", "op", event.Op.String())
				timer.Reset(fw.debounce)
			case event.Has(fsnotify.Remove):
				fw.log.Warn("watched file removed", "path", event.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fw.log.Error("watcher error", "error", err)
		case <-timer.C:
			if err := fw.onChange(ctx); err != nil {
				fw.log.Error("rebuild failed", "error", err)
			}
		}
	}
}
