package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls OnChange once a corpus file has stopped changing for the
// debounce window. The parent directory is watched so that editors and
// deploy tools that replace the file by rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context) error
	logger   *slog.Logger
}

func NewWatcher(path string, debounce time.Duration, onChange func(ctx context.Context) error) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		logger:   slog.Default().With("component", "corpus-watcher", "path", path),
	}
}

// Run blocks until ctx is cancelled. Errors from OnChange are logged and do
// not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Info("watching corpus file", "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("corpus file event", "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-timer.C:
			if err := w.onChange(ctx); err != nil {
				w.logger.Error("reload after corpus change failed", "error", err)
			}
		case <-ctx.Done():
			w.logger.Info("corpus watcher stopping")
			return nil
		}
	}
}
