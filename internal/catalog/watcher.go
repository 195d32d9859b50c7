package catalog

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a YAMLProvider whenever its backing file changes, so menu
// edits take effect without a restart.
type Watcher struct {
	provider *YAMLProvider
}

func NewWatcher(provider *YAMLProvider) *Watcher {
	return &Watcher{provider: provider}
}

// Start blocks until ctx is cancelled, reloading the catalog on writes.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file via rename, which
	// drops a watch registered on the file itself.
	dir := filepath.Dir(w.provider.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(w.provider.path)

	slog.Info("catalog watcher started", "path", target)
	for {
		select {
		case <-ctx.Done():
			slog.Info("catalog watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := w.provider.Reload(); err != nil {
				slog.Error("catalog reload failed, keeping previous catalog", "error", err)
				continue
			}
			slog.Info("catalog reloaded", "path", target)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("catalog watcher error", "error", err)
		}
	}
}
