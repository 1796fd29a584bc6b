package deployment

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch logs a warning whenever one of the loaded artifacts changes on disk.
// The running process keeps the artifacts it started with; changes only take
// effect after a restart. Watch blocks until ctx is done.
func Watch(ctx context.Context, a *Artifacts, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(a.Dir); err != nil {
		return err
	}

	tracked := map[string]bool{
		filepath.Clean(a.ModelPath):    true,
		filepath.Clean(a.FeaturesPath): true,
		filepath.Clean(a.ClassesPath):  true,
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !tracked[filepath.Clean(event.Name)] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				logger.Warn("deployment artifact changed on disk; restart to apply",
					zap.String("path", event.Name),
					zap.String("op", event.Op.String()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("deployment watcher error", zap.Error(err))
		}
	}
}
