package prompt

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/airouter/airouter/pkg/safego"
)

// Watch reloads templates when their files change on disk, until ctx is
// cancelled. Directories that do not exist are skipped; those templates
// simply stay on their current text.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	byPath := map[string]string{}
	dirs := map[string]bool{}
	for name, path := range r.paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		byPath[abs] = name
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			r.logger.Warn("Prompt directory not watchable",
				zap.String("dir", dir), zap.Error(err))
		}
	}

	safego.Go(r.logger, "prompt-watcher", func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				abs, err := filepath.Abs(event.Name)
				if err != nil {
					continue
				}
				if name, tracked := byPath[abs]; tracked {
					r.loadOne(name, event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("Prompt watcher error", zap.Error(err))
			}
		}
	})
	return nil
}
