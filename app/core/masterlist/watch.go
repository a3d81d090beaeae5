package masterlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/games"
)

const overridesFileName = "overrides.json5"

// WatchOverrides invalidates cached views whenever a game's overrides file
// changes on disk, so long-running hosts pick up curator edits without a
// restart. It returns once the watcher is installed and keeps running until
// the context is canceled.
func (s *Store) WatchOverrides(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating overrides watcher: %w", err)
	}

	// Watch the game directories rather than the files: editors typically
	// replace the file, which unbinds a direct file watch.
	for _, game := range games.All() {
		dir := s.cache.gameDir(game.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			watcher.Close()
			return fmt.Errorf("preparing watch directory for %s: %w", game.ID, err)
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watching overrides for %s: %w", game.ID, err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != overridesFileName {
					continue
				}
				if !event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
					continue
				}
				game := filepath.Base(filepath.Dir(event.Name))
				s.dropViews(game)
				s.log.Info("Store: overrides changed, cached views dropped",
					zap.String("game", game), zap.String("op", event.Op.String()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("Store: overrides watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// dropViews removes every cached view for a game so the next load reparses
// with the current override layers.
func (s *Store) dropViews(game string) {
	prefix := game + "@"
	for _, key := range s.views.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.views.Remove(key)
		}
	}
}
