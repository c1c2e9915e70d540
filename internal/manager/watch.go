package manager

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events into one reconcile.
const watchDebounce = 2 * time.Second

// WatchCacheDir reconciles the cache belief whenever the engine's cache
// directory changes on disk (external downloads, manual deletion). Events
// are debounced so a multi-file download triggers a single reconcile. Blocks
// until ctx is canceled; run it in its own goroutine.
func (m *Manager) WatchCacheDir(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	m.logger.Info().Str("dir", dir).Msg("watching cache dir")

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(watchDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn().Err(err).Msg("cache dir watch error")
		case <-fire:
			timer = nil
			fire = nil
			if _, err := m.Reconcile(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("watch-triggered reconcile failed")
			}
		}
	}
}
