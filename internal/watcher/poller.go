package watcher

import (
	"context"
	"os"
	"time"
)

// startPolling triggers detect() on a fixed interval.
func (w *Watcher) startPolling(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.detect()
		}
	}
}

// detect requests a run if any watched directory's mtime advanced since
// the last poll. Shallow on purpose: the scheduled runs catch anything a
// directory mtime misses.
func (w *Watcher) detect() {
	for _, dir := range w.dirs {
		info, err := os.Stat(dir)
		if err != nil {
			continue
		}
		mod := info.ModTime()
		last, seen := w.lastSeen[dir]
		w.lastSeen[dir] = mod
		if seen && mod.After(last) {
			w.request("poll: " + dir)
			return
		}
	}
}
