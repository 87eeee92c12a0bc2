// Package watcher observes the configured source paths in daemon mode and
// requests a commit-only run when any of them changes. The mailbox
// coalesces bursts; the debounce window batches rapid edits.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/fsprobe"
	"github.com/xzer/workbackup/internal/logging"
	"github.com/xzer/workbackup/internal/mailbox"
	"github.com/xzer/workbackup/internal/run"
)

// Watcher observes source paths and enqueues commit-only run requests.
type Watcher struct {
	dirs     []string
	mode     string
	interval time.Duration
	debounce time.Duration

	log logging.Logger
	mb  *mailbox.Mailbox[run.Request]

	lastSeen map[string]time.Time
}

// New creates a watcher over the directories containing the configured
// entries. Git-repo entries are watched at their .git directory so only
// ref updates trigger runs, not working-tree churn.
func New(cfg config.WatchConfig, entries []config.Entry, log logging.Logger, mb *mailbox.Mailbox[run.Request]) *Watcher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	debounce := cfg.DebounceWindow
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	return &Watcher{
		dirs:     watchRoots(entries),
		mode:     cfg.Mode,
		interval: interval,
		debounce: debounce,
		log:      log,
		mb:       mb,
		lastSeen: make(map[string]time.Time),
	}
}

func watchRoots(entries []config.Entry) []string {
	var dirs []string
	for _, e := range entries {
		if e.Type == config.EntryGitRepo {
			dirs = append(dirs, filepath.Join(e.Path, ".git"))
			continue
		}
		if st, err := os.Stat(e.Path); err == nil && st.IsDir() {
			dirs = append(dirs, e.Path)
		} else {
			dirs = append(dirs, filepath.Dir(e.Path))
		}
	}
	return dirs
}

// Start chooses the watching strategy based on config.
func (w *Watcher) Start(ctx context.Context) error {
	switch w.mode {
	case "fsnotify":
		return w.startFsNotify(ctx)

	case "poll":
		w.startPolling(ctx)
		return nil

	case "", "auto":
		supported := len(w.dirs) > 0
		for _, dir := range w.dirs {
			res := fsprobe.Probe(dir)
			if !res.FsnotifySupported {
				w.log.Warn("fsnotify disabled for %s: %s", dir, res.Reason)
				supported = false
				break
			}
		}
		if supported {
			return w.startFsNotify(ctx)
		}
		w.startPolling(ctx)
		return nil

	default:
		return fmt.Errorf("unknown watch mode %q", w.mode)
	}
}

// request asks for a commit-only run; the mailbox drops duplicates.
func (w *Watcher) request(reason string) {
	w.log.Debug("watcher: requesting run (%s)", reason)
	w.mb.Put(run.Request{CommitOnly: true, Reason: reason})
}
