package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/logging"
	"github.com/xzer/workbackup/internal/mailbox"
	"github.com/xzer/workbackup/internal/run"
)

func TestWatchRoots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	entries := []config.Entry{
		{Path: dir},                                  // directory: watched itself
		{Path: file},                                 // file: parent is watched
		{Path: "/repos/proj", Type: config.EntryGitRepo}, // repo: .git is watched
	}
	got := watchRoots(entries)
	assert.Equal(t, []string{dir, dir, "/repos/proj/.git"}, got)
}

func TestDetectRequestsRunOnChange(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New[run.Request]()
	w := New(config.WatchConfig{}, []config.Entry{{Path: dir}}, logging.Nop{}, mb)

	// First poll only records baselines.
	w.detect()
	assert.Nil(t, mb.TryTake())

	// Make the directory mtime advance.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), nil, 0o644))
	now := time.Now()
	require.NoError(t, os.Chtimes(dir, now, now))

	w.detect()
	req := mb.TryTake()
	require.NotNil(t, req)
	assert.True(t, req.CommitOnly)
}

// Config reloads stop the old watcher and start a new one, so Start must
// return once its context is cancelled.
func TestStartPollStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New[run.Request]()
	w := New(config.WatchConfig{Mode: "poll", PollInterval: 5 * time.Millisecond},
		[]config.Entry{{Path: dir}}, logging.Nop{}, mb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestStartUnknownMode(t *testing.T) {
	mb := mailbox.New[run.Request]()
	w := New(config.WatchConfig{Mode: "telepathy"}, nil, logging.Nop{}, mb)
	err := w.Start(context.Background())
	assert.Error(t, err)
}
