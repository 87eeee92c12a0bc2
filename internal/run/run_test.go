package run

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/execx"
	"github.com/xzer/workbackup/internal/fs"
	"github.com/xzer/workbackup/internal/gitcap"
	"github.com/xzer/workbackup/internal/logging"
	"github.com/xzer/workbackup/internal/mirror"
	"github.com/xzer/workbackup/internal/notify"
	"github.com/xzer/workbackup/internal/syncer"
)

// fakeGit records the git operations a run performs.
type fakeGit struct {
	head       string
	bundleHead string
	staged     bool

	addAlls int
	commits []string
	bundles []string
}

func (f *fakeGit) Head(ctx context.Context, repo string) (string, error) { return f.head, nil }

func (f *fakeGit) Refs(ctx context.Context, repo string) (gitcap.RefSet, error) {
	return gitcap.ParseRefSet(f.head + " HEAD"), nil
}

func (f *fakeGit) BundleRefs(ctx context.Context, bundlePath string) (gitcap.RefSet, error) {
	return gitcap.ParseRefSet(f.bundleHead + " HEAD"), nil
}

func (f *fakeGit) CreateBundle(ctx context.Context, repo, dst string) error {
	f.bundles = append(f.bundles, dst)
	return os.WriteFile(dst, []byte("bundle-bytes"), 0o644)
}

func (f *fakeGit) VerifyBundle(ctx context.Context, repo, bundlePath string) error { return nil }

func (f *fakeGit) AddAll(ctx context.Context, repo string) error {
	f.addAlls++
	return nil
}

func (f *fakeGit) HasStagedChanges(ctx context.Context, repo string) (bool, error) {
	return f.staged, nil
}

func (f *fakeGit) Commit(ctx context.Context, repo, message string) error {
	f.commits = append(f.commits, message)
	return nil
}

func (f *fakeGit) StatusShort(ctx context.Context, repo string) ([]string, error) { return nil, nil }

type fakeCopier struct{ calls []string }

func (f *fakeCopier) Copy(ctx context.Context, src, dst string, srcIsDir bool, ignore []string) error {
	f.calls = append(f.calls, src)
	return nil
}

func newTestRunner(t *testing.T, cfg *config.Config, git *fakeGit) (*Runner, string) {
	t.Helper()
	repo := t.TempDir()
	r := &Runner{
		repoRoot: repo,
		cfg:      cfg,
		git:      git,
		fs:       fs.New(),
		exec:     execx.ExecRunner{},
		copier:   &fakeCopier{},
		notifier: notify.Nop{},
		log:      logging.Nop{},
		now:      func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) },
	}
	return r, repo
}

func TestCommitOnlyRunSkipsSnapshotPhase(t *testing.T) {
	src := t.TempDir()
	bundleDir := t.TempDir()
	git := &fakeGit{head: "h1", staged: true}
	cfg := &config.Config{
		Entries:   []config.Entry{{Path: src}},
		BundleDir: bundleDir,
	}
	r, _ := newTestRunner(t, cfg, git)

	sum, err := r.Run(context.Background(), Request{CommitOnly: true})
	require.NoError(t, err)

	assert.Equal(t, CommitOnlyRun, sum.Overall)
	assert.True(t, sum.Committed)
	assert.Len(t, git.commits, 1)
	assert.Empty(t, git.bundles, "commit-only must not bundle")

	entries, err := os.ReadDir(bundleDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "commit-only must not touch the bundle dir")
}

func TestFullRunProducesBundle(t *testing.T) {
	src := t.TempDir()
	bundleDir := t.TempDir()
	git := &fakeGit{head: "h2", bundleHead: "h1", staged: true}
	cfg := &config.Config{
		Entries:   []config.Entry{{Path: src}},
		BundleDir: bundleDir,
	}
	r, repo := newTestRunner(t, cfg, git)

	sum, err := r.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, SnapshotProduced, sum.Overall)
	assert.Equal(t, "work-backup-2024-06-15.bundle", sum.Bundle)
	assert.FileExists(t, filepath.Join(bundleDir, sum.Bundle))
	assert.NoFileExists(t, filepath.Join(bundleDir, sum.Bundle+".partial"), "staging file is renamed away")
	assert.NoFileExists(t, filepath.Join(repo, sum.Bundle), "in-repo bundle is removed after the copy")
}

func TestFullRunUnchangedWritesSkipMarker(t *testing.T) {
	src := t.TempDir()
	bundleDir := t.TempDir()
	// A prior bundle with the same embedded head means no change.
	prior := filepath.Join(bundleDir, "work-backup-2024-06-10.bundle")
	require.NoError(t, os.WriteFile(prior, []byte("old"), 0o644))

	git := &fakeGit{head: "h1", bundleHead: "h1"}
	cfg := &config.Config{
		Entries:   []config.Entry{{Path: src}},
		BundleDir: bundleDir,
	}
	r, _ := newTestRunner(t, cfg, git)

	sum, err := r.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, SnapshotSkipped, sum.Overall)
	assert.Empty(t, git.bundles)
	assert.FileExists(t, filepath.Join(bundleDir, "work-backup-2024-06-15.skipped"))
	assert.FileExists(t, prior, "previous bundle stays authoritative")
}

func TestRunPrunesStaleMirrorEntries(t *testing.T) {
	src := t.TempDir()
	git := &fakeGit{head: "h1"}
	cfg := &config.Config{Entries: []config.Entry{{Path: src}}}
	r, repo := newTestRunner(t, cfg, git)

	stale := filepath.Join(repo, mirror.RootSegment, "old", "gone.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	sum, err := r.Run(context.Background(), Request{CommitOnly: true})
	require.NoError(t, err)

	require.Len(t, sum.Removed, 1)
	assert.NoFileExists(t, stale)
}

func TestRunFailedEntryStaysCovered(t *testing.T) {
	// The configured source does not exist, so the entry fails, but its
	// mirrored destination must survive reconciliation.
	missing := filepath.Join(t.TempDir(), "vanished")
	git := &fakeGit{head: "h1"}
	cfg := &config.Config{Entries: []config.Entry{{Path: missing}}}
	r, repo := newTestRunner(t, cfg, git)

	dest := mirror.Map(repo, missing)
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, []byte("last good copy"), 0o644))

	sum, err := r.Run(context.Background(), Request{CommitOnly: true})
	require.NoError(t, err)

	require.Len(t, sum.Results, 1)
	assert.Equal(t, syncer.FailedSync, sum.Results[0].Outcome)
	assert.FileExists(t, dest, "failed entry must not be pruned")
	assert.Empty(t, sum.Removed)
}
