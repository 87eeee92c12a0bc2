package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/gitcap"
	"github.com/xzer/workbackup/internal/logging"
	"github.com/xzer/workbackup/internal/mirror"
)

// fakeGit scripts the versioned-snapshot capability.
type fakeGit struct {
	liveRefs   gitcap.RefSet
	liveErr    error
	bundleRefs gitcap.RefSet
	bundleErr  error
	verifyErr  error

	created []string
}

func (f *fakeGit) Refs(ctx context.Context, repo string) (gitcap.RefSet, error) {
	return f.liveRefs, f.liveErr
}

func (f *fakeGit) BundleRefs(ctx context.Context, bundlePath string) (gitcap.RefSet, error) {
	return f.bundleRefs, f.bundleErr
}

func (f *fakeGit) CreateBundle(ctx context.Context, repo, dst string) error {
	f.created = append(f.created, dst)
	return os.WriteFile(dst, []byte("bundle"), 0o644)
}

func (f *fakeGit) VerifyBundle(ctx context.Context, repo, bundlePath string) error {
	return f.verifyErr
}

type fakeCopier struct {
	calls []string
	err   error
}

func (f *fakeCopier) Copy(ctx context.Context, src, dst string, srcIsDir bool, ignore []string) error {
	f.calls = append(f.calls, src)
	return f.err
}

// newRepoSource creates a directory that passes the .git precondition.
func newRepoSource(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))
	return src
}

func refs(lines string) gitcap.RefSet {
	return gitcap.ParseRefSet(lines)
}

func TestSyncRepoUnchangedSkipsCapture(t *testing.T) {
	repo := t.TempDir()
	src := newRepoSource(t)
	git := &fakeGit{
		liveRefs:   refs("sha1 refs/heads/main"),
		bundleRefs: refs("sha1 refs/heads/main"),
	}

	// A previous bundle must exist for the comparison to happen.
	dst := mirror.MapBundle(repo, src)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	s := New(repo, nil, &fakeCopier{}, git, nil, nil, logging.Nop{}, false)
	res := s.syncRepo(context.Background(), config.Entry{Path: src, Type: config.EntryGitRepo})

	assert.Equal(t, Unchanged, res.Outcome)
	assert.Empty(t, git.created, "no capture when ref sets are equal")
}

func TestSyncRepoChangedRefsCaptures(t *testing.T) {
	repo := t.TempDir()
	src := newRepoSource(t)
	git := &fakeGit{
		liveRefs:   refs("sha2 refs/heads/main"),
		bundleRefs: refs("sha1 refs/heads/main"),
	}
	dst := mirror.MapBundle(repo, src)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	s := New(repo, nil, &fakeCopier{}, git, nil, nil, logging.Nop{}, false)
	res := s.syncRepo(context.Background(), config.Entry{Path: src, Type: config.EntryGitRepo})

	assert.Equal(t, Synced, res.Outcome)
	assert.Equal(t, []string{dst}, git.created)
}

func TestSyncRepoNoPriorBundleCaptures(t *testing.T) {
	repo := t.TempDir()
	src := newRepoSource(t)
	git := &fakeGit{liveRefs: refs("sha1 refs/heads/main")}

	s := New(repo, nil, &fakeCopier{}, git, nil, nil, logging.Nop{}, false)
	res := s.syncRepo(context.Background(), config.Entry{Path: src, Type: config.EntryGitRepo})

	assert.Equal(t, Synced, res.Outcome)
	assert.Len(t, git.created, 1)
}

func TestSyncRepoUnreadableRefsAssumesChanged(t *testing.T) {
	repo := t.TempDir()
	src := newRepoSource(t)
	git := &fakeGit{
		liveErr:   errors.New("show-ref failed"),
		bundleRefs: refs("sha1 refs/heads/main"),
	}
	dst := mirror.MapBundle(repo, src)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	s := New(repo, nil, &fakeCopier{}, git, nil, nil, logging.Nop{}, false)
	res := s.syncRepo(context.Background(), config.Entry{Path: src, Type: config.EntryGitRepo})

	assert.Equal(t, Synced, res.Outcome)
	assert.Len(t, git.created, 1, "absence of a readable ref set means assume changed")
}

func TestSyncRepoVerifyFailureDiscardsBundle(t *testing.T) {
	repo := t.TempDir()
	src := newRepoSource(t)
	git := &fakeGit{
		liveRefs:  refs("sha2 refs/heads/main"),
		verifyErr: errors.New("bad bundle"),
	}

	s := New(repo, nil, &fakeCopier{}, git, nil, nil, logging.Nop{}, false)
	res := s.syncRepo(context.Background(), config.Entry{Path: src, Type: config.EntryGitRepo})

	assert.Equal(t, FailedSync, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrCaptureFailed)
	assert.NoFileExists(t, mirror.MapBundle(repo, src), "failed capture must be discarded")
}

func TestSyncRepoMissingSource(t *testing.T) {
	repo := t.TempDir()
	s := New(repo, nil, &fakeCopier{}, &fakeGit{}, nil, nil, logging.Nop{}, false)
	res := s.syncRepo(context.Background(), config.Entry{Path: "/does/not/exist", Type: config.EntryGitRepo})

	assert.Equal(t, FailedSync, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrSourceMissing)
}

func TestSyncRepoNotAGitRepo(t *testing.T) {
	repo := t.TempDir()
	src := t.TempDir() // no .git inside
	s := New(repo, nil, &fakeCopier{}, &fakeGit{}, nil, nil, logging.Nop{}, false)
	res := s.syncRepo(context.Background(), config.Entry{Path: src, Type: config.EntryGitRepo})

	assert.Equal(t, FailedSync, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrSourceMissing)
}

func TestSyncRepoDryRun(t *testing.T) {
	repo := t.TempDir()
	src := newRepoSource(t)
	git := &fakeGit{liveRefs: refs("sha1 refs/heads/main")}

	s := New(repo, nil, &fakeCopier{}, git, nil, nil, logging.Nop{}, true)
	res := s.syncRepo(context.Background(), config.Entry{Path: src, Type: config.EntryGitRepo})

	assert.Equal(t, Synced, res.Outcome)
	assert.Empty(t, git.created)
}
