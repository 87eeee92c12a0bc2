package syncer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/gitcap"
	"github.com/xzer/workbackup/internal/mirror"
)

// repoCapability is the slice of the versioned-snapshot capability the
// change detector needs.
type repoCapability interface {
	Refs(ctx context.Context, repo string) (gitcap.RefSet, error)
	BundleRefs(ctx context.Context, bundlePath string) (gitcap.RefSet, error)
	CreateBundle(ctx context.Context, repo, dst string) error
	VerifyBundle(ctx context.Context, repo, bundlePath string) error
}

// syncRepo captures a git-repo entry as a bundle, skipping the capture
// when the live ref set matches the one embedded in the previous bundle.
// An unreadable ref set on either side means "assume changed": a corrupt
// or half-written bundle is never trusted as the comparison baseline.
func (s *Syncer) syncRepo(ctx context.Context, entry config.Entry) Result {
	src := entry.Path
	dst := mirror.MapBundle(s.repoRoot, src)

	info, err := s.fs.Stat(src)
	if err != nil || !info.Dir {
		s.log.Warn("  git repo not found: %s", src)
		return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: %s", ErrSourceMissing, src)}
	}
	if gi, err := s.fs.Stat(filepath.Join(src, ".git")); err != nil || !gi.Dir {
		s.log.Warn("  not a git repo: %s", src)
		return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: not a git repo", ErrSourceMissing)}
	}

	var liveRefs, lastRefs gitcap.RefSet
	if refs, err := s.git.Refs(ctx, src); err == nil {
		liveRefs = refs
	} else {
		s.log.Debug("  cannot read live refs for %s: %v", src, err)
	}
	if s.fs.Exists(dst) {
		if refs, err := s.git.BundleRefs(ctx, dst); err == nil {
			lastRefs = refs
		} else {
			s.log.Debug("  cannot read bundle refs for %s: %v", dst, err)
		}
	}

	if liveRefs != nil && lastRefs != nil && liveRefs.Equal(lastRefs) {
		s.log.Info("  unchanged: %s", src)
		return Result{Entry: entry, Outcome: Unchanged}
	}

	if s.dryRun {
		s.log.Info("  [dry-run] would bundle git repo: %s -> %s", src, dst)
		return Result{Entry: entry, Outcome: Synced}
	}

	if err := s.fs.MkdirAll(filepath.Dir(dst)); err != nil {
		return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: %v", ErrCaptureFailed, err)}
	}

	s.log.Info("  bundling %s -> %s", src, dst)
	if err := s.git.CreateBundle(ctx, src, dst); err != nil {
		s.log.Warn("  bundle failed for %s: %v", src, err)
		return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: %v", ErrCaptureFailed, err)}
	}

	// A bundle that fails verification must not shadow the previous good
	// capture on the next comparison.
	if err := s.git.VerifyBundle(ctx, src, dst); err != nil {
		s.log.Warn("  bundle verify failed for %s: %v", src, err)
		if rmErr := s.fs.Remove(dst); rmErr != nil {
			s.log.Error("  cannot remove bad bundle %s: %v", dst, rmErr)
		}
		return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: %v", ErrCaptureFailed, err)}
	}
	s.log.Info("  verified OK: %s", src)

	return Result{Entry: entry, Outcome: Synced}
}
