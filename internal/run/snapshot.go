package run

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xzer/workbackup/internal/bundle"
	"github.com/xzer/workbackup/internal/retention"
)

// snapshotPhase runs the whole-mirror bundle decision and, when a bundle
// is produced, retention over the bundle directory.
func (r *Runner) snapshotPhase(ctx context.Context, sum Summary) (Summary, error) {
	sched := bundle.NewScheduler(r.git, r.fs, r.log, r.dryRun)
	today := dateOf(r.now())

	decision := sched.Decide(ctx, r.repoRoot, r.cfg.BundleDir)
	switch decision {
	case bundle.Skip:
		sum.Overall = SnapshotSkipped
		r.log.Info("--- no changes since last bundle ---")
		if r.cfg.BundleDir != "" {
			if err := sched.RecordSkip(r.cfg.BundleDir, today); err != nil {
				r.log.Error("skip marker failed: %v", err)
			}
		}
		r.log.Info("done")
		if r.cfg.NotifyOnSuccess && !r.dryRun {
			r.notifier.Notify("No changes since last bundle, skipped")
		}
		return sum, nil

	case bundle.ProduceForced:
		sum.Overall = SnapshotForced
	default:
		sum.Overall = SnapshotProduced
	}

	r.log.Info("--- bundle ---")
	name, err := r.produceBundle(ctx, sched, today)
	if err != nil {
		return sum, err
	}
	sum.Bundle = name

	if r.cfg.BundleDir != "" {
		r.log.Info("--- retention cleanup ---")
		policy := retention.New(r.fs, r.log, r.dryRun)
		if _, _, err := policy.Apply(r.cfg.BundleDir, today); err != nil {
			// Retention trouble is logged, never fatal.
			r.log.Error("retention failed: %v", err)
		}
	}

	r.log.Info("done")
	if r.cfg.NotifyOnSuccess && !r.dryRun {
		r.notifier.Notify("Bundle created: " + name)
	}
	return sum, nil
}

// produceBundle creates today's whole-mirror bundle inside the backup
// repo, verifies it, copies it into the bundle dir, and removes the
// in-repo copy (bundles are not meant to be committed). A verification
// failure discards the bundle and fails the run; the previous bundle in
// the bundle dir stays authoritative.
func (r *Runner) produceBundle(ctx context.Context, sched *bundle.Scheduler, today time.Time) (string, error) {
	artifact := bundle.Artifact{Date: today, Status: bundle.Captured}
	name := artifact.FileName()
	repoPath := filepath.Join(r.repoRoot, name)

	if r.dryRun {
		r.log.Info("  [dry-run] would create bundle: %s", repoPath)
		if r.cfg.BundleDir != "" {
			r.log.Info("  [dry-run] would copy to: %s", filepath.Join(r.cfg.BundleDir, name))
		}
		return name, nil
	}

	r.log.Info("  creating bundle: %s", repoPath)
	if err := r.git.CreateBundle(ctx, r.repoRoot, repoPath); err != nil {
		return "", fmt.Errorf("bundle creation failed: %w", err)
	}

	r.log.Info("  verifying bundle...")
	if err := r.git.VerifyBundle(ctx, r.repoRoot, repoPath); err != nil {
		r.log.Error("bundle verification failed, keeping previous bundle: %v", err)
		if rmErr := r.fs.Remove(repoPath); rmErr != nil {
			r.log.Error("cannot remove bad bundle: %v", rmErr)
		}
		return "", fmt.Errorf("bundle verification failed: %w", err)
	}
	r.log.Info("  bundle verified OK")

	if r.cfg.BundleDir != "" {
		if err := r.fs.MkdirAll(r.cfg.BundleDir); err != nil {
			return "", fmt.Errorf("creating bundle dir: %w", err)
		}
		// Stage through a partial file so the destination name only ever
		// holds a complete bundle, even if the copy dies midway.
		dest := filepath.Join(r.cfg.BundleDir, name)
		partial := dest + ".partial"
		if err := r.fs.CopyFile(ctx, repoPath, partial); err != nil {
			return "", fmt.Errorf("copying bundle: %w", err)
		}
		if err := r.fs.Rename(ctx, partial, dest); err != nil {
			if rmErr := r.fs.Remove(partial); rmErr != nil {
				r.log.Warn("cannot remove partial bundle: %v", rmErr)
			}
			return "", fmt.Errorf("placing bundle: %w", err)
		}
		r.log.Info("  copied to: %s", dest)
		sched.DropCounterpart(r.cfg.BundleDir, today, bundle.Captured)
	}

	if err := r.fs.Remove(repoPath); err != nil {
		r.log.Warn("cannot remove in-repo bundle: %v", err)
	}
	return name, nil
}

// dateOf truncates to a calendar date in UTC, matching artifact dates
// parsed from filenames.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
