// Package run orchestrates one backup run end to end: preparation, sync,
// mirror reconciliation, auto-commit, and (in full mode) the whole-mirror
// bundle decision with retention.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/execx"
	"github.com/xzer/workbackup/internal/fs"
	"github.com/xzer/workbackup/internal/gitcap"
	"github.com/xzer/workbackup/internal/logging"
	"github.com/xzer/workbackup/internal/mirror"
	"github.com/xzer/workbackup/internal/notify"
	"github.com/xzer/workbackup/internal/rsync"
	"github.com/xzer/workbackup/internal/syncer"
)

// Request asks the run loop for one run. Commit-only runs skip the
// whole-mirror bundle decision entirely.
type Request struct {
	CommitOnly bool
	Reason     string
}

// Overall is the whole-run outcome in full mode.
type Overall int

const (
	CommitOnlyRun Overall = iota
	SnapshotProduced
	SnapshotSkipped
	SnapshotForced
)

func (o Overall) String() string {
	switch o {
	case SnapshotProduced:
		return "snapshot-produced"
	case SnapshotForced:
		return "snapshot-forced"
	case SnapshotSkipped:
		return "snapshot-skipped"
	default:
		return "commit-only"
	}
}

// Summary reports what one run did.
type Summary struct {
	Results   []syncer.Result
	Removed   []string
	Overall   Overall
	Bundle    string // produced bundle filename, if any
	Committed bool
}

// gitAPI is the slice of the versioned-snapshot capability a run needs.
type gitAPI interface {
	Head(ctx context.Context, repo string) (string, error)
	Refs(ctx context.Context, repo string) (gitcap.RefSet, error)
	BundleRefs(ctx context.Context, bundlePath string) (gitcap.RefSet, error)
	CreateBundle(ctx context.Context, repo, dst string) error
	VerifyBundle(ctx context.Context, repo, bundlePath string) error
	AddAll(ctx context.Context, repo string) error
	HasStagedChanges(ctx context.Context, repo string) (bool, error)
	Commit(ctx context.Context, repo, message string) error
	StatusShort(ctx context.Context, repo string) ([]string, error)
}

// Runner executes backup runs against one backup repo.
type Runner struct {
	repoRoot string
	cfg      *config.Config
	git      gitAPI
	fs       fs.FS
	exec     execx.Runner
	copier   rsync.Copier
	notifier notify.Notifier
	log      logging.Logger
	dryRun   bool

	// now is swappable in tests.
	now func() time.Time
}

func New(repoRoot string, cfg *config.Config, log logging.Logger, notifier notify.Notifier, dryRun bool) *Runner {
	filesystem := fs.New()
	runner := execx.ExecRunner{}
	return &Runner{
		repoRoot: repoRoot,
		cfg:      cfg,
		git:      gitcap.New(runner, log),
		fs:       filesystem,
		exec:     runner,
		copier:   rsync.New(runner, log),
		notifier: notifier,
		log:      log,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// Run executes one run. Per-entry failures are reflected in the summary
// and never abort the run; the returned error is reserved for fatal
// conditions (whole-mirror bundle failure, commit failure).
func (r *Runner) Run(ctx context.Context, req Request) (Summary, error) {
	var sum Summary

	s := syncer.New(r.repoRoot, r.cfg.Entries, r.copier, r.git, r.fs, r.exec, r.log, r.dryRun)

	r.log.Info("--- pre-sync commands ---")
	prepFailed := s.RunPreparations(ctx)
	if len(prepFailed) > 0 {
		r.log.Info("  %d entry(ies) failed pre-sync, will be skipped", len(prepFailed))
	}

	r.log.Info("--- syncing files ---")
	sum.Results = s.SyncAll(ctx, prepFailed)

	r.log.Info("--- cleanup ---")
	removed, err := r.reconcile()
	sum.Removed = removed
	if err != nil {
		r.log.Error("cleanup failed: %v", err)
	}
	if len(removed) > 0 {
		r.log.Info("  removed %d item(s)", len(removed))
	} else {
		r.log.Info("  nothing to clean up")
	}

	r.log.Info("--- git commit ---")
	committed, err := r.autoCommit(ctx)
	if err != nil {
		return sum, err
	}
	sum.Committed = committed

	if req.CommitOnly {
		r.log.Info("done (commit-only)")
		return sum, nil
	}

	return r.snapshotPhase(ctx, sum)
}

// reconcile prunes the mirror against the coverage set of every
// configured entry. Entries that failed this run stay in the set, so a
// transient failure never triggers a destructive prune.
func (r *Runner) reconcile() ([]string, error) {
	cov := mirror.NewCoverageSet()
	for _, entry := range r.cfg.Entries {
		if entry.Type == config.EntryGitRepo {
			cov.Add(mirror.MapBundle(r.repoRoot, entry.Path))
		} else {
			cov.Add(mirror.Map(r.repoRoot, entry.Path))
		}
	}
	rec := mirror.NewReconciler(r.fs, r.log, r.dryRun)
	return rec.Reconcile(r.repoRoot, cov)
}

// autoCommit stages everything and commits iff there are staged changes.
func (r *Runner) autoCommit(ctx context.Context) (bool, error) {
	if r.dryRun {
		lines, err := r.git.StatusShort(ctx, r.repoRoot)
		if err != nil {
			return false, fmt.Errorf("git status: %w", err)
		}
		if len(lines) == 0 {
			r.log.Info("  [dry-run] no changes to commit")
			return false, nil
		}
		r.log.Info("  [dry-run] would commit changes:")
		for _, line := range lines {
			r.log.Info("    %s", line)
		}
		return false, nil
	}

	if err := r.git.AddAll(ctx, r.repoRoot); err != nil {
		return false, fmt.Errorf("git add: %w", err)
	}
	staged, err := r.git.HasStagedChanges(ctx, r.repoRoot)
	if err != nil {
		return false, fmt.Errorf("git diff: %w", err)
	}
	if !staged {
		r.log.Info("  no changes to commit")
		return false, nil
	}

	msg := "backup: sync " + r.now().Format("2006-01-02 15:04:05")
	if err := r.git.Commit(ctx, r.repoRoot, msg); err != nil {
		return false, fmt.Errorf("git commit: %w", err)
	}
	r.log.Info("  committed: %s", msg)
	return true, nil
}
