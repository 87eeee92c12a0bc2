// Package syncer runs the per-entry pipeline: preparation commands, bulk
// copy of plain entries into the mirror, and change-gated bundle capture
// of git-repo entries. A failing entry never stops the others.
package syncer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/execx"
	"github.com/xzer/workbackup/internal/fs"
	"github.com/xzer/workbackup/internal/logging"
	"github.com/xzer/workbackup/internal/mirror"
	"github.com/xzer/workbackup/internal/rsync"
)

// Syncer mirrors the configured entries into the backup repo.
type Syncer struct {
	repoRoot string
	entries  []config.Entry
	copier   rsync.Copier
	git      repoCapability
	fs       fs.FS
	run      execx.Runner
	log      logging.Logger
	dryRun   bool
}

func New(repoRoot string, entries []config.Entry, copier rsync.Copier, git repoCapability, filesystem fs.FS, runner execx.Runner, log logging.Logger, dryRun bool) *Syncer {
	if filesystem == nil {
		filesystem = fs.New()
	}
	if runner == nil {
		runner = execx.ExecRunner{}
	}
	return &Syncer{
		repoRoot: repoRoot,
		entries:  entries,
		copier:   copier,
		git:      git,
		fs:       filesystem,
		run:      runner,
		log:      log,
		dryRun:   dryRun,
	}
}

// SyncAll processes every entry, skipping those whose preparation failed,
// and returns one result per entry.
func (s *Syncer) SyncAll(ctx context.Context, prepFailed map[string]error) []Result {
	results := make([]Result, 0, len(s.entries))
	for _, entry := range s.entries {
		if err, ok := prepFailed[entry.Path]; ok {
			results = append(results, Result{Entry: entry, Outcome: FailedPrecondition, Err: err})
			continue
		}

		var res Result
		if entry.Type == config.EntryGitRepo {
			res = s.syncRepo(ctx, entry)
		} else {
			res = s.syncPlain(ctx, entry)
		}
		results = append(results, res)
	}
	return results
}

// syncPlain mirrors a file or directory entry through the bulk copy
// capability.
func (s *Syncer) syncPlain(ctx context.Context, entry config.Entry) Result {
	src := entry.Path
	dst := mirror.Map(s.repoRoot, src)

	info, err := s.fs.Stat(src)
	if err != nil {
		s.log.Warn("source not found: %s", src)
		return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: %s", ErrSourceMissing, src)}
	}

	if s.dryRun {
		s.log.Info("  [dry-run] would sync %s -> %s", src, dst)
		return Result{Entry: entry, Outcome: Synced}
	}

	if err := s.fs.MkdirAll(filepath.Dir(dst)); err != nil {
		return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: %v", ErrCopyFailed, err)}
	}
	if info.Dir {
		if err := s.fs.MkdirAll(dst); err != nil {
			return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: %v", ErrCopyFailed, err)}
		}
	}

	s.log.Info("  syncing %s -> %s", src, dst)
	if err := s.copier.Copy(ctx, src, dst, info.Dir, entry.Ignore); err != nil {
		s.log.Warn("copy failed for %s: %v", src, err)
		return Result{Entry: entry, Outcome: FailedSync, Err: fmt.Errorf("%w: %v", ErrCopyFailed, err)}
	}
	return Result{Entry: entry, Outcome: Synced}
}
