package syncer

import (
	"context"
	"fmt"
	"time"
)

// PrepTimeout is the wall-clock budget for one preparation command. A
// command still running past it is abandoned and its entry treated as
// failed for this run.
const PrepTimeout = 60 * time.Second

// RunPreparations executes each entry's preparation command, if any, and
// returns the source paths whose command failed or timed out. Those
// entries are excluded from sync but stay covered for reconciliation.
func (s *Syncer) RunPreparations(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	for _, entry := range s.entries {
		cmd := entry.PreSyncCommand
		if cmd == "" {
			continue
		}
		if s.dryRun {
			s.log.Info("  [dry-run] would run pre-sync: %s", cmd)
			continue
		}

		s.log.Info("  running pre-sync for %s: %s", entry.Path, cmd)
		cmdCtx, cancel := context.WithTimeout(ctx, PrepTimeout)
		res, err := s.run.RunShell(cmdCtx, cmd)
		cancel()

		switch {
		case cmdCtx.Err() == context.DeadlineExceeded:
			s.log.Warn("pre-sync timed out for %s", entry.Path)
			failed[entry.Path] = fmt.Errorf("%w: timed out after %s", ErrPreparationFailed, PrepTimeout)
		case err != nil:
			s.log.Warn("pre-sync could not start for %s: %v", entry.Path, err)
			failed[entry.Path] = fmt.Errorf("%w: %v", ErrPreparationFailed, err)
		case res.ExitCode != 0:
			s.log.Warn("pre-sync failed (exit %d) for %s", res.ExitCode, entry.Path)
			failed[entry.Path] = fmt.Errorf("%w: exit %d", ErrPreparationFailed, res.ExitCode)
		}
	}
	return failed
}
