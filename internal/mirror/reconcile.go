package mirror

import (
	"fmt"
	"path/filepath"

	"github.com/xzer/workbackup/internal/fs"
	"github.com/xzer/workbackup/internal/logging"
)

// Reconciler deletes entries under the mirror root that no configured
// source covers. It never descends into a destination itself: the copy
// tool owns destination contents, the reconciler owns everything between
// the mirror root and the destinations.
type Reconciler struct {
	fs     fs.FS
	log    logging.Logger
	dryRun bool
}

func NewReconciler(filesystem fs.FS, log logging.Logger, dryRun bool) *Reconciler {
	if filesystem == nil {
		filesystem = fs.New()
	}
	return &Reconciler{fs: filesystem, log: log, dryRun: dryRun}
}

// Reconcile prunes the mirror tree under repoRoot/__root__ against the
// coverage set. It returns one record per removed top-level entry, not per
// file inside a removed directory. In dry-run mode nothing is deleted and
// the records describe what would have been removed.
//
// After a successful pass every path under the mirror root is a
// destination, an ancestor directory of one, or gone.
func (r *Reconciler) Reconcile(repoRoot string, cov *CoverageSet) ([]string, error) {
	rootDir := filepath.Join(repoRoot, RootSegment)
	root, err := r.fs.Lstat(rootDir)
	if err != nil {
		return nil, nil
	}
	// A symlinked root reports !Dir here; pruning through it would delete
	// files outside the mirror.
	if !root.Dir {
		r.log.Warn("mirror root %s is not a directory, skipping reconciliation", rootDir)
		return nil, nil
	}

	var removed []string
	if err := r.reconcileDir(rootDir, cov, &removed); err != nil {
		return removed, err
	}
	return removed, nil
}

func (r *Reconciler) reconcileDir(dir string, cov *CoverageSet, removed *[]string) error {
	entries, err := r.fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading mirror dir %s: %w", dir, err)
	}

	for _, e := range entries {
		full := filepath.Join(dir, e.Name)

		if cov.IsCovered(full) {
			// Recurse only into plain directories that merely sit on the
			// way to a destination. An exact destination is owned by the
			// copy tool; symlinks are never traversed as directories.
			if e.Dir && !e.Symlink && cov.IsAncestorOfCovered(full) {
				if err := r.reconcileDir(full, cov, removed); err != nil {
					return err
				}
			}
			continue
		}

		if r.dryRun {
			r.log.Info("  [dry-run] would remove: %s", full)
			*removed = append(*removed, full)
			continue
		}

		r.log.Info("  removing: %s", full)
		if err := r.remove(full, e); err != nil {
			return fmt.Errorf("removing %s: %w", full, err)
		}
		*removed = append(*removed, full)
	}
	return nil
}

func (r *Reconciler) remove(path string, e fs.DirEntry) error {
	if e.Dir && !e.Symlink {
		return r.fs.RemoveAll(path)
	}
	return r.fs.Remove(path)
}
