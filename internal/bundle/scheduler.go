package bundle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xzer/workbackup/internal/fs"
	"github.com/xzer/workbackup/internal/gitcap"
	"github.com/xzer/workbackup/internal/logging"
)

// ForceAfterSkips bounds the staleness of the retained history: once this
// many consecutive runs produced only skip markers, the next run bundles
// regardless of change detection.
const ForceAfterSkips = 10

// Decision is the scheduler's verdict for the current run.
type Decision int

const (
	Skip Decision = iota
	Produce
	ProduceForced
)

func (d Decision) String() string {
	switch d {
	case Produce:
		return "snapshot-produced"
	case ProduceForced:
		return "snapshot-forced"
	default:
		return "snapshot-skipped"
	}
}

// headSource is the slice of the versioned-snapshot capability the
// scheduler needs.
type headSource interface {
	Head(ctx context.Context, repo string) (string, error)
	BundleRefs(ctx context.Context, bundlePath string) (gitcap.RefSet, error)
}

// Scheduler decides whether the whole-mirror bundle must be (re)produced.
type Scheduler struct {
	git    headSource
	fs     fs.FS
	log    logging.Logger
	dryRun bool
}

func NewScheduler(git headSource, filesystem fs.FS, log logging.Logger, dryRun bool) *Scheduler {
	if filesystem == nil {
		filesystem = fs.New()
	}
	return &Scheduler{git: git, fs: filesystem, log: log, dryRun: dryRun}
}

// Decide compares the backup repo's HEAD against the head embedded in the
// most recent captured artifact. Any failure to read either side degrades
// to "assume changed" and produces. When unchanged, the forced-production
// override fires iff the most recent ForceAfterSkips artifacts are all
// skip markers.
func (s *Scheduler) Decide(ctx context.Context, repo, bundleDir string) Decision {
	head, err := s.git.Head(ctx, repo)
	if err != nil {
		s.log.Warn("cannot read repo head, assuming changed: %v", err)
		return Produce
	}

	if bundleDir == "" || !s.fs.Exists(bundleDir) {
		return Produce
	}

	artifacts, err := List(s.fs, bundleDir)
	if err != nil {
		s.log.Warn("cannot list bundle dir, assuming changed: %v", err)
		return Produce
	}

	last, ok := lastCaptured(artifacts)
	if !ok {
		return Produce
	}

	refs, err := s.git.BundleRefs(ctx, filepath.Join(bundleDir, last.FileName()))
	if err != nil {
		s.log.Warn("cannot read last bundle heads, assuming changed: %v", err)
		return Produce
	}
	lastHead, ok := refs.Head()
	if !ok || lastHead != head {
		return Produce
	}

	if allRecentSkipped(artifacts) {
		s.log.Info("no new commits since last bundle, but last %d artifacts are skip markers, forcing bundle", ForceAfterSkips)
		return ProduceForced
	}
	return Skip
}

// RecordSkip writes the zero-content skip marker for day, overwriting an
// earlier same-date marker. A same-date capture is left alone: a marker
// never supersedes a real bundle.
func (s *Scheduler) RecordSkip(bundleDir string, day time.Time) error {
	a := Artifact{Date: day, Status: Skipped}
	if s.dryRun {
		s.log.Info("  [dry-run] would create skip marker: %s", a.FileName())
		return nil
	}
	if err := s.fs.MkdirAll(bundleDir); err != nil {
		return fmt.Errorf("creating bundle dir: %w", err)
	}
	if err := s.fs.WriteFile(filepath.Join(bundleDir, a.FileName()), nil); err != nil {
		return fmt.Errorf("writing skip marker: %w", err)
	}
	s.log.Info("  created skip marker: %s", a.FileName())
	return nil
}

// DropCounterpart removes the opposite-status artifact for day, keeping
// the one-artifact-per-date invariant when a later run on the same date
// flips the decision.
func (s *Scheduler) DropCounterpart(bundleDir string, day time.Time, produced Status) {
	other := Skipped
	if produced == Skipped {
		other = Captured
	}
	path := filepath.Join(bundleDir, Artifact{Date: day, Status: other}.FileName())
	if !s.fs.Exists(path) {
		return
	}
	if s.dryRun {
		s.log.Info("  [dry-run] would remove superseded artifact: %s", filepath.Base(path))
		return
	}
	if err := s.fs.Remove(path); err != nil {
		s.log.Warn("cannot remove superseded artifact %s: %v", path, err)
	}
}

func lastCaptured(artifacts []Artifact) (Artifact, bool) {
	for i := len(artifacts) - 1; i >= 0; i-- {
		if artifacts[i].Status == Captured {
			return artifacts[i], true
		}
	}
	return Artifact{}, false
}

// allRecentSkipped reports whether the ForceAfterSkips most recent
// artifacts exist and are all skip markers.
func allRecentSkipped(artifacts []Artifact) bool {
	if len(artifacts) < ForceAfterSkips {
		return false
	}
	for _, a := range artifacts[len(artifacts)-ForceAfterSkips:] {
		if a.Status != Skipped {
			return false
		}
	}
	return true
}
