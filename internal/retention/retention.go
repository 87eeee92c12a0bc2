// Package retention implements the time-tiered policy over the dated
// bundle artifacts: keep every capture from the last month, one per ISO
// week up to three months, one per month up to a year, nothing older.
package retention

import (
	"path/filepath"
	"time"

	"github.com/xzer/workbackup/internal/bundle"
	"github.com/xzer/workbackup/internal/fs"
	"github.com/xzer/workbackup/internal/logging"
)

// Tier classifies an artifact by age. Derived, never stored.
type Tier int

const (
	Daily Tier = iota
	Weekly
	Monthly
	Expired
)

// TierOf classifies by whole days between the artifact date and today.
func TierOf(today, date time.Time) Tier {
	age := int(today.Sub(date).Hours() / 24)
	switch {
	case age <= 30:
		return Daily
	case age <= 89:
		return Weekly
	case age <= 364:
		return Monthly
	default:
		return Expired
	}
}

// Policy prunes the bundle directory. Skip markers are not subject to
// tiering and are never touched here.
type Policy struct {
	fs     fs.FS
	log    logging.Logger
	dryRun bool
}

func New(filesystem fs.FS, log logging.Logger, dryRun bool) *Policy {
	if filesystem == nil {
		filesystem = fs.New()
	}
	return &Policy{fs: filesystem, log: log, dryRun: dryRun}
}

// Plan computes the retain set for the captured artifacts as of today.
// Daily-tier artifacts are all kept; Weekly and Monthly tiers keep the
// latest-dated artifact per bucket; Expired artifacts are never kept.
// Applying the plan to its own output is a no-op.
func Plan(artifacts []bundle.Artifact, today time.Time) (keep, drop []bundle.Artifact) {
	type bucket struct {
		year int
		sub  int // ISO week or month number
		tier Tier
	}
	best := make(map[bucket]bundle.Artifact)

	for _, a := range artifacts {
		if a.Status != bundle.Captured {
			continue
		}
		switch TierOf(today, a.Date) {
		case Daily:
			keep = append(keep, a)
		case Weekly:
			y, w := a.Date.ISOWeek()
			key := bucket{year: y, sub: w, tier: Weekly}
			if cur, ok := best[key]; !ok || a.Date.After(cur.Date) {
				best[key] = a
			}
		case Monthly:
			key := bucket{year: a.Date.Year(), sub: int(a.Date.Month()), tier: Monthly}
			if cur, ok := best[key]; !ok || a.Date.After(cur.Date) {
				best[key] = a
			}
		case Expired:
			// fall through to drop
		}
	}

	kept := make(map[bundle.Artifact]struct{}, len(keep)+len(best))
	for _, a := range keep {
		kept[a] = struct{}{}
	}
	for _, a := range best {
		keep = append(keep, a)
		kept[a] = struct{}{}
	}

	for _, a := range artifacts {
		if a.Status != bundle.Captured {
			continue
		}
		if _, ok := kept[a]; !ok {
			drop = append(drop, a)
		}
	}
	return keep, drop
}

// Apply lists the bundle directory, computes the plan for today, and
// deletes everything outside the retain set. A failed deletion is logged
// and the loop continues; retention never aborts the run.
func (p *Policy) Apply(bundleDir string, today time.Time) (kept, deleted int, err error) {
	artifacts, err := bundle.List(p.fs, bundleDir)
	if err != nil {
		return 0, 0, err
	}
	if len(artifacts) == 0 {
		p.log.Info("  no bundles found")
		return 0, 0, nil
	}

	keep, drop := Plan(artifacts, today)
	if len(drop) == 0 {
		p.log.Info("  all %d bundle(s) retained", len(keep))
		return len(keep), 0, nil
	}

	for _, a := range drop {
		name := a.FileName()
		if p.dryRun {
			p.log.Info("  [dry-run] would delete: %s", name)
			deleted++
			continue
		}
		if err := p.fs.Remove(filepath.Join(bundleDir, name)); err != nil {
			p.log.Error("  cannot delete %s: %v", name, err)
			continue
		}
		p.log.Info("  deleted: %s", name)
		deleted++
	}

	p.log.Info("  kept %d, deleted %d", len(keep), deleted)
	return len(keep), deleted, nil
}
