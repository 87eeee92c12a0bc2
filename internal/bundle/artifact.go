// Package bundle models the dated whole-mirror snapshot artifacts in the
// bundle directory and decides, once per run, whether a new one must be
// produced.
package bundle

import (
	"regexp"
	"sort"
	"time"

	"github.com/xzer/workbackup/internal/fs"
)

// Status tags an artifact as a real capture or a zero-content skip marker
// recorded when a run found nothing new to bundle.
type Status int

const (
	Captured Status = iota
	Skipped
)

func (s Status) extension() string {
	if s == Skipped {
		return ".skipped"
	}
	return ".bundle"
}

const namePrefix = "work-backup-"

var nameRE = regexp.MustCompile(`^work-backup-(\d{4}-\d{2}-\d{2})\.(bundle|skipped)$`)

// Artifact is one dated snapshot artifact, identified by calendar date and
// status. The filename is fully determined by both.
type Artifact struct {
	Date   time.Time
	Status Status
}

// FileName renders the deterministic artifact name, e.g.
// work-backup-2024-01-31.bundle.
func (a Artifact) FileName() string {
	return namePrefix + a.Date.Format("2006-01-02") + a.Status.extension()
}

// Parse maps a filename back to an artifact. Names that do not match the
// expected pattern are rejected; scheduler and retention ignore them.
func Parse(name string) (Artifact, bool) {
	m := nameRE.FindStringSubmatch(name)
	if m == nil {
		return Artifact{}, false
	}
	d, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return Artifact{}, false
	}
	st := Captured
	if m[2] == "skipped" {
		st = Skipped
	}
	return Artifact{Date: d, Status: st}, true
}

// List scans dir for artifacts, ignoring anything that does not parse.
// The result is sorted by date, captures before markers on equal dates.
func List(filesystem fs.FS, dir string) ([]Artifact, error) {
	entries, err := filesystem.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Artifact
	for _, e := range entries {
		if e.Dir {
			continue
		}
		if a, ok := Parse(e.Name); ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}
