// Package gitcap wraps the git CLI as the versioned-snapshot capability:
// head and ref inspection, auto-commit of the backup repo, and bundle
// create/verify/list-heads. The engine never looks inside git's storage.
package gitcap

import (
	"strings"
)

// Ref is one (object id, ref name) pair.
type Ref struct {
	ObjectID string
	Name     string
}

// RefSet describes the head state of a repository or of a bundle captured
// from it. Two RefSets are equal iff they hold the same pairs.
type RefSet map[Ref]struct{}

// ParseRefSet parses "sha ref" lines, as printed by `git show-ref --head`
// and `git bundle list-heads`. Malformed lines are skipped.
func ParseRefSet(output string) RefSet {
	rs := make(RefSet)
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			continue
		}
		rs[Ref{ObjectID: fields[0], Name: strings.TrimSpace(fields[1])}] = struct{}{}
	}
	return rs
}

// Equal reports set equality.
func (rs RefSet) Equal(other RefSet) bool {
	if len(rs) != len(other) {
		return false
	}
	for ref := range rs {
		if _, ok := other[ref]; !ok {
			return false
		}
	}
	return true
}

// Head returns the object id recorded for HEAD, if present.
func (rs RefSet) Head() (string, bool) {
	for ref := range rs {
		if ref.Name == "HEAD" {
			return ref.ObjectID, true
		}
	}
	return "", false
}
