package mirror

import (
	"path/filepath"
	"strings"
)

// CoverageSet holds the destination paths implied by the current
// configuration and answers the two containment queries the reconciler
// needs. Paths are compared as cleaned absolute strings.
type CoverageSet struct {
	members map[string]struct{}
}

func NewCoverageSet(paths ...string) *CoverageSet {
	cs := &CoverageSet{members: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		cs.Add(p)
	}
	return cs
}

func (cs *CoverageSet) Add(path string) {
	cs.members[filepath.Clean(path)] = struct{}{}
}

func (cs *CoverageSet) Len() int {
	return len(cs.members)
}

// IsAncestorOfCovered reports whether some member lies strictly below
// path, i.e. whether path is a directory on the way from the mirror root
// to a destination. The reconciler recurses only into such directories.
func (cs *CoverageSet) IsAncestorOfCovered(path string) bool {
	prefix := filepath.Clean(path) + string(filepath.Separator)
	for m := range cs.members {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

// IsCovered reports whether path must be preserved: it is a destination
// itself, an ancestor of one, or lies inside one (destinations that are
// directories own their whole subtree).
func (cs *CoverageSet) IsCovered(path string) bool {
	clean := filepath.Clean(path)
	if _, ok := cs.members[clean]; ok {
		return true
	}
	if cs.IsAncestorOfCovered(clean) {
		return true
	}
	for m := range cs.members {
		if strings.HasPrefix(clean, m+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
