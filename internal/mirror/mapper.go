// Package mirror maintains the __root__ mirror tree inside the backup repo:
// mapping configured source paths to their mirrored destinations, answering
// coverage queries over the configured set, and pruning everything the
// configuration no longer covers.
package mirror

import (
	"path/filepath"
	"strings"
)

// RootSegment is the directory under the backup repo that mirrors the
// filesystem root.
const RootSegment = "__root__"

// BundleSuffix is appended to the destination of git-repo entries, whose
// capture is a single bundle file rather than a mirrored tree.
const BundleSuffix = ".bundle"

// Map computes the mirrored destination of a source path:
//
//	/etc/hosts        -> <repo>/__root__/etc/hosts
//	/home/u/notes     -> <repo>/__root__/home/u/notes
//
// The leading separator is stripped so every absolute source lands under
// the same mirror root. Distinct non-overlapping sources therefore never
// collide, and the mapping is stable across runs. Empty input is a caller
// contract violation.
func Map(repoRoot, sourcePath string) string {
	return filepath.Join(repoRoot, RootSegment, strings.TrimLeft(sourcePath, "/"))
}

// MapBundle computes the destination for a git-repo entry.
func MapBundle(repoRoot, sourcePath string) string {
	return Map(repoRoot, sourcePath) + BundleSuffix
}
