// Package fs defines the filesystem abstraction used by workbackup.
// Engine components mutate the mirror tree and the bundle directory only
// through this interface, which keeps them testable and lets copy and
// rename retry on transient errors.
package fs

import (
	"context"
	"time"
)

type FileInfo struct {
	Path  string
	Size  int64
	MTime time.Time
	Inode uint64
	Dir   bool
}

// DirEntry is one child of a directory, with just what the reconciler
// needs to classify it.
type DirEntry struct {
	Name    string
	Dir     bool
	Symlink bool
}

type FS interface {
	Stat(path string) (FileInfo, error)
	Lstat(path string) (FileInfo, error)
	ReadDir(path string) ([]DirEntry, error)
	CopyFile(ctx context.Context, src, dst string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	MkdirAll(path string) error
	Remove(path string) error
	RemoveAll(path string) error
	WriteFile(path string, data []byte) error
	Exists(path string) bool
}
