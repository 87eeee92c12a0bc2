package syncer

import (
	"errors"

	"github.com/xzer/workbackup/internal/config"
)

// Outcome is the per-entry result of a run.
type Outcome int

const (
	Synced Outcome = iota
	Unchanged
	FailedPrecondition
	FailedSync
)

func (o Outcome) String() string {
	switch o {
	case Synced:
		return "synced"
	case Unchanged:
		return "unchanged"
	case FailedPrecondition:
		return "failed-precondition"
	default:
		return "failed-sync"
	}
}

// Failure taxonomy. Each wraps into a Result error so callers can branch
// with errors.Is.
var (
	ErrSourceMissing     = errors.New("source not found")
	ErrPreparationFailed = errors.New("preparation command failed")
	ErrCopyFailed        = errors.New("copy failed")
	ErrCaptureFailed     = errors.New("capture failed")
)

// Result pairs an entry with its run outcome.
type Result struct {
	Entry   config.Entry
	Outcome Outcome
	Err     error
}
