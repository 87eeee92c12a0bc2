// Package rsync is the bulk copy capability: a thin wrapper over the rsync
// CLI. The engine treats it as a black box that either mirrors a source to
// a destination or fails.
package rsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/xzer/workbackup/internal/execx"
	"github.com/xzer/workbackup/internal/logging"
)

// Copier mirrors a source path to a destination path, honoring ignore
// patterns for directory sources.
type Copier interface {
	Copy(ctx context.Context, src, dst string, srcIsDir bool, ignore []string) error
}

// CLI runs the rsync binary.
type CLI struct {
	run execx.Runner
	log logging.Logger
}

func New(runner execx.Runner, log logging.Logger) *CLI {
	if runner == nil {
		runner = execx.ExecRunner{}
	}
	return &CLI{run: runner, log: log}
}

// Copy invokes rsync. Directories mirror with -a --delete and exclude
// patterns; single files copy as-is. The caller is responsible for the
// destination's parent directory existing.
func (c *CLI) Copy(ctx context.Context, src, dst string, srcIsDir bool, ignore []string) error {
	args := Args(src, dst, srcIsDir, ignore)
	c.log.Debug("  $ rsync %s", strings.Join(args, " "))

	res, err := c.run.Run(ctx, "rsync", args...)
	if err != nil {
		return fmt.Errorf("rsync: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("rsync exit %d: %s", res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// Args builds the rsync argument list. Split out for testing.
func Args(src, dst string, srcIsDir bool, ignore []string) []string {
	if !srcIsDir {
		return []string{src, dst}
	}
	args := []string{"-a", "--delete"}
	for _, pattern := range ignore {
		args = append(args, "--exclude", pattern)
	}
	args = append(args,
		strings.TrimRight(src, "/")+"/",
		strings.TrimRight(dst, "/")+"/",
	)
	return args
}
