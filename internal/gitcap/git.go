package gitcap

import (
	"context"
	"fmt"
	"strings"

	"github.com/xzer/workbackup/internal/execx"
	"github.com/xzer/workbackup/internal/logging"
)

// Git invokes the git CLI through an execx.Runner.
type Git struct {
	run execx.Runner
	log logging.Logger
}

func New(runner execx.Runner, log logging.Logger) *Git {
	if runner == nil {
		runner = execx.ExecRunner{}
	}
	return &Git{run: runner, log: log}
}

func (g *Git) git(ctx context.Context, args ...string) (execx.Result, error) {
	g.log.Debug("  $ git %s", strings.Join(args, " "))
	res, err := g.run.Run(ctx, "git", args...)
	if err != nil {
		return res, err
	}
	for _, line := range outputLines(res.Stderr) {
		g.log.Debug("    stderr: %s", line)
	}
	return res, nil
}

// Head returns the commit id of HEAD in repo.
func (g *Git) Head(ctx context.Context, repo string) (string, error) {
	res, err := g.git(ctx, "-C", repo, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("rev-parse: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("rev-parse failed: %s", strings.TrimSpace(string(res.Stderr)))
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// Refs returns the full ref set of repo, HEAD included.
func (g *Git) Refs(ctx context.Context, repo string) (RefSet, error) {
	res, err := g.git(ctx, "-C", repo, "show-ref", "--head")
	if err != nil {
		return nil, fmt.Errorf("show-ref: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("show-ref failed: %s", strings.TrimSpace(string(res.Stderr)))
	}
	return ParseRefSet(string(res.Stdout)), nil
}

// BundleRefs returns the ref set embedded in a bundle file.
func (g *Git) BundleRefs(ctx context.Context, bundlePath string) (RefSet, error) {
	res, err := g.git(ctx, "bundle", "list-heads", bundlePath)
	if err != nil {
		return nil, fmt.Errorf("bundle list-heads: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("bundle list-heads failed: %s", strings.TrimSpace(string(res.Stderr)))
	}
	return ParseRefSet(string(res.Stdout)), nil
}

// CreateBundle writes a bundle of all refs in repo to dst.
func (g *Git) CreateBundle(ctx context.Context, repo, dst string) error {
	res, err := g.git(ctx, "-C", repo, "bundle", "create", dst, "--all")
	if err != nil {
		return fmt.Errorf("bundle create: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("bundle create failed: %s", strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// VerifyBundle checks bundle integrity against repo.
func (g *Git) VerifyBundle(ctx context.Context, repo, bundlePath string) error {
	res, err := g.git(ctx, "-C", repo, "bundle", "verify", bundlePath)
	if err != nil {
		return fmt.Errorf("bundle verify: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("bundle verify failed: %s", strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// AddAll stages every change in repo.
func (g *Git) AddAll(ctx context.Context, repo string) error {
	res, err := g.git(ctx, "-C", repo, "add", "-A")
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("add failed: %s", strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (g *Git) HasStagedChanges(ctx context.Context, repo string) (bool, error) {
	res, err := g.git(ctx, "-C", repo, "diff", "--cached", "--quiet")
	if err != nil {
		return false, fmt.Errorf("diff: %w", err)
	}
	return res.ExitCode != 0, nil
}

// Commit records the staged changes with the given message.
func (g *Git) Commit(ctx context.Context, repo, message string) error {
	res, err := g.git(ctx, "-C", repo, "commit", "-m", message)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("commit failed: %s", strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// StatusShort returns the porcelain short status lines, used by dry-run
// reporting.
func (g *Git) StatusShort(ctx context.Context, repo string) ([]string, error) {
	res, err := g.git(ctx, "-C", repo, "status", "--short")
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return outputLines(res.Stdout), nil
}

func outputLines(b []byte) []string {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
