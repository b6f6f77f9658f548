// Package gitsync keeps a working copy in step with its upstream branch.
// The same fetch/compare/stash/pull algorithm serves both the launcher's own
// working copy and the managed Frigate checkout.
package gitsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/camlaunch/internal/execx"
)

// Syncer synchronizes one working copy with one tracked remote branch.
type Syncer struct {
	runner execx.Runner
	dir    string
	branch string
}

// New creates a Syncer for the working copy at dir tracking origin/branch.
func New(runner execx.Runner, dir, branch string) *Syncer {
	return &Syncer{runner: runner, dir: dir, branch: branch}
}

// Result describes what one Sync pass did.
type Result struct {
	// SkipReason is non-empty when no pull was attempted (already current,
	// fetch unreachable, revision lookup failed).
	SkipReason string
	// Pulled is true when a pull completed.
	Pulled bool
	// PullErr is set when a pull was attempted and failed. The caller
	// continues on the pre-existing code; this is not fatal.
	PullErr error
	// From and To are the revisions before and after the pull.
	From, To string
	// Changed lists the repo-relative paths that differ between From and To.
	Changed []string
}

// IsRepo reports whether the directory is a git working copy.
func (s *Syncer) IsRepo(ctx context.Context) bool {
	err := s.runner.Run(ctx, execx.Cmd{
		Name: "git", Args: []string{"rev-parse", "--git-dir"}, Dir: s.dir,
	})
	return err == nil
}

// Sync fetches the tracked branch and pulls when the local and remote
// revisions are both known and differ. Uncommitted modifications are stashed
// first; a no-op stash is not an error. Every failure short of a usable
// working copy degrades to "keep running the code we have".
func (s *Syncer) Sync(ctx context.Context) *Result {
	if err := s.fetch(ctx); err != nil {
		return &Result{SkipReason: fmt.Sprintf("fetch failed (offline?): %v", err)}
	}

	local, err := s.localRev(ctx)
	if err != nil || local == "" {
		return &Result{SkipReason: "local revision lookup failed"}
	}
	remote, err := s.remoteRev(ctx)
	if err != nil || remote == "" {
		return &Result{SkipReason: "remote revision lookup failed"}
	}
	if local == remote {
		return &Result{SkipReason: "already up to date", From: local, To: remote}
	}

	// Stash local modifications out of the way. Nothing to stash is fine,
	// and a stash failure must not block the pull.
	_ = s.runner.Run(ctx, execx.Cmd{
		Name: "git", Args: []string{"stash", "push", "-m", "camlaunch-autostash"}, Dir: s.dir,
	})

	if err := s.runner.Run(ctx, execx.Cmd{
		Name: "git", Args: []string{"pull", "origin", s.branch}, Dir: s.dir,
	}); err != nil {
		return &Result{From: local, To: remote, PullErr: fmt.Errorf("pull failed: %w", err)}
	}

	changed, err := s.changedPaths(ctx, local, remote)
	if err != nil {
		// The pull succeeded; an unreadable diff only loses the
		// restart-detection signal.
		changed = nil
	}
	return &Result{Pulled: true, From: local, To: remote, Changed: changed}
}

func (s *Syncer) fetch(ctx context.Context) error {
	return s.runner.Run(ctx, execx.Cmd{
		Name: "git", Args: []string{"fetch", "origin", s.branch}, Dir: s.dir,
	})
}

func (s *Syncer) localRev(ctx context.Context) (string, error) {
	out, err := s.runner.Output(ctx, execx.Cmd{
		Name: "git", Args: []string{"rev-parse", "HEAD"}, Dir: s.dir,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *Syncer) remoteRev(ctx context.Context) (string, error) {
	out, err := s.runner.Output(ctx, execx.Cmd{
		Name: "git", Args: []string{"rev-parse", "origin/" + s.branch}, Dir: s.dir,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *Syncer) changedPaths(ctx context.Context, from, to string) ([]string, error) {
	out, err := s.runner.Output(ctx, execx.Cmd{
		Name: "git", Args: []string{"diff", "--name-only", from, to}, Dir: s.dir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", from, to, err)
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// Contains reports whether the changed set includes the given path.
func (r *Result) Contains(path string) bool {
	for _, p := range r.Changed {
		if p == path {
			return true
		}
	}
	return false
}
