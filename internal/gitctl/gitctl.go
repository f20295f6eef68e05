// Package gitctl wraps the git(1) CLI for the worktree lifecycle a
// workstream needs: fetching, resolving the default branch, and adding
// or removing a worktree. Grounded on project.go's ensureMainCheckout,
// pullMain, createWorktree, and removeWorktree — the same exec.Command
// plus CombinedOutput idiom, generalized from a single fixed "main
// clone" to an arbitrary registered repository.
package gitctl

import (
	"fmt"
	"os/exec"
	"strings"
)

// Controller runs git commands rooted at a given repository path.
type Controller struct{}

// New returns a Controller.
func New() *Controller {
	return &Controller{}
}

func run(dir string, args ...string) (string, error) {
	full := append([]string{"-C", dir}, args...)
	cmd := exec.Command("git", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("gitctl: git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Fetch runs "git fetch" in repoPath. Failures are returned, not
// swallowed — unlike pullMain's best-effort stance, workstream creation
// treats an explicit fetch request as something the caller asked for and
// expects to actually happen.
func (c *Controller) Fetch(repoPath string) error {
	_, err := run(repoPath, "fetch")
	return err
}

// DefaultBranch resolves the remote's default branch (the one HEAD
// points to), falling back to "main" if the remote has no configured
// HEAD, mirroring a plain "git clone" with no explicit branch.
func (c *Controller) DefaultBranch(repoPath string) (string, error) {
	out, err := run(repoPath, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil {
		return "main", nil
	}
	ref := strings.TrimSpace(out)
	const prefix = "refs/remotes/origin/"
	if strings.HasPrefix(ref, prefix) {
		return strings.TrimPrefix(ref, prefix), nil
	}
	return "main", nil
}

// BranchExists reports whether branch already exists locally.
func (c *Controller) BranchExists(repoPath, branch string) bool {
	_, err := run(repoPath, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// AddWorktree creates a worktree at worktreeDir checked out on branch.
// branch must already exist — workstream creation requires an existing
// branch (spec: "Create requires branch to exist"), so this validates
// with BranchExists ("git rev-parse --verify refs/heads/<branch>") and
// rejects before ever touching "worktree
// add", matching the canonical server's handle_workstream_create.
func (c *Controller) AddWorktree(repoPath, worktreeDir, branch string) error {
	if !c.BranchExists(repoPath, branch) {
		return fmt.Errorf("gitctl: branch %q not found in %s", branch, repoPath)
	}
	_, err := run(repoPath, "worktree", "add", worktreeDir, branch)
	return err
}

// RemoveWorktree removes worktreeDir, forcing past a dirty working tree,
// and deletes branch. Both steps are best-effort: a workstream delete
// must proceed even if the worktree was already removed by hand.
func (c *Controller) RemoveWorktree(repoPath, worktreeDir, branch string) {
	_, _ = run(repoPath, "worktree", "remove", "--force", worktreeDir)
	_, _ = run(repoPath, "branch", "-D", branch)
}
