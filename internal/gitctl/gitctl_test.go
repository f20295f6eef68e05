package gitctl_test

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sandipndev/vex/internal/gitctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, exec.Command("sh", "-c", "echo hi > "+filepath.Join(dir, "f.txt")).Run())
	run("add", "f.txt")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestAddThenRemoveWorktree(t *testing.T) {
	repo := initRepo(t)
	c := gitctl.New()

	require.NoError(t, exec.Command("git", "-C", repo, "branch", "feature").Run())

	worktreeDir := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, c.AddWorktree(repo, worktreeDir, "feature"))
	assert.True(t, c.BranchExists(repo, "feature"))

	c.RemoveWorktree(repo, worktreeDir, "feature")
	assert.False(t, c.BranchExists(repo, "feature"))
}

func TestAddWorktreeRejectsMissingBranch(t *testing.T) {
	repo := initRepo(t)
	c := gitctl.New()

	worktreeDir := filepath.Join(t.TempDir(), "wt")
	err := c.AddWorktree(repo, worktreeDir, "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
	assert.NoDirExists(t, worktreeDir)
}

func TestDefaultBranchFallsBackToMainWithoutRemote(t *testing.T) {
	repo := initRepo(t)
	c := gitctl.New()
	branch, err := c.DefaultBranch(repo)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}
