// Package tmuxctl wraps the tmux(1) CLI: one session per workstream,
// one window per agent or shell hosted inside it. This wraps the binary
// the way grove wraps docker/git in its own process-control code:
// exec.Command, CombinedOutput, and a wrapped error on failure.
package tmuxctl

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Controller runs tmux commands against the server reachable from the
// daemon's environment.
type Controller struct {
	// Bin is the tmux executable name or path. Defaults to "tmux".
	Bin string
}

// New returns a Controller using the tmux binary found on PATH.
func New() *Controller {
	return &Controller{Bin: "tmux"}
}

func (c *Controller) bin() string {
	if c.Bin == "" {
		return "tmux"
	}
	return c.Bin
}

func (c *Controller) run(args ...string) (string, error) {
	cmd := exec.Command(c.bin(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmuxctl: %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// HasSession reports whether a session named name currently exists.
func (c *Controller) HasSession(name string) bool {
	cmd := exec.Command(c.bin(), "has-session", "-t", name)
	return cmd.Run() == nil
}

// NewSession creates a detached session named name rooted at dir, with an
// initial window named "shell" running the default shell.
func (c *Controller) NewSession(name, dir string) error {
	_, err := c.run("new-session", "-d", "-s", name, "-c", dir, "-n", "shell")
	return err
}

// KillSession destroys a session and every window inside it.
func (c *Controller) KillSession(name string) error {
	_, err := c.run("kill-session", "-t", name)
	return err
}

// NewWindow creates a window named windowName inside session, rooted at
// dir, running command (argv form — passed to tmux as the window's shell
// command). It returns the window's index within the session.
func (c *Controller) NewWindow(session, windowName, dir string, command []string) (int, error) {
	args := []string{"new-window", "-t", session, "-n", windowName, "-c", dir, "-P", "-F", "#{window_index}"}
	args = append(args, command...)
	out, err := c.run(args...)
	if err != nil {
		return 0, err
	}
	idx, parseErr := strconv.Atoi(strings.TrimSpace(out))
	if parseErr != nil {
		return 0, fmt.Errorf("tmuxctl: parse window index from %q: %w", out, parseErr)
	}
	return idx, nil
}

// KillWindow destroys a single window, identified as "session:index".
func (c *Controller) KillWindow(session string, index int) error {
	_, err := c.run("kill-window", "-t", target(session, index))
	return err
}

// HasWindow reports whether the given window still exists in session —
// used by the agent supervisor to detect that an agent process's window
// has disappeared and its status should transition to Exited.
func (c *Controller) HasWindow(session string, index int) bool {
	windows, err := c.ListWindows(session)
	if err != nil {
		return false
	}
	for _, w := range windows {
		if w == index {
			return true
		}
	}
	return false
}

// ListWindows returns the window indices currently present in session.
func (c *Controller) ListWindows(session string) ([]int, error) {
	out, err := c.run("list-windows", "-t", session, "-F", "#{window_index}")
	if err != nil {
		return nil, err
	}
	return parseIntLines(out), nil
}

// ListSessions returns the names of every session currently live on the
// tmux server. An empty result with no error means no server is running.
func (c *Controller) ListSessions() ([]string, error) {
	cmd := exec.Command(c.bin(), "list-sessions", "-F", "#{session_name}")
	out, err := cmd.CombinedOutput()
	if err != nil {
		// tmux exits non-zero with "no server running" when nothing is up;
		// that is an empty list, not a failure of this call.
		if strings.Contains(string(out), "no server running") {
			return nil, nil
		}
		return nil, fmt.Errorf("tmuxctl: list-sessions: %w: %s", err, strings.TrimSpace(string(out)))
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// SendKeys types literal text into a window followed by Enter, the same
// way a user's keystrokes would arrive.
func (c *Controller) SendKeys(session string, index int, keys string) error {
	_, err := c.run("send-keys", "-t", target(session, index), keys, "Enter")
	return err
}

// RenameWindow renames a window in place.
func (c *Controller) RenameWindow(session string, index int, name string) error {
	_, err := c.run("rename-window", "-t", target(session, index), name)
	return err
}

// DisplayMessage evaluates a tmux format string against a window and
// returns the result, used to probe pane state without attaching.
func (c *Controller) DisplayMessage(session string, index int, format string) (string, error) {
	out, err := c.run("display-message", "-t", target(session, index), "-p", format)
	return strings.TrimSpace(out), err
}

// CurrentWindowIndex reports the window index of the pane this process is
// running in, via the TMUX_PANE environment variable tmux sets for every
// pane. Used by vex-shell-host and by `vex agent spawn-in-place`, both of
// which run as the foreground process of a window whose own index they
// otherwise have no way to learn.
func CurrentWindowIndex() (int, error) {
	pane := os.Getenv("TMUX_PANE")
	if pane == "" {
		return 0, fmt.Errorf("tmuxctl: TMUX_PANE not set; must run inside a tmux window")
	}
	out, err := exec.Command("tmux", "display-message", "-t", pane, "-p", "#{window_index}").CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("tmuxctl: display-message: %w: %s", err, strings.TrimSpace(string(out)))
	}
	idx, parseErr := strconv.Atoi(strings.TrimSpace(string(out)))
	if parseErr != nil {
		return 0, fmt.Errorf("tmuxctl: parse window index from %q: %w", out, parseErr)
	}
	return idx, nil
}

func target(session string, index int) string {
	return fmt.Sprintf("%s:%d", session, index)
}

func parseIntLines(s string) []int {
	var out []int
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		if n, err := strconv.Atoi(line); err == nil {
			out = append(out, n)
		}
	}
	return out
}
