package tmuxctl_test

import (
	"testing"

	"github.com/sandipndev/vex/internal/tmuxctl"
	"github.com/stretchr/testify/assert"
)

// These exercise the argument/parsing plumbing that doesn't require a
// real tmux server: a Controller pointed at a binary that always fails
// should report false or surface a wrapped error, never a panic.
func TestHasSessionFalseWhenBinaryMissing(t *testing.T) {
	c := &tmuxctl.Controller{Bin: "tmux-does-not-exist-xyz"}
	assert.False(t, c.HasSession("anything"))
}

func TestNewSessionWrapsFailure(t *testing.T) {
	c := &tmuxctl.Controller{Bin: "tmux-does-not-exist-xyz"}
	err := c.NewSession("s", "/tmp")
	assert.Error(t, err)
}

func TestListSessionsWrapsFailure(t *testing.T) {
	c := &tmuxctl.Controller{Bin: "tmux-does-not-exist-xyz"}
	_, err := c.ListSessions()
	assert.Error(t, err)
}
