package shellhost

import (
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitStatusOfNilIsZero(t *testing.T) {
	code := exitStatusOf(nil)
	if assert.NotNil(t, code) {
		assert.Equal(t, 0, *code)
	}
}

func TestExitStatusOfNonExitErrorIsNil(t *testing.T) {
	assert.Nil(t, exitStatusOf(&exec.Error{Name: "x", Err: assert.AnError}))
}

// TestBridgeSendsExitedWithoutInboundTraffic exercises the regression this
// select-loop exists to prevent: a child that exits while the connection
// is otherwise idle (no In/Resize frames ever arrive) must still produce
// an Exited frame, not hang waiting for inbound traffic to wake the loop.
func TestBridgeSendsExitedWithoutInboundTraffic(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 7")
	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 80, Rows: 24})
	require.NoError(t, err)
	defer ptm.Close()

	daemonSide, hostSide := net.Pipe()
	defer daemonSide.Close()

	done := make(chan error, 1)
	go func() { done <- bridge(hostSide, ptm, cmd) }()

	env, err := readEnvelopeWithTimeout(t, daemonSide, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, proto.ShellMsgExited, env.Type)

	var exited proto.ShellExited
	require.NoError(t, env.Decode(&exited))
	if assert.NotNil(t, exited.Code) {
		assert.Equal(t, 7, *exited.Code)
	}

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not return after sending Exited")
	}
}

func readEnvelopeWithTimeout(t *testing.T, conn net.Conn, d time.Duration) (proto.Envelope, error) {
	t.Helper()
	type result struct {
		env proto.Envelope
		err error
	}
	ch := make(chan result, 1)
	go func() {
		env, err := proto.ReadEnvelope(conn)
		ch <- result{env, err}
	}()
	select {
	case r := <-ch:
		return r.env, r.err
	case <-time.After(d):
		t.Fatal("timed out waiting for envelope")
		return proto.Envelope{}, nil
	}
}
