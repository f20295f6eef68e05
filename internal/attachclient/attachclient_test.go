package attachclient

import (
	"net"
	"testing"

	"github.com/sandipndev/vex/internal/proto"
	"github.com/stretchr/testify/require"
)

// TestRunSurfacesAttachRejection exercises the non-raw-mode error path:
// when the daemon answers AttachShell with Error instead of Attached, Run
// must report it without ever touching the terminal.
func TestRunSurfacesAttachRejection(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		env, err := proto.ReadEnvelope(serverConn)
		require.NoError(t, err)
		require.Equal(t, proto.CmdAttachShell, env.Type)
		_ = proto.WriteFrame(serverConn, proto.RespError, proto.ErrorPayload{
			Kind:    proto.ErrNotFound,
			Message: "no such shell",
		})
	}()

	_, err := Run(clientConn, "shell_abc123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no such shell")
}
