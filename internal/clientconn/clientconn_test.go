package clientconn

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/sandipndev/vex/internal/proto"
	"github.com/stretchr/testify/require"
)

func TestCallReturnsErrorOnErrorResponse(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		env, err := proto.ReadEnvelope(server)
		require.NoError(t, err)
		require.Equal(t, proto.CmdStatus, env.Type)
		_ = proto.WriteFrame(server, proto.RespError, proto.ErrorPayload{Kind: proto.ErrNotFound, Message: "nope"})
	}()

	_, err := Call(client, proto.CmdStatus, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope")
}

func TestResolvePrefersLocalSocket(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "local.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	target, err := Resolve(sock, filepath.Join(dir, "proxy.sock"), map[string]Target{"default": {Name: "default"}})
	require.NoError(t, err)
	require.Equal(t, "local", target.Name)
}

func TestResolveFallsBackToNamedDefault(t *testing.T) {
	dir := t.TempDir()
	target, err := Resolve(filepath.Join(dir, "nope.sock"), filepath.Join(dir, "also-nope.sock"),
		map[string]Target{"default": {Name: "default", Host: "example.com"}})
	require.NoError(t, err)
	require.Equal(t, "default", target.Name)
}

func TestVerifySpawnInPlaceCommandRejectsMismatch(t *testing.T) {
	err := VerifySpawnInPlaceCommand([]string{"evil", "arg"}, "claude")
	require.Error(t, err)
}

func TestVerifySpawnInPlaceCommandAcceptsMatch(t *testing.T) {
	err := VerifySpawnInPlaceCommand([]string{"claude", "--dangerously-skip-permissions", "hi"}, "claude")
	require.NoError(t, err)
}
