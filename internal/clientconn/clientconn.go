// Package clientconn implements the client-side connection model: opening
// a single transport (Unix or TOFU-verified TLS over TCP), running the
// auth handshake, and round-tripping commands. Grounded on
// cmd/catherd/main.go's dialDaemon/sendRequest helpers — the same
// dial-then-encode-then-decode shape, generalized from newline-JSON to
// the length-prefixed Envelope framing.
package clientconn

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/tlsidentity"
)

// Target names one daemon endpoint a client can connect to.
type Target struct {
	Name string

	// Unix transport.
	SocketPath string

	// TCP transport. Host may include ":port"; DefaultPort is used if not.
	Host        string
	DefaultPort int

	TokenID     string
	TokenSecret string
}

func (t Target) isTCP() bool { return t.Host != "" }

// hostPort returns host:port, applying DefaultPort (falling back to the
// standard 7422) when Host carries no explicit port.
func (t Target) hostPort() string {
	if strings.Contains(t.Host, ":") {
		return t.Host
	}
	port := t.DefaultPort
	if port == 0 {
		port = 7422
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Dial opens the transport for t and, for TCP, drives the TLS handshake
// (with TOFU verification) and the auth frame: open TCP, drive the TLS
// client with the TOFU verifier, send the auth frame, await Pong, then
// the stream is ready for commands.
func Dial(t Target, pins *tlsidentity.PinStore) (net.Conn, error) {
	if !t.isTCP() {
		conn, err := net.DialTimeout("unix", t.SocketPath, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("clientconn: dial %s: %w", t.SocketPath, err)
		}
		return conn, nil
	}

	addr := t.hostPort()
	cfg := pins.ClientConfig(addr)
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 5 * time.Second}, "tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("clientconn: dial %s: %w", addr, err)
	}

	if err := proto.WriteFrame(conn, "", proto.AuthFrame{TokenID: t.TokenID, TokenSecret: t.TokenSecret}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clientconn: send auth frame: %w", err)
	}
	env, err := proto.ReadEnvelope(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("clientconn: read auth response: %w", err)
	}
	if env.Type != proto.RespPong {
		conn.Close()
		var errPayload proto.ErrorPayload
		_ = env.Decode(&errPayload)
		return nil, fmt.Errorf("clientconn: auth rejected: %s", errPayload.Kind)
	}
	return conn, nil
}

// Call sends one command frame and returns the decoded response envelope.
// A RespError envelope is turned into a Go error; every other response
// type is returned for the caller to Decode.
func Call(conn net.Conn, cmdType string, req any) (proto.Envelope, error) {
	if err := proto.WriteFrame(conn, cmdType, req); err != nil {
		return proto.Envelope{}, fmt.Errorf("clientconn: send %s: %w", cmdType, err)
	}
	env, err := proto.ReadEnvelope(conn)
	if err != nil {
		return proto.Envelope{}, fmt.Errorf("clientconn: read response to %s: %w", cmdType, err)
	}
	if env.Type == proto.RespError {
		var errPayload proto.ErrorPayload
		_ = env.Decode(&errPayload)
		if errPayload.Message != "" {
			return env, fmt.Errorf("%s: %s", errPayload.Kind, errPayload.Message)
		}
		return env, fmt.Errorf("%s", errPayload.Kind)
	}
	return env, nil
}

// Resolve implements the connection-resolution search order for commands
// issued without an explicit target name: the local daemon socket, then
// the background proxy's local socket, then a configured entry named
// "default", then any configured entry.
func Resolve(localSocketPath, proxySocketPath string, named map[string]Target) (Target, error) {
	if reachable(localSocketPath) {
		return Target{Name: "local", SocketPath: localSocketPath}, nil
	}
	if reachable(proxySocketPath) {
		return Target{Name: "proxy", SocketPath: proxySocketPath}, nil
	}
	if t, ok := named["default"]; ok {
		return t, nil
	}
	for _, t := range named {
		return t, nil
	}
	return Target{}, fmt.Errorf("clientconn: no reachable daemon, proxy, or configured connection")
}

func reachable(socketPath string) bool {
	if socketPath == "" {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// VerifySpawnInPlaceCommand checks that command's leading element equals
// configuredBinary: the client-side defense against a malicious daemon
// instructing the client to exec something else. This checks only the
// leading binary, not full argv equality — a deliberate floor, not the
// ceiling (see DESIGN.md).
func VerifySpawnInPlaceCommand(command []string, configuredBinary string) error {
	if len(command) == 0 {
		return fmt.Errorf("clientconn: daemon returned an empty command")
	}
	if command[0] != configuredBinary {
		return fmt.Errorf("clientconn: refusing to exec %q: does not match configured agent binary %q", command[0], configuredBinary)
	}
	return nil
}
