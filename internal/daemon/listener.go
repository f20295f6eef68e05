package daemon

import (
	"errors"
	"io"
	"log"
	"net"

	"github.com/sandipndev/vex/internal/proto"
)

// Serve accepts connections from l and handles each on its own goroutine,
// tagging every one with transport so Dispatch can enforce local-only
// gating. It blocks until l is closed, mirroring grove's Run/Accept loop
// in daemon.go, generalized to run once per listener so the same logic
// serves both the Unix and the TLS TCP transport.
func (d *Daemon) Serve(l net.Listener, transport proto.Transport) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go d.handleConn(conn, transport)
	}
}

func (d *Daemon) handleConn(conn net.Conn, transport proto.Transport) {
	d.incClients()
	defer d.decClients()
	defer conn.Close()

	tokenID := ""
	if transport == proto.TransportTCP {
		id, ok := d.authenticate(conn)
		if !ok {
			return
		}
		tokenID = id
	}

	for {
		env, err := proto.ReadEnvelope(conn)
		if err != nil {
			return
		}

		if env.Type == proto.CmdShellRegister {
			d.handleShellRegisterConn(conn, env)
			return
		}
		if env.Type == proto.CmdAttachShell {
			d.handleAttachConn(conn, env)
			return
		}

		respType, payload, dispatchErr := d.Dispatch(transport, tokenID, env.Type, env.Payload)
		if dispatchErr != nil {
			_ = proto.WriteFrame(conn, proto.RespError, ToErrorPayload(dispatchErr))
			continue
		}
		if err := proto.WriteFrame(conn, respType, payload); err != nil {
			return
		}
	}
}

// authenticate drives the TCP auth handshake: the client sends one auth
// frame immediately after TLS completes; the daemon validates it and
// replies Pong or Error(Unauthorized), closing on failure either way the
// caller's defer handles.
func (d *Daemon) authenticate(conn net.Conn) (tokenID string, ok bool) {
	env, err := proto.ReadEnvelope(conn)
	if err != nil {
		return "", false
	}
	var auth proto.AuthFrame
	if err := env.Decode(&auth); err != nil {
		_ = proto.WriteFrame(conn, proto.RespError, proto.ErrorPayload{Kind: proto.ErrUnauthorized})
		return "", false
	}
	if !d.tokens.Validate(auth.TokenID, auth.TokenSecret) {
		_ = proto.WriteFrame(conn, proto.RespError, proto.ErrorPayload{Kind: proto.ErrUnauthorized})
		return "", false
	}
	if err := proto.WriteFrame(conn, proto.RespPong, nil); err != nil {
		return "", false
	}
	return auth.TokenID, true
}

// handleShellRegisterConn answers a ShellRegister request and then parks
// the connection in the shell hub instead of closing it: this
// connection belongs to a vex-shell-host supervisor that will keep
// speaking the PTY sub-protocol until an attaching client is bridged to
// it or the shell exits.
func (d *Daemon) handleShellRegisterConn(conn net.Conn, env proto.Envelope) {
	respType, payload, err := d.handleShellRegisterPayload(env.Payload)
	if err != nil {
		_ = proto.WriteFrame(conn, proto.RespError, ToErrorPayload(err))
		return
	}
	if err := proto.WriteFrame(conn, respType, payload); err != nil {
		return
	}

	resp, ok := payload.(proto.ShellRegisterResponse)
	if !ok {
		log.Printf("daemon: shell register: unexpected payload type %T", payload)
		return
	}
	d.hub.Register(resp.ShellID, conn)
}

func (d *Daemon) handleShellRegisterPayload(payload []byte) (string, any, error) {
	return d.handleShellRegister(payload)
}

// handleAttachConn claims the shell host connection parked by
// ShellRegister and bridges it, byte for byte, to this attaching client's
// connection. Raw copying is correct here: both ends already agree on the
// length-prefixed framing, so forwarding the undifferentiated byte stream
// preserves frame boundaries regardless of how the transport happened to
// chunk them.
func (d *Daemon) handleAttachConn(conn net.Conn, env proto.Envelope) {
	var req proto.AttachShellRequest
	if err := env.Decode(&req); err != nil {
		_ = proto.WriteFrame(conn, proto.RespError, proto.ErrorPayload{Kind: proto.ErrInternal, Message: err.Error()})
		return
	}

	if _, _, ok := d.ShellByID(req.ShellID); !ok {
		_ = proto.WriteFrame(conn, proto.RespError, proto.ErrorPayload{Kind: proto.ErrNotFound, Message: "shell not found: " + req.ShellID})
		return
	}

	hostConn, ok := d.hub.Claim(req.ShellID)
	if !ok {
		_ = proto.WriteFrame(conn, proto.RespError, proto.ErrorPayload{Kind: proto.ErrInternal, Message: "shell is not currently reachable"})
		return
	}
	defer hostConn.Close()

	if err := proto.WriteFrame(conn, proto.RespAttached, nil); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(hostConn, conn)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(conn, hostConn)
		done <- struct{}{}
	}()
	<-done
}
