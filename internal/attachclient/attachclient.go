// Package attachclient implements the terminal-bridging side of
// AttachShell: raw terminal mode, SIGWINCH-driven resize frames, and
// duplex keystroke/output streaming over the ShellMsg sub-protocol, until
// the remote shell exits or the stream ends.
//
// Directly generalizes cmd/grove/main.go's doAttach: term.MakeRaw/
// term.Restore (golang.org/x/term), the same SIGWINCH → resize-frame
// goroutine, and the same "stdout drains server output, stdin goroutine
// forwards keystrokes" split. grove's Ctrl-] detach keystroke has no
// equivalent here — workstreams are long-lived and exit is driven by the
// shell itself, not an explicit detach; a bare "leave it running and
// disconnect" detach is achieved by simply closing conn, which the
// daemon's bridge loop already tolerates.
package attachclient

import (
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/sandipndev/vex/internal/proto"
)

// Run sends AttachShell for shellID over conn, switches the local
// terminal to raw mode, and bridges it to the remote PTY until either
// side's stream ends or the shell exits. It returns the shell's exit
// code (or -1 if the stream ended without one) and any I/O error.
func Run(conn net.Conn, shellID string) (exitCode int, err error) {
	if err := proto.WriteFrame(conn, proto.CmdAttachShell, proto.AttachShellRequest{ShellID: shellID}); err != nil {
		return -1, fmt.Errorf("attachclient: send AttachShell: %w", err)
	}
	env, err := proto.ReadEnvelope(conn)
	if err != nil {
		return -1, fmt.Errorf("attachclient: read attach response: %w", err)
	}
	if env.Type != proto.RespAttached {
		var errPayload proto.ErrorPayload
		_ = env.Decode(&errPayload)
		return -1, fmt.Errorf("attachclient: attach rejected: %s: %s", errPayload.Kind, errPayload.Message)
	}

	fd := int(os.Stdin.Fd())
	oldState, rawErr := term.MakeRaw(fd)
	if rawErr != nil {
		return -1, fmt.Errorf("attachclient: set raw mode: %w", rawErr)
	}
	defer term.Restore(fd, oldState)

	return bridge(conn, fd)
}

// bridge runs the full-duplex loop: PTY output from the daemon writes to
// stdout, stdin keystrokes become In frames, SIGWINCH sends Resize
// frames, and an Exited frame ends the session with its exit code.
// Guaranteed terminal restoration is the caller's job (Run's defer), not
// this function's.
func bridge(conn net.Conn, fd int) (int, error) {
	done := make(chan struct{}, 1)
	exitCode := make(chan int, 1)

	signalDone := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	// stdin → In frames. On EOF this goroutine stops sending; the
	// connection is not half-closed, and the receive side keeps draining
	// until the remote reports Exited or the stream ends.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				_ = proto.WriteFrame(conn, proto.ShellMsgIn, proto.ShellIn{
					Data: base64.StdEncoding.EncodeToString(buf[:n]),
				})
			}
			if err != nil {
				return
			}
		}
	}()

	// SIGWINCH → Resize frames.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			if cols, rows, err := term.GetSize(fd); err == nil {
				_ = proto.WriteFrame(conn, proto.ShellMsgResize, proto.ShellResize{Cols: cols, Rows: rows})
			}
		}
	}()

	// Initial size, sent once before the read loop starts.
	if cols, rows, err := term.GetSize(fd); err == nil {
		_ = proto.WriteFrame(conn, proto.ShellMsgResize, proto.ShellResize{Cols: cols, Rows: rows})
	}

	var readErr error
	go func() {
		defer signalDone()
		for {
			env, err := proto.ReadEnvelope(conn)
			if err != nil {
				readErr = err
				return
			}
			switch env.Type {
			case proto.ShellMsgOut:
				var out proto.ShellOut
				if env.Decode(&out) == nil {
					if data, decErr := base64.StdEncoding.DecodeString(out.Data); decErr == nil {
						os.Stdout.Write(data)
					}
				}
			case proto.ShellMsgExited:
				var exited proto.ShellExited
				_ = env.Decode(&exited)
				code := -1
				if exited.Code != nil {
					code = *exited.Code
				}
				exitCode <- code
				return
			}
		}
	}()

	<-done
	select {
	case code := <-exitCode:
		return code, nil
	default:
		return -1, readErr
	}
}
