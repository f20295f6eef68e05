// Package shellhost implements the out-of-process PTY supervisor spawned
// by the daemon inside a fresh multiplexer window for ShellSpawn.
// Grounded on instance.go's startAgent/ptyReader: the same pty.Start +
// syscall.Getpgid/Kill process-group idiom, adapted from an in-daemon
// goroutine bridging a net.Conn to an in-process Instance into a
// standalone binary that dials the daemon itself and speaks the ShellMsg
// sub-protocol over that connection.
package shellhost

import (
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/tmuxctl"
)

// Options configures one shellhost run.
type Options struct {
	SocketPath   string // daemon's local listener socket
	WorkstreamID string
	Shell        string // shell binary to exec; defaults to $SHELL or "sh"
}

// Run dials the daemon, registers as a shell for WorkstreamID, hosts a
// PTY running Shell, and bridges the two until the shell exits or the
// daemon connection closes. It blocks until the session ends.
func Run(opts Options) error {
	conn, err := net.Dial("unix", opts.SocketPath)
	if err != nil {
		return fmt.Errorf("shellhost: dial daemon: %w", err)
	}
	defer conn.Close()

	window, err := tmuxctl.CurrentWindowIndex()
	if err != nil {
		return fmt.Errorf("shellhost: determine window: %w", err)
	}

	if err := proto.WriteFrame(conn, proto.CmdShellRegister, proto.ShellRegisterRequest{
		WorkstreamID: opts.WorkstreamID,
		Window:       window,
	}); err != nil {
		return fmt.Errorf("shellhost: send ShellRegister: %w", err)
	}
	env, err := proto.ReadEnvelope(conn)
	if err != nil {
		return fmt.Errorf("shellhost: read ShellRegistered: %w", err)
	}
	if env.Type != proto.RespShellRegistered {
		var errPayload proto.ErrorPayload
		_ = env.Decode(&errPayload)
		return fmt.Errorf("shellhost: register rejected: %s: %s", errPayload.Kind, errPayload.Message)
	}

	shellBin := opts.Shell
	if shellBin == "" {
		shellBin = os.Getenv("SHELL")
	}
	if shellBin == "" {
		shellBin = "sh"
	}

	cmd := exec.Command(shellBin)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 80, Rows: 24})
	if err != nil {
		return fmt.Errorf("shellhost: pty.Start: %w", err)
	}
	defer ptm.Close()

	return bridge(conn, ptm, cmd)
}

// envResult carries one inbound frame (or the terminal read error) from
// the connection-reading goroutine to bridge's select-loop.
type envResult struct {
	env proto.Envelope
	err error
}

// bridge runs the select-loop that ties the PTY to the connection: PTY
// output becomes Out frames, inbound In frames are written to the PTY,
// inbound Resize frames resize the PTY, and child exit drains remaining
// output before sending Exited and returning. Inbound frames are read on
// their own goroutine and fed through envCh so the select can also wake
// on exitCode — otherwise a child exit while the connection is otherwise
// idle would never be noticed until another In/Resize frame arrived.
func bridge(conn net.Conn, ptm *os.File, cmd *exec.Cmd) error {
	outDone := make(chan struct{})
	go func() {
		defer close(outDone)
		buf := make([]byte, 4096)
		for {
			n, err := ptm.Read(buf)
			if n > 0 {
				_ = proto.WriteFrame(conn, proto.ShellMsgOut, proto.ShellOut{
					Data: base64.StdEncoding.EncodeToString(buf[:n]),
				})
			}
			if err != nil {
				return
			}
		}
	}()

	exitCode := make(chan *int, 1)
	go func() {
		err := cmd.Wait()
		code := exitStatusOf(err)
		exitCode <- code
	}()

	envCh := make(chan envResult)
	go func() {
		for {
			env, err := proto.ReadEnvelope(conn)
			envCh <- envResult{env: env, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case code := <-exitCode:
			<-outDone
			return proto.WriteFrame(conn, proto.ShellMsgExited, proto.ShellExited{Code: code})

		case res := <-envCh:
			if res.err != nil {
				select {
				case code := <-exitCode:
					<-outDone
					return proto.WriteFrame(conn, proto.ShellMsgExited, proto.ShellExited{Code: code})
				case <-time.After(2 * time.Second):
					killProcessGroup(cmd)
					return nil
				}
			}
			switch res.env.Type {
			case proto.ShellMsgIn:
				var in proto.ShellIn
				if res.env.Decode(&in) == nil {
					if data, decErr := base64.StdEncoding.DecodeString(in.Data); decErr == nil {
						ptm.Write(data)
					}
				}
			case proto.ShellMsgResize:
				var rz proto.ShellResize
				if res.env.Decode(&rz) == nil {
					pty.Setsize(ptm, &pty.Winsize{Cols: uint16(rz.Cols), Rows: uint16(rz.Rows)})
				}
			}
		}
	}
}

func exitStatusOf(err error) *int {
	if err == nil {
		code := 0
		return &code
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		return &code
	}
	return nil
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	syscall.Kill(pid, syscall.SIGKILL)
}
