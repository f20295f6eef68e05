package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sandipndev/vex/internal/clientconn"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/tlsidentity"
)

// rootDir mirrors cmd/grove/main.go's rootDir: VEX_HOME wins, ~/.vex
// otherwise.
func rootDir() string {
	if env := os.Getenv("VEX_HOME"); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vex")
}

func localSocketPath() string {
	return filepath.Join(rootDir(), "daemon", "vexd.sock")
}

func proxySocketPath() string {
	return filepath.Join(rootDir(), "vex-client.sock")
}

// connect resolves and dials a target, starting vexd automatically if
// nothing is reachable yet and no remote proxy is configured either —
// directly generalizing cmd/grove/main.go's ensureDaemon/daemonSocket
// pair.
func connect() net.Conn {
	sock := localSocketPath()
	if !pingProxy(proxySocketPath()) {
		ensureDaemon(rootDir(), sock)
	}

	target, err := clientconn.Resolve(sock, proxySocketPath(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vex: %v\n", err)
		os.Exit(1)
	}

	pins, err := tlsidentity.OpenPinStore(filepath.Join(rootDir(), "known_hosts.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vex: open pin store: %v\n", err)
		os.Exit(1)
	}

	conn, err := clientconn.Dial(target, pins)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vex: %v\n", err)
		os.Exit(1)
	}
	return conn
}

// ensureDaemon starts vexd in the background if its local socket isn't
// responding yet. Directly generalizes cmd/grove/main.go's ensureDaemon.
func ensureDaemon(root, socketPath string) {
	if pingDaemon(socketPath) {
		return
	}

	exe, _ := os.Executable()
	daemonBin := filepath.Join(filepath.Dir(exe), "vexd")
	if _, err := os.Stat(daemonBin); err != nil {
		daemonBin = "vexd"
	}

	cmd := exec.Command(daemonBin, "--root", root)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "vex: could not start daemon: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if pingDaemon(socketPath) {
			return
		}
	}

	fmt.Fprintln(os.Stderr, "vex: daemon did not start in time")
	os.Exit(1)
}

func pingDaemon(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(500 * time.Millisecond))
	if err := proto.WriteFrame(conn, proto.CmdStatus, nil); err != nil {
		return false
	}
	env, err := proto.ReadEnvelope(conn)
	return err == nil && env.Type == proto.RespDaemonStatus
}

// call opens a connection, runs one request/response round trip, closes
// the connection, and decodes the response into out (which may be nil if
// the caller only cares that the call succeeded).
func call(cmdType string, req, out any) {
	conn := connect()
	defer conn.Close()

	env, err := clientconn.Call(conn, cmdType, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vex: %v\n", err)
		os.Exit(1)
	}
	if out != nil {
		if err := env.Decode(out); err != nil {
			fmt.Fprintf(os.Stderr, "vex: decode response: %v\n", err)
			os.Exit(1)
		}
	}
}

// stopProcess is the shared Stop sequence for `vex daemon stop` and `vex
// proxy stop`: SIGTERM, wait up to 5s, then SIGKILL.
func stopProcess(pidPath string) error {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return fmt.Errorf("not running (no pid file at %s)", pidPath)
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return fmt.Errorf("parse pid file: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if proc.Signal(syscall.Signal(0)) != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return proc.Signal(syscall.SIGKILL)
}
