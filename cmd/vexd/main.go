// vexd is the long-lived daemon that owns the entity graph and
// supervises git, tmux, and shell-host child processes.
//
// Usage:
//
//	vexd [--root <dir>] [--tcp-port <port>]
//
// vexd listens on a local Unix socket at <root>/daemon/vexd.sock and, if
// a TCP port is configured, an authenticated TLS socket on that port. It
// is normally started automatically by vex; you do not need to run it by
// hand.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/sandipndev/vex/internal/daemon"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/tlsidentity"
)

const defaultTCPPort = 7422

func main() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("cannot determine home directory: %v", err)
	}
	defaultRoot := filepath.Join(homeDir, ".vex")
	if env := os.Getenv("VEX_HOME"); env != "" {
		defaultRoot = expandHome(env)
	}

	rootDir := flag.String("root", defaultRoot, "vexd data directory (env: VEX_HOME)")
	tcpPort := flag.Int("tcp-port", envPortOrDefault(), "TLS listener port, 0 disables it (env: VEXD_TCP_PORT)")
	flag.Parse()

	if err := os.MkdirAll(*rootDir, 0o700); err != nil {
		log.Fatalf("create root dir: %v", err)
	}

	d, err := daemon.New(*rootDir)
	if err != nil {
		log.Fatalf("daemon init: %v", err)
	}
	if err := d.WritePID(); err != nil {
		log.Fatalf("write pid file: %v", err)
	}

	socketPath := filepath.Join(*rootDir, "daemon", "vexd.sock")
	os.Remove(socketPath)
	unixListener, err := net.Listen("unix", socketPath)
	if err != nil {
		log.Fatalf("listen on %s: %v", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		log.Fatalf("chmod socket: %v", err)
	}

	var tcpListener net.Listener
	if *tcpPort != 0 {
		id, err := tlsidentity.Load(filepath.Join(*rootDir, "daemon", "tls"))
		if err != nil {
			log.Fatalf("load TLS identity: %v", err)
		}
		log.Printf("vexd TLS fingerprint: %s", id.Fingerprint)

		tl, err := tls.Listen("tcp", fmt.Sprintf(":%d", *tcpPort), id.ServerConfig())
		if err != nil {
			log.Fatalf("listen on :%d: %v", *tcpPort, err)
		}
		tcpListener = tl
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %v, shutting down", sig)
		unixListener.Close()
		if tcpListener != nil {
			tcpListener.Close()
		}
		d.RemovePID()
		os.Remove(socketPath)
		os.Exit(0)
	}()

	log.Printf("vexd listening on %s", socketPath)
	go func() {
		if err := d.Serve(unixListener, proto.TransportUnix); err != nil {
			log.Printf("unix listener: %v", err)
		}
	}()

	if tcpListener != nil {
		log.Printf("vexd listening on TLS :%d", *tcpPort)
		if err := d.Serve(tcpListener, proto.TransportTCP); err != nil {
			log.Fatalf("tcp listener: %v", err)
		}
		return
	}

	select {}
}

func envPortOrDefault() int {
	if v := os.Getenv("VEXD_TCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			return port
		}
	}
	return defaultTCPPort
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
