// vex-proxy is the detached background connection proxy: it owns one
// persistent authenticated TCP connection to a remote vexd and fronts it
// with a local Unix socket so repeated vex invocations share a single TLS
// handshake. It is normally started by `vex proxy start` and stopped by
// `vex proxy stop`; you do not need to run it by hand.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sandipndev/vex/internal/clientconn"
	"github.com/sandipndev/vex/internal/proxy"
	"github.com/sandipndev/vex/internal/tlsidentity"
)

func main() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("cannot determine home directory: %v", err)
	}
	defaultRoot := filepath.Join(homeDir, ".vex")
	if env := os.Getenv("VEX_HOME"); env != "" {
		defaultRoot = env
	}

	rootDir := flag.String("root", defaultRoot, "vex home directory (env: VEX_HOME)")
	host := flag.String("host", "", "remote daemon host[:port]")
	tokenID := flag.String("token-id", "", "pairing token id")
	tokenSecret := flag.String("token-secret", "", "pairing token secret")
	flag.Parse()

	if *host == "" || *tokenID == "" || *tokenSecret == "" {
		log.Fatal("vex-proxy: -host, -token-id, and -token-secret are required")
	}

	if err := os.MkdirAll(*rootDir, 0o700); err != nil {
		log.Fatalf("create root dir: %v", err)
	}

	pins, err := tlsidentity.OpenPinStore(filepath.Join(*rootDir, "known_hosts.json"))
	if err != nil {
		log.Fatalf("open pin store: %v", err)
	}

	target := clientconn.Target{Name: *host, Host: *host, TokenID: *tokenID, TokenSecret: *tokenSecret}
	socketPath := filepath.Join(*rootDir, "vex-client.sock")
	pidPath := filepath.Join(*rootDir, "vex.pid")

	os.Remove(socketPath)
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		log.Fatalf("listen on %s: %v", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		log.Fatalf("chmod socket: %v", err)
	}

	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600); err != nil {
		log.Fatalf("write pid file: %v", err)
	}

	p := proxy.New(target, pins, socketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %v, shutting down", sig)
		p.Close()
		l.Close()
		os.Remove(socketPath)
		os.Remove(pidPath)
		os.Exit(0)
	}()

	log.Printf("vex-proxy listening on %s, upstream %s", socketPath, *host)
	if err := p.Run(l); err != nil {
		log.Fatalf("proxy: %v", err)
	}
}
