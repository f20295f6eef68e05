// vex-shell-host is the tiny supervisor binary the daemon execs inside a
// freshly created multiplexer window in response to ShellSpawn. It hosts
// a PTY-backed shell and bridges it to the daemon over the local socket;
// see internal/shellhost for the implementation.
package main

import (
	"flag"
	"log"

	"github.com/sandipndev/vex/internal/shellhost"
)

func main() {
	socketPath := flag.String("socket", "", "daemon local socket path")
	wsID := flag.String("ws", "", "workstream id this shell belongs to")
	shellBin := flag.String("shell", "", "shell binary to run (default: $SHELL)")
	flag.Parse()

	if *socketPath == "" || *wsID == "" {
		log.Fatal("vex-shell-host: -socket and -ws are required")
	}

	if err := shellhost.Run(shellhost.Options{
		SocketPath:   *socketPath,
		WorkstreamID: *wsID,
		Shell:        *shellBin,
	}); err != nil {
		log.Fatalf("vex-shell-host: %v", err)
	}
}
