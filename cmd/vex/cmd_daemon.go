package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func cmdDaemon() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: vex daemon <start|stop>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "start":
		cmdDaemonStart()
	case "stop":
		cmdDaemonStop()
	default:
		fmt.Fprintf(os.Stderr, "vex: unknown daemon subcommand %q\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdDaemonStart() {
	root := rootDir()
	sock := localSocketPath()
	if pingDaemon(sock) {
		fmt.Println("daemon already running")
		return
	}
	ensureDaemon(root, sock)
	fmt.Println("daemon started")
}

func cmdDaemonStop() {
	pidPath := filepath.Join(rootDir(), "daemon", "vexd.pid")
	if err := stopProcess(pidPath); err != nil {
		fmt.Fprintf(os.Stderr, "vex: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("daemon stopped")
}
