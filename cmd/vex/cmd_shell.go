package main

import (
	"fmt"
	"os"

	"github.com/sandipndev/vex/internal/proto"
)

func cmdShell() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: vex shell <spawn|list|kill>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "spawn":
		cmdShellSpawn()
	case "list":
		cmdShellList()
	case "kill":
		cmdShellKill()
	default:
		fmt.Fprintf(os.Stderr, "vex: unknown shell subcommand %q\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdShellSpawn() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex shell spawn <ws-id>")
		os.Exit(1)
	}
	var resp proto.ShellSpawnResponse
	call(proto.CmdShellSpawn, proto.ShellSpawnRequest{WorkstreamID: os.Args[3]}, &resp)
	fmt.Printf("%s  window %d  %s\n", resp.Shell.ID, resp.Shell.Window, resp.Shell.Status)
}

func cmdShellList() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex shell list <ws-id>")
		os.Exit(1)
	}
	var resp proto.ShellListResponse
	call(proto.CmdShellList, proto.ShellListRequest{WorkstreamID: os.Args[3]}, &resp)
	for _, s := range resp.Shells {
		fmt.Printf("%-14s window %-3d %s\n", s.ID, s.Window, s.Status)
	}
}

func cmdShellKill() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex shell kill <shell-id>")
		os.Exit(1)
	}
	call(proto.CmdShellKill, proto.ShellKillRequest{ShellID: os.Args[3]}, nil)
	fmt.Println("killed")
}
