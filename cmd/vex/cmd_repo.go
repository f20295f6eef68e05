package main

import (
	"fmt"
	"os"

	"github.com/sandipndev/vex/internal/proto"
)

func cmdRepo() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: vex repo <register|list|unregister>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "register":
		cmdRepoRegister()
	case "list":
		cmdRepoList()
	case "unregister":
		cmdRepoUnregister()
	default:
		fmt.Fprintf(os.Stderr, "vex: unknown repo subcommand %q\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdRepoRegister() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex repo register <path>")
		os.Exit(1)
	}
	var resp proto.RepoInfo
	call(proto.CmdRepoRegister, proto.RepoRegisterRequest{Path: os.Args[3]}, &resp)
	fmt.Printf("%s  %s  (default branch: %s)\n", resp.ID, resp.Path, resp.DefaultBranch)
}

func cmdRepoList() {
	var resp proto.RepoListResponse
	call(proto.CmdRepoList, proto.RepoListRequest{}, &resp)
	for _, r := range resp.Repos {
		warn := ""
		if r.PathWarning != "" {
			warn = "  [" + r.PathWarning + "]"
		}
		fmt.Printf("%-16s %-24s %s%s\n", r.ID, r.Name, r.Path, warn)
	}
}

func cmdRepoUnregister() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex repo unregister <repo-id>")
		os.Exit(1)
	}
	call(proto.CmdRepoUnregister, proto.RepoUnregisterRequest{RepoID: os.Args[3]}, nil)
	fmt.Println("unregistered")
}
