package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sandipndev/vex/internal/proto"
)

func cmdWorkstream() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: vex ws <create|list|delete>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "create":
		cmdWorkstreamCreate()
	case "list":
		cmdWorkstreamList()
	case "delete":
		cmdWorkstreamDelete()
	default:
		fmt.Fprintf(os.Stderr, "vex: unknown ws subcommand %q\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdWorkstreamCreate() {
	fs := flag.NewFlagSet("ws create", flag.ExitOnError)
	name := fs.String("name", "", "workstream name (default: branch name)")
	branch := fs.String("branch", "", "branch to check out (default: repo's default branch)")
	fetch := fs.Bool("fetch", false, "fetch the remote before resolving the branch")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "usage: vex ws create <repo-id> [--name N] [--branch B] [--fetch]") }
	fs.Parse(os.Args[3:])
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	var resp proto.WorkstreamInfo
	call(proto.CmdWorkstreamCreate, proto.WorkstreamCreateRequest{
		RepoID:      fs.Arg(0),
		Name:        *name,
		Branch:      *branch,
		FetchLatest: *fetch,
	}, &resp)

	fmt.Printf("%s  %s  (%s)  %s\n", resp.ID, resp.Name, resp.Branch, resp.WorktreePath)
}

func cmdWorkstreamList() {
	repoID := ""
	if len(os.Args) >= 4 {
		repoID = os.Args[3]
	}
	var resp proto.WorkstreamListResponse
	call(proto.CmdWorkstreamList, proto.WorkstreamListRequest{RepoID: repoID}, &resp)
	for _, w := range resp.Workstreams {
		fmt.Printf("%-16s %-20s %-10s %-8s agents=%d shells=%d\n",
			w.ID, w.Name, w.Branch, w.Status, len(w.AgentIDs), len(w.ShellIDs))
	}
}

func cmdWorkstreamDelete() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex ws delete <ws-id>")
		os.Exit(1)
	}
	call(proto.CmdWorkstreamDelete, proto.WorkstreamDeleteRequest{WorkstreamID: os.Args[3]}, nil)
	fmt.Println("deleted")
}
