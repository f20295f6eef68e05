package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/sandipndev/vex/internal/clientconn"
	"github.com/sandipndev/vex/internal/daemon"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/tmuxctl"
)

func cmdAgent() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: vex agent <spawn|spawn-in-place|kill|list>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "spawn":
		cmdAgentSpawn()
	case "spawn-in-place":
		cmdAgentSpawnInPlace()
	case "kill":
		cmdAgentKill()
	case "list":
		cmdAgentList()
	default:
		fmt.Fprintf(os.Stderr, "vex: unknown agent subcommand %q\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdAgentSpawn() {
	if len(os.Args) < 5 {
		fmt.Fprintln(os.Stderr, `usage: vex agent spawn <ws-id> "<prompt>"`)
		os.Exit(1)
	}
	var resp proto.AgentInfo
	call(proto.CmdAgentSpawn, proto.AgentSpawnRequest{WorkstreamID: os.Args[3], Prompt: os.Args[4]}, &resp)
	fmt.Printf("%s  window %d  %s\n", resp.ID, resp.Window, resp.Status)
}

// cmdAgentSpawnInPlace must be run as the foreground process of the tmux
// window it's claiming (same constraint vex-shell-host runs under): it
// determines that window's index, asks the daemon to register it as an
// agent, verifies the returned command's leading binary against the
// locally configured agent binary, then execs into it in place — the
// window becomes the agent, with no wrapper process left behind.
func cmdAgentSpawnInPlace() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, `usage: vex agent spawn-in-place <ws-id> ["<prompt>"]`)
		os.Exit(1)
	}
	wsID := os.Args[3]
	prompt := ""
	if len(os.Args) >= 5 {
		prompt = os.Args[4]
	}

	window, err := tmuxctl.CurrentWindowIndex()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vex: %v\n", err)
		os.Exit(1)
	}

	var resp proto.AgentSpawnInPlaceResponse
	call(proto.CmdAgentSpawnInPlace, proto.AgentSpawnInPlaceRequest{
		WorkstreamID: wsID,
		Window:       window,
		Prompt:       prompt,
	}, &resp)

	cfg, err := daemon.LoadConfig(filepath.Join(rootDir(), "config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vex: load config: %v\n", err)
		os.Exit(1)
	}
	configuredBinary := firstField(cfg.AgentCommand())
	if err := clientconn.VerifySpawnInPlaceCommand(resp.Command, configuredBinary); err != nil {
		fmt.Fprintf(os.Stderr, "vex: %v\n", err)
		os.Exit(1)
	}

	bin, err := exec.LookPath(resp.Command[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vex: %v\n", err)
		os.Exit(1)
	}
	if err := syscall.Exec(bin, resp.Command, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "vex: exec %s: %v\n", bin, err)
		os.Exit(1)
	}
}

func cmdAgentKill() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex agent kill <agent-id>")
		os.Exit(1)
	}
	call(proto.CmdAgentKill, proto.AgentKillRequest{AgentID: os.Args[3]}, nil)
	fmt.Println("killed")
}

func cmdAgentList() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex agent list <ws-id>")
		os.Exit(1)
	}
	var resp proto.AgentListResponse
	call(proto.CmdAgentList, proto.AgentListRequest{WorkstreamID: os.Args[3]}, &resp)
	for _, a := range resp.Agents {
		exit := ""
		if a.ExitCode != nil {
			exit = "  exit=" + strconv.Itoa(*a.ExitCode)
		}
		fmt.Printf("%-12s window %-3d %-8s%s\n", a.ID, a.Window, a.Status, exit)
	}
}

func firstField(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\t' {
			return s[:i]
		}
	}
	return s
}
