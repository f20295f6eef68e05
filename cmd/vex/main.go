// vex is the CLI client for the vexd daemon.
//
// Usage:
//
//	vex pair create [--label <name>] [--expire <seconds>]
//	vex pair list
//	vex pair revoke <token-id>
//	vex pair revoke-all
//	vex repo register <path>
//	vex repo list
//	vex repo unregister <repo-id>
//	vex ws create <repo-id> [--name <name>] [--branch <branch>] [--fetch]
//	vex ws list [repo-id]
//	vex ws delete <ws-id>
//	vex agent spawn <ws-id> "<prompt>"
//	vex agent spawn-in-place <ws-id> ["<prompt>"]
//	vex agent kill <agent-id>
//	vex agent list <ws-id>
//	vex shell spawn <ws-id>
//	vex shell list <ws-id>
//	vex shell kill <shell-id>
//	vex attach <shell-id>
//	vex proxy start --host <host[:port]> --token-id <id> --token-secret <secret>
//	vex proxy stop
//	vex daemon start
//	vex daemon stop
//	vex status
//	vex whoami
//
// vex starts vexd automatically if it is not already running for local
// (Unix-socket) use; remote daemons are reached through a running
// background proxy instead (see `vex proxy start`).
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "pair":
		cmdPair()
	case "repo":
		cmdRepo()
	case "ws", "workstream":
		cmdWorkstream()
	case "agent":
		cmdAgent()
	case "shell":
		cmdShell()
	case "attach":
		cmdAttach()
	case "proxy":
		cmdProxy()
	case "daemon":
		cmdDaemon()
	case "status":
		cmdStatus()
	case "whoami":
		cmdWhoami()
	default:
		fmt.Fprintf(os.Stderr, "vex: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `vex - control plane for parallel agent workstreams

  pair create [--label L] [--expire S]   Mint a pairing token for a remote client
  pair list                              List paired clients
  pair revoke <token-id>                 Revoke one paired client
  pair revoke-all                        Revoke every paired client

  repo register <path>                   Register a git repository
  repo list                              List registered repositories
  repo unregister <repo-id>              Unregister a repository and its workstreams

  ws create <repo-id> [--name N] [--branch B] [--fetch]
                                          Create a workstream (worktree + session)
  ws list [repo-id]                      List workstreams
  ws delete <ws-id>                      Tear down a workstream

  agent spawn <ws-id> "<prompt>"         Spawn an agent in a new window
  agent spawn-in-place <ws-id> ["<prompt>"]
                                          Register the current tmux window as an agent
  agent kill <agent-id>                  Stop an agent
  agent list <ws-id>                     List a workstream's agents

  shell spawn <ws-id>                    Open an attachable shell window
  shell list <ws-id>                     List a workstream's shells
  shell kill <shell-id>                  Close a shell window
  attach <shell-id>                      Attach your terminal to a shell

  proxy start --host H --token-id I --token-secret S
                                          Start the background connection proxy
  proxy stop                             Stop the background connection proxy

  daemon start                           Start vexd if not already running
  daemon stop                            Stop vexd (SIGTERM, then SIGKILL after 5s)

  status                                 Print daemon uptime and client count
  whoami                                 Print the identity of the current connection`)
}
