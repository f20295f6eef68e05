package main

import (
	"fmt"

	"github.com/sandipndev/vex/internal/proto"
)

func cmdStatus() {
	var resp proto.DaemonStatus
	call(proto.CmdStatus, nil, &resp)
	fmt.Printf("uptime: %ds  clients: %d  version: %s\n", resp.UptimeSeconds, resp.Clients, resp.Version)
}

func cmdWhoami() {
	var resp proto.ClientInfo
	call(proto.CmdWhoami, nil, &resp)
	scope := "remote"
	if resp.IsLocal {
		scope = "local"
	}
	fmt.Printf("token_id: %s  scope: %s\n", resp.TokenID, scope)
}
