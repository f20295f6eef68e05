package main

import (
	"fmt"
	"os"

	"github.com/sandipndev/vex/internal/attachclient"
)

func cmdAttach() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: vex attach <shell-id>")
		os.Exit(1)
	}
	shellID := os.Args[2]

	conn := connect()
	defer conn.Close()

	code, err := attachclient.Run(conn, shellID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vex: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}
