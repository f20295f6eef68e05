package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sandipndev/vex/internal/proto"
)

func cmdPair() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: vex pair <create|list|revoke|revoke-all>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "create":
		cmdPairCreate()
	case "list":
		cmdPairList()
	case "revoke":
		cmdPairRevoke()
	case "revoke-all":
		cmdPairRevokeAll()
	default:
		fmt.Fprintf(os.Stderr, "vex: unknown pair subcommand %q\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdPairCreate() {
	fs := flag.NewFlagSet("pair create", flag.ExitOnError)
	label := fs.String("label", "", "human-readable label for this pairing")
	expireS := fs.Int64("expire", 0, "token lifetime in seconds (0 = no expiry)")
	fs.Parse(os.Args[3:])

	var resp proto.Pair
	call(proto.CmdPairCreate, proto.PairCreateRequest{Label: *label, ExpireS: *expireS}, &resp)

	fmt.Printf("token_id:     %s\n", resp.TokenID)
	fmt.Printf("token_secret: %s\n", resp.TokenSecret)
	fmt.Println("\nSave token_secret now; it is never shown again.")
}

func cmdPairList() {
	var resp []proto.PairedClient
	call(proto.CmdPairList, nil, &resp)

	for _, c := range resp {
		expiry := "never"
		if c.ExpiresAt != nil {
			expiry = c.ExpiresAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-24s %-16s created %s  expires %s\n", c.TokenID, c.Label, c.CreatedAt.Format("2006-01-02"), expiry)
	}
}

func cmdPairRevoke() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: vex pair revoke <token-id>")
		os.Exit(1)
	}
	call(proto.CmdPairRevoke, proto.PairRevokeRequest{TokenID: os.Args[3]}, nil)
	fmt.Println("revoked")
}

func cmdPairRevokeAll() {
	var resp proto.Revoked
	call(proto.CmdPairRevokeAll, nil, &resp)
	fmt.Printf("revoked %d token(s)\n", resp.Count)
}
