// Command filekv-cli is the command-line client for filekv-server.
//
//	filekv-cli put --ttl 30s user1 '{"a":1}'
//	filekv-cli get user1
//	filekv-cli -o yaml status
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/filekv/internal/cli/command"
)

func main() {
	// Command errors exit inside Run with their own code.
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(command.ExitFailure)
	}
}
