// Package main is the entry point for the icnet launcher.
//
// icnet turns a set of command-line intentions (subnets, pre-installed
// canisters, funding, latency, regtest adapters) into a running local
// Internet Computer network instance backed by an external pocket-ic server
// process, and publishes a status record once the instance is ready.
//
// For detailed usage information, run:
//
//	icnet --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/icnet/cmd/icnet/commands"
	"github.com/imamik/icnet/cmd/icnet/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(handlers.ExitCode(err))
	}
}
