// Command godagent-memoryd runs the Memory-Server Daemon (C15): a
// Unix-socket JSON-RPC server exposing the knowledge, pattern, and
// reasoning stores to other processes, plus an optional /metrics and
// /healthz HTTP sidecar.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes documented for scripts driving the daemon from outside Go.
const (
	exitOK            = 0
	exitError         = 1
	exitNotRunning    = 2
	exitInvalidConfig = 3
	exitTimeout       = 4
)

func main() {
	root := &cobra.Command{
		Use:   "godagent-memoryd",
		Short: "Memory-Server Daemon for the god-agent memory & reasoning substrate",
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}
