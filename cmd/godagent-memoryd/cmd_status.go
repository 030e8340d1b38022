package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashgrove-systems/godagent-memory/internal/config"
)

func newStatusCmd() *cobra.Command {
	var socketFlag string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			socket := socketFlag
			if socket == "" {
				cfg, err := config.Load()
				if err != nil {
					fmt.Fprintln(os.Stderr, "config:", err)
					os.Exit(exitInvalidConfig)
				}
				socket = cfg.SocketPath
			}

			resp, err := callRPC(socket, "status", map[string]interface{}{})
			if err != nil {
				fmt.Fprintln(os.Stderr, "status:", err)
				os.Exit(exitNotRunning)
			}
			if resp.Error != nil {
				fmt.Fprintln(os.Stderr, "status:", resp.Error.Message)
				os.Exit(exitError)
			}

			out, _ := json.MarshalIndent(resp.Result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&socketFlag, "socket", "", "override the daemon's Unix socket path")
	return cmd
}
