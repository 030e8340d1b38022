package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashgrove-systems/godagent-memory/internal/config"
)

func newStopCmd() *cobra.Command {
	var socketFlag string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask a running daemon to shut down gracefully",
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

			resp, err := callRPC(socket, "shutdown", map[string]interface{}{})
			if err != nil {
				fmt.Fprintln(os.Stderr, "stop:", err)
				os.Exit(exitNotRunning)
			}
			if resp.Error != nil {
				fmt.Fprintln(os.Stderr, "stop:", resp.Error.Message)
				os.Exit(exitError)
			}
			fmt.Println("shutdown requested")
			return nil
		},
	}

	cmd.Flags().StringVar(&socketFlag, "socket", "", "override the daemon's Unix socket path")
	return cmd
}
