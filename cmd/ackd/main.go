// Ackd is a TCP server that persists every client message to <port>.txt and
// acknowledges it after a fixed delay, serving all connections from one
// completion-driven event loop.
//
// Usage:
//
//	ackd serve [port] [flags]
//	ackd probe --addr host:port [flags]
//
// See 'ackd <command> --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/ackd/server"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ackd",
	Short: "Delayed-acknowledgment TCP server",
	Long: `A TCP server that accepts many concurrent clients, appends every received
message (up to 128 bytes) to <port>.txt and answers "<unix_time> ACCEPTED"
after a fixed delay.

The listening port is taken from the command line or, when omitted, from the
settings file next to the binary. The effective port is written back to that
file on every start.`,
	Version:       server.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", server.Name, server.Version)
	},
}
