package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wayfindr.app/relay/common/logger"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

type rootOptions struct {
	server  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "wayctl",
		Short: "Operator tools for the WayfindR relay",
		Long:  "wayctl simulates robots, tails the live log and chats with the relay from a terminal.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupCLI(opts.verbose)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", envOr("WAYFINDR_SERVER", "http://localhost:8080"), "relay base URL")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSimulateCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wayctl %s (commit: %s)\n", Version, Commit)
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
