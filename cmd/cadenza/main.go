// Package main provides the CLI entry point for the cadenza agent
// server.
//
// Start the server:
//
//	cadenza serve --config cadenza.yaml
//
// Configuration can reference environment variables, so the usual
// setup is a config file with api_key: ${OPENAI_API_KEY}.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cadenza",
		Short: "cadenza - multi-agent conversation server",
		Long: `cadenza serves multi-agent chat sessions over websocket, dispatching
user turns to configurable agents with tool execution, tiered memory,
and task planning.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cadenza server",
		Long: `Start the websocket server with all configured agents.

The server loads configuration, registers the built-in tools and stock
agents, and listens for websocket clients on /ws. Graceful shutdown is
handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  cadenza serve --config cadenza.yaml

  # Start with debug logging
  cadenza serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadenza.yaml",
		"Path to YAML or JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")

	return cmd
}
