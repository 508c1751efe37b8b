// Package cli implements the percolctl admin tool: a thin cobra front-end
// over the monitord HTTP API.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   int
)

// NewRootCommand creates the percolctl root command.
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "percolctl",
		Short: "Admin CLI for the percolator stored-query matching engine",
		Long: `percolctl manages the percolator daemon over its HTTP API:
registering and removing stored queries, inspecting the registry, and
running ad-hoc documents through the matcher.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "monitord base URL")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 30, "request timeout in seconds")

	rootCmd.AddCommand(newRegisterCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newMatchCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("percolctl %s (commit %s, built %s, %s/%s)\n",
				version, commit, date, runtime.GOOS, runtime.GOARCH)
		},
	}
}
