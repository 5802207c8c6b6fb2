// Package main provides the entry point for the pypi-data CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pypi-data/cli/cmd/pypi-data/commands"
	"github.com/pypi-data/cli/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "pypi-data",
		Short: "pypi-data - bulk content scanning of pinned repository commits",
		Long: `pypi-data walks the trees of many pre-cloned repositories at pinned commits
and reports how many paths and distinct objects match a set of predicates.

Commands:
  scan       Scan the commits listed under a base directory (alias: parse)
  bootstrap  Install pack bundles as scannable bare repositories`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewBootstrapCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pypi-data %s\n", version.String())
		},
	}
}
