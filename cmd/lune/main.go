// Command lune is the CLI entry point: run/list/setup/build subcommands
// plus a bare REPL, structured as a cobra command tree (rootCmd +
// AddCommand(subCmd()...), each subcommand a small func returning
// *cobra.Command). Running lune with no arguments starts the REPL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lune",
		Short: "lune - a standalone runtime for sandboxed scripts",
		Long:  "lune runs sandboxed scripts against a cooperative task scheduler and a small built-in library set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl()
		},
	}

	rootCmd.AddCommand(
		runCmd(),
		listCmd(),
		setupCmd(),
		buildCmd(),
		replCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
