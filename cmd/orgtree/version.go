package main

import (
	"fmt"
	"os"

	"github.com/aretw0/orgtree"
	"github.com/aretw0/orgtree/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of orgtree",
	// The version needs no chart or config.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(out)
		}
		fmt.Fprintf(out, "orgtree version %s\n", tui.Highlight(out, orgtree.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
