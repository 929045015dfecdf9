package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/orgtree/internal/cli"
	"github.com/aretw0/orgtree/internal/config"
	"github.com/aretw0/orgtree/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// exit is swapped in tests.
var exit = os.Exit

// app is created by the root PersistentPreRunE and shared by every command.
var app *cli.App

var rootCmd = &cobra.Command{
	Use:   "orgtree",
	Short: "orgtree builds and queries organization charts",
	Long: `orgtree reads flat position records (a loam directory, a JSON or YAML file,
SQLite or Redis), links every position to its superior and answers hierarchy
questions from the command line, over HTTP or as MCP tools.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupApp,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("source", "s", "", "Chart source (directory, file, sqlite:, redis://); defaults to the current directory")
	flags.StringP("config", "c", "", "Config file (default ./"+config.DefaultFile+" when present)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("id-field", "", "Record key holding the position id")
	flags.String("label-field", "", "Record key holding the position label")
	flags.String("superior-field", "", "Record key holding the superior id")
}

func setupApp(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	overrides := map[string]*string{
		"source":         &cfg.Source,
		"id-field":       &cfg.Mapping.ID,
		"label-field":    &cfg.Mapping.Label,
		"superior-field": &cfg.Mapping.Superior,
	}
	for name, dst := range overrides {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	debug, _ := flags.GetBool("debug")

	// Long-running commands log at the configured level; queries only warn.
	quiet := cmd.Annotations["quiet"] == "true"

	app = cli.NewApp(cli.Options{Config: cfg, Debug: debug, Quiet: quiet}, cmd.OutOrStdout())
	app.Rich = tui.IsTerminal(os.Stdout)
	return nil
}

// queryAnnotations marks commands whose output should not be interleaved with info logs.
var queryAnnotations = map[string]string{"quiet": "true"}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) *cli.SignalContext {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return cli.NewSignalContext(parent)
}
