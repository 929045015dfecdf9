package main

import (
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <destination>",
	Short: "Copy the chart from --source into another backend",
	Long: `Replaces every record at the destination with the records of --source.
When redis.addr is configured the copy holds a distributed lock on the destination.`,
	Example: "  orgtree import sqlite:org.db --source rpt.json --id-field ID --label-field Puesto --superior-field ID_Jefe_Superior",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reject, _ := cmd.Flags().GetBool("reject-cycles")
		return app.Import(cmd.Context(), args[0], reject)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage chart snapshots in the configured snapshot store",
}

var snapshotListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List stored snapshots",
	Args:        cobra.NoArgs,
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.SnapshotList(cmd.Context())
	},
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save [name]",
	Short: "Load the chart and store it as a snapshot (default: snapshot_name)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.SnapshotSave(cmd.Context(), snapshotName(args))
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.SnapshotDelete(cmd.Context(), snapshotName(args))
	},
}

func snapshotName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return app.Opts.Config.SnapshotName
}

func init() {
	importCmd.Flags().Bool("reject-cycles", false, "Refuse to import a chart containing loops")

	snapshotCmd.AddCommand(snapshotListCmd, snapshotSaveCmd, snapshotDeleteCmd)
	rootCmd.AddCommand(importCmd, snapshotCmd)
}
