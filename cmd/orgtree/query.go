package main

import (
	"github.com/spf13/cobra"
)

var rootsCmd = &cobra.Command{
	Use:         "roots",
	Short:       "List the top-level positions",
	Args:        cobra.NoArgs,
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return app.Roots(cmd.Context(), format)
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the organization chart",
	Long: `Prints the whole forest, or the subtree below --root.
Formats: text (default), json, mermaid and markdown.`,
	Args:        cobra.NoArgs,
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		root, _ := cmd.Flags().GetString("root")
		return app.Tree(cmd.Context(), root, format)
	},
}

var showCmd = &cobra.Command{
	Use:         "show <id>",
	Short:       "Show a position with its superior, subordinates and fields",
	Args:        cobra.ExactArgs(1),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Show(cmd.Context(), args[0])
	},
}

var subordinatesCmd = &cobra.Command{
	Use:         "subordinates <id>",
	Short:       "List the positions reporting to a position",
	Args:        cobra.ExactArgs(1),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		format, _ := cmd.Flags().GetString("format")
		return app.Subordinates(cmd.Context(), args[0], all, format)
	},
}

var superiorsCmd = &cobra.Command{
	Use:         "superiors <id>",
	Short:       "List the chain of superiors of a position, nearest first",
	Args:        cobra.ExactArgs(1),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return app.Superiors(cmd.Context(), args[0], format)
	},
}

var chainCmd = &cobra.Command{
	Use:         "chain <id>",
	Short:       "Print the chain of command from the top down to a position",
	Args:        cobra.ExactArgs(1),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Chain(cmd.Context(), args[0])
	},
}

var isSuperiorCmd = &cobra.Command{
	Use:         "is-superior <superior-id> <subordinate-id>",
	Short:       "Check whether a position is above another; exits 2 when it is not",
	Args:        cobra.ExactArgs(2),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := app.IsSuperior(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			app.Close()
			exit(2)
		}
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:         "find <label>",
	Short:       "Find a position by label (case-insensitive)",
	Args:        cobra.ExactArgs(1),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return app.Find(cmd.Context(), args[0], format)
	},
}

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List positions, optionally filtered by field values",
	Example:     "  orgtree list --field area=Engineering --field grade=A1\n  orgtree list --level C=IV",
	Args:        cobra.NoArgs,
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, _ := cmd.Flags().GetStringArray("field")
		levels, _ := cmd.Flags().GetStringArray("level")
		format, _ := cmd.Flags().GetString("format")
		return app.List(cmd.Context(), filters, levels, format)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the chart for loops, dangling superiors and duplicates",
	Long: `Reports every issue found in the chart. Loops always fail;
with --strict any issue fails.`,
	Args:        cobra.NoArgs,
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")
		return app.Validate(cmd.Context(), strict)
	},
}

func init() {
	for _, c := range []*cobra.Command{rootsCmd, subordinatesCmd, superiorsCmd, findCmd, listCmd} {
		c.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")
	}
	treeCmd.Flags().StringP("format", "f", "text", "Output format: text, json, mermaid or markdown")
	treeCmd.Flags().StringP("root", "r", "", "Only print the subtree below this position")
	subordinatesCmd.Flags().BoolP("all", "a", false, "Include indirect subordinates")
	listCmd.Flags().StringArray("field", nil, "Filter as key=value (repeatable, case-insensitive)")
	listCmd.Flags().StringArray("level", nil, "Minimum valuation level as factor=level, e.g. C=III (repeatable)")
	validateCmd.Flags().Bool("strict", false, "Fail on any issue, not only loops")

	rootCmd.AddCommand(rootsCmd, treeCmd, showCmd, subordinatesCmd, superiorsCmd,
		chainCmd, isSuperiorCmd, findCmd, listCmd, validateCmd)
}
