package main

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize positions, salaries and vacancies per area",
	Long: `Groups the positions by the configured group field (area by default)
and prints the head count, total and average salary and vacancies of each group.`,
	Example:     "  orgtree stats\n  orgtree stats --group Hacienda\n  orgtree stats --by grade -f json",
	Args:        cobra.NoArgs,
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		group, _ := cmd.Flags().GetString("group")
		format, _ := cmd.Flags().GetString("format")
		return app.Stats(cmd.Context(), by, group, format)
	},
}

var valuationCmd = &cobra.Command{
	Use:         "valuation <id>",
	Short:       "Show the valuation factors of a position and their total score",
	Args:        cobra.ExactArgs(1),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return app.Valuation(cmd.Context(), args[0], format)
	},
}

var compareCmd = &cobra.Command{
	Use:         "compare <id> <id>...",
	Short:       "Compare the valuation factors of several positions",
	Example:     "  orgtree compare 3 4\n  orgtree compare 3 4 --factor A --factor D",
	Args:        cobra.MinimumNArgs(2),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		factors, _ := cmd.Flags().GetStringSlice("factor")
		format, _ := cmd.Flags().GetString("format")
		return app.Compare(cmd.Context(), args, factors, format)
	},
}

var factorsCmd = &cobra.Command{
	Use:         "factors [key]",
	Short:       "Explain what each valuation factor measures",
	Args:        cobra.MaximumNArgs(1),
	Annotations: queryAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := ""
		if len(args) == 1 {
			key = args[0]
		}
		return app.Factors(key)
	},
}

func init() {
	for _, c := range []*cobra.Command{statsCmd, valuationCmd, compareCmd} {
		c.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")
	}
	statsCmd.Flags().String("by", "", "Group by this field instead of the configured one")
	statsCmd.Flags().StringP("group", "g", "", "Only show this group (case-insensitive)")
	compareCmd.Flags().StringSlice("factor", nil, "Factor keys to compare (default all)")

	rootCmd.AddCommand(statsCmd, valuationCmd, compareCmd, factorsCmd)
}
