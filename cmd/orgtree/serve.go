package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Exposes the chart as a JSON API over HTTP, with an OpenAPI description
at /openapi.yaml and Prometheus metrics at /metrics.
With --watch the chart reloads on source changes and /events streams the diffs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := app.Opts.Config.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		watch, _ := cmd.Flags().GetBool("watch")

		ctx := commandContext(cmd)
		defer ctx.Cancel()

		err := app.Serve(ctx, addr, watch)
		if sig := ctx.Signal(); sig != nil {
			app.Logger.Info("orgtree server stopped", slog.String("signal", sig.String()))
		}
		return err
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the chart as MCP tools so AI agents can query it.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		ctx := commandContext(cmd)
		defer ctx.Cancel()
		return app.ServeMCP(ctx, transport, port)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the tree and redraw it whenever the source changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		root, _ := cmd.Flags().GetString("root")

		ctx := commandContext(cmd)
		defer ctx.Cancel()
		return app.Watch(ctx, root, format)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (overrides http.addr)")
	serveCmd.Flags().Bool("watch", false, "Reload the chart when the source changes")

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")

	watchCmd.Flags().StringP("format", "f", "text", "Output format: text, mermaid or markdown")
	watchCmd.Flags().StringP("root", "r", "", "Only print the subtree below this position")

	rootCmd.AddCommand(serveCmd, mcpCmd, watchCmd)
}
