package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qmd-dev/qmd/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var transport string
	var addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server exposing query/get/multi_get/status over stdio or HTTP",
		// The MCP protocol requires stdout to carry JSON-RPC exclusively;
		// nothing in this path may write to stdout before the stdio
		// transport takes over.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, transport, addr)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "stdio or http")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address for --transport=http (defaults to config)")

	return cmd
}

func runMCP(cmd *cobra.Command, transport, addr string) error {
	a, close, err := openApp(indexName, debugMode)
	if err != nil {
		return err
	}
	defer close()

	server, err := mcp.NewServer(a.store, a.runtime, a.engine, &a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, transport, addr)
}
