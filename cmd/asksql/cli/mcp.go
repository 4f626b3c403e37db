package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	amcp "github.com/asksql/asksql/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes get_sql_query,
get_sql_result and the schema description to AI agents. Supports stdio
(default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for desktop MCP clients. Logs go to stderr.

In HTTP mode, the server listens on the specified port using the Streamable
HTTP transport.`,
		Example: `  asksql mcp                               # stdio mode
  asksql mcp --transport http --port 3001  # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			a.checkDatabase(cmd.Context())

			mcpSrv := amcp.NewMCPServer(a.toolset, versionString(), a.cfg.Executor.ReadOnly, a.logger)

			switch transport {
			case "stdio":
				return mcpSrv.ServeStdio()
			case "http":
				return mcpSrv.ServeHTTP(cmd.Context(), fmt.Sprintf(":%d", port))
			default:
				return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}
