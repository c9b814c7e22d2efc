package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intertext-cli/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes two tools, find_related and analyze_pair, and the prompt
templates as resources. Prompt files edited while the server runs are
picked up immediately.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default)
  intertext mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  intertext mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "intertext": {
        "command": "/path/to/intertext",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if pipelineService == nil {
		return notConfigured("pipeline service")
	}
	if err := ensureIndexed(cmd.Context()); err != nil {
		return err
	}

	ports := &mcp.Ports{
		Pipeline: pipelineService,
		Prompts:  promptStore,
	}
	if promptWatcher != nil {
		ports.Watcher = promptWatcher
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
