package main

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the ingestion tools over MCP on stdio",
	Long: `Expose ingest_extract, ingest_detect, and ingest_formats as MCP
tools over a stdio transport, for use by MCP-capable clients.`,
	Args: cobra.NoArgs,
	RunE: runServeMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runServeMCP(cmd *cobra.Command, args []string) error {
	pipe, _, closer, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closer()

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "ingestor",
		Version: version,
	}, nil)
	pipe.RegisterMCP(srv)

	slog.Info("MCP server starting", "transport", "stdio")
	return srv.Run(cmd.Context(), &mcp.StdioTransport{})
}
