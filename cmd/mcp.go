package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/notekit/notekit/internal/logger"
	"github.com/notekit/notekit/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for LLM integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

Tools:
- add_note: Create a note (idempotent, rate limited)
- get_note: Retrieve a note by ID
- list_notes: Paginated, sorted listing
- update_note: Modify an existing note
- delete_note: Soft-delete a note
- search_notes: Ranked full-text search

Resources:
- notes://recent: Most recently updated notes
- notes://stats: Database statistics

To use with Claude Desktop, add this to your claude_desktop_config.json:
{
  "mcpServers": {
    "notekit": {
      "command": "notekit",
      "args": ["mcp"]
    }
  }
}`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger.Info("Starting MCP server...")

	notesServer := mcp.NewNotesServer(noteRepo, engine, aggregator, limiter)
	mcpServer := notesServer.GetMCPServer()

	logger.Info("MCP server ready. Listening on stdio...")
	if err := server.ServeStdio(mcpServer); err != nil {
		if err.Error() != "EOF" {
			logger.Error("MCP server error: %v", err)
			return err
		}
	}

	logger.Info("MCP server shutting down")
	return nil
}
