package cmd

import (
	"github.com/spf13/cobra"

	"trackgate/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients create, update, and search Linear issues with
the same name-or-ID resolution the REST API provides. Configure with:

  {
    "mcpServers": {
      "trackgate": { "command": "trackgate", "args": ["mcp"] }
    }
  }

Available tools: trackgate_create_issue, trackgate_update_issue,
trackgate_search_issues, trackgate_get_issue, trackgate_list_issues`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		return mcp.NewServer(svc).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
