// Package mcp exposes the issue operations as MCP tools over stdio, so MCP
// clients can drive the tracker with the same name-or-ID resolution the REST
// API provides.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"trackgate/internal/issues"
)

// Server wraps the issue operations service and exposes it as MCP tools.
type Server struct {
	issues *issues.Service
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *issues.Service) *Server {
	return &Server{issues: svc}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("trackgate", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.searchIssuesTool())
	srv.AddTool(s.getIssueTool())
	srv.AddTool(s.listIssuesTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

const entityDesc = "Accepts a human-readable name/key/email or a canonical ID."

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// trackgate_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trackgate_create_issue",
		mcp.WithDescription("Create a new issue. Entity fields are resolved by name, key, or email; on a failed resolution the error lists valid alternatives."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title (1-255 characters)")),
		mcp.WithString("team", mcp.Required(), mcp.Description("Team. "+entityDesc)),
		mcp.WithString("description", mcp.Description("Markdown description")),
		mcp.WithString("assignee", mcp.Description("Assignee. "+entityDesc)),
		mcp.WithString("project", mcp.Description("Project. "+entityDesc)),
		mcp.WithString("state", mcp.Description("Workflow state. "+entityDesc)),
		mcp.WithNumber("priority", mcp.Description("0 (none) to 4 (low)")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	team, err := request.RequireString("team")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: team"), nil
	}

	payload := issues.CreatePayload{
		Title:       title,
		TeamID:      team,
		Description: request.GetString("description", ""),
		AssigneeID:  request.GetString("assignee", ""),
		ProjectID:   request.GetString("project", ""),
		StateID:     request.GetString("state", ""),
	}
	if p := request.GetInt("priority", -1); p >= 0 {
		payload.Priority = &p
	}

	result, err := s.issues.Create(ctx, payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(result)
}

// trackgate_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trackgate_update_issue",
		mcp.WithDescription("Update an existing issue by its ID. Only provided fields change; state is resolved within the issue's team."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Canonical issue ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("assignee", mcp.Description("Assignee. "+entityDesc)),
		mcp.WithString("project", mcp.Description("Project. "+entityDesc)),
		mcp.WithString("state", mcp.Description("Workflow state. "+entityDesc)),
		mcp.WithNumber("priority", mcp.Description("0 (none) to 4 (low)")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	payload := issues.UpdatePayload{
		Title:       request.GetString("title", ""),
		Description: request.GetString("description", ""),
		AssigneeID:  request.GetString("assignee", ""),
		ProjectID:   request.GetString("project", ""),
		StateID:     request.GetString("state", ""),
	}
	if p := request.GetInt("priority", -1); p >= 0 {
		payload.Priority = &p
	}

	result, err := s.issues.Update(ctx, issueID, payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(result)
}

// trackgate_search_issues
func (s *Server) searchIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trackgate_search_issues",
		mcp.WithDescription("Search issues by team/assignee/project/state and free text. The response echoes how each filter reference was resolved."),
		mcp.WithString("team", mcp.Description("Team. "+entityDesc)),
		mcp.WithString("assignee", mcp.Description("Assignee. "+entityDesc)),
		mcp.WithString("project", mcp.Description("Project. "+entityDesc)),
		mcp.WithString("state", mcp.Description("Workflow state. "+entityDesc)),
		mcp.WithString("query", mcp.Description("Free text matched against title and description")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of issues to return")),
	)
	return tool, s.handleSearchIssues
}

func (s *Server) handleSearchIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := issues.SearchPayload{
		TeamID:     request.GetString("team", ""),
		AssigneeID: request.GetString("assignee", ""),
		ProjectID:  request.GetString("project", ""),
		StateID:    request.GetString("state", ""),
		Query:      request.GetString("query", ""),
		Limit:      request.GetInt("limit", 0),
	}

	result, err := s.issues.Search(ctx, payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(result)
}

// trackgate_get_issue
func (s *Server) getIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trackgate_get_issue",
		mcp.WithDescription("Fetch one issue by its canonical ID, including resolved team, assignee, project, and state summaries."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Canonical issue ID")),
	)
	return tool, s.handleGetIssue
}

func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	result, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(result)
}

// trackgate_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trackgate_list_issues",
		mcp.WithDescription("List recent issues, optionally filtered by team."),
		mcp.WithString("team", mcp.Description("Team. "+entityDesc)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of issues to return (default 50)")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 0)
	team := request.GetString("team", "")

	list, err := s.issues.List(ctx, limit, 0, team)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(list)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
