package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"trackgate/internal/issues"
)

// issueTools returns the tool definitions the issue agent may call. Every
// tool maps 1:1 onto an issue operation; entity fields accept names, keys,
// emails, or IDs and are resolved server-side.
func issueTools() []anthropic.ToolUnionParam {
	entityDesc := "Accepts a human-readable name/key/email or a canonical ID."

	createTool := anthropic.ToolParam{
		Name:        "create_issue",
		Description: anthropic.String("Create a new issue. Team is required; other entity fields are optional."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"title":       map[string]any{"type": "string", "description": "Issue title (1-255 characters)"},
				"description": map[string]any{"type": "string", "description": "Markdown description"},
				"teamId":      map[string]any{"type": "string", "description": "Team. " + entityDesc},
				"assigneeId":  map[string]any{"type": "string", "description": "Assignee. " + entityDesc},
				"projectId":   map[string]any{"type": "string", "description": "Project. " + entityDesc},
				"stateId":     map[string]any{"type": "string", "description": "Workflow state. " + entityDesc},
				"priority":    map[string]any{"type": "integer", "description": "0 (none) to 4 (low)"},
			},
			Required: []string{"title", "teamId"},
		},
	}

	updateTool := anthropic.ToolParam{
		Name:        "update_issue",
		Description: anthropic.String("Update an existing issue by its ID. Only provided fields change."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"issueId":     map[string]any{"type": "string", "description": "Canonical issue ID"},
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"assigneeId":  map[string]any{"type": "string", "description": "Assignee. " + entityDesc},
				"projectId":   map[string]any{"type": "string", "description": "Project. " + entityDesc},
				"stateId":     map[string]any{"type": "string", "description": "Workflow state. " + entityDesc},
				"priority":    map[string]any{"type": "integer"},
			},
			Required: []string{"issueId"},
		},
	}

	searchTool := anthropic.ToolParam{
		Name:        "search_issues",
		Description: anthropic.String("Search issues by team/assignee/project/state and free text."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"teamId":     map[string]any{"type": "string", "description": "Team. " + entityDesc},
				"assigneeId": map[string]any{"type": "string", "description": "Assignee. " + entityDesc},
				"projectId":  map[string]any{"type": "string", "description": "Project. " + entityDesc},
				"stateId":    map[string]any{"type": "string", "description": "Workflow state. " + entityDesc},
				"query":      map[string]any{"type": "string", "description": "Free text matched against title/description"},
				"limit":      map[string]any{"type": "integer"},
			},
		},
	}

	getTool := anthropic.ToolParam{
		Name:        "get_issue",
		Description: anthropic.String("Fetch one issue by its canonical ID."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"issueId": map[string]any{"type": "string"},
			},
			Required: []string{"issueId"},
		},
	}

	listTool := anthropic.ToolParam{
		Name:        "list_issues",
		Description: anthropic.String("List recent issues, optionally filtered by team."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"teamId": map[string]any{"type": "string", "description": "Team. " + entityDesc},
				"limit":  map[string]any{"type": "integer"},
			},
		},
	}

	return []anthropic.ToolUnionParam{
		{OfTool: &createTool},
		{OfTool: &updateTool},
		{OfTool: &searchTool},
		{OfTool: &getTool},
		{OfTool: &listTool},
	}
}

// executeTool dispatches one tool call to the issue operations service and
// returns the JSON result. The bool reports whether the result is an error
// payload for the model.
func executeTool(ctx context.Context, svc *issues.Service, name string, input []byte) (string, bool) {
	switch name {
	case "create_issue":
		var p issues.CreatePayload
		if err := json.Unmarshal(input, &p); err != nil {
			return fmt.Sprintf("invalid arguments: %v", err), true
		}
		result, err := svc.Create(ctx, p)
		if err != nil {
			return err.Error(), true
		}
		return marshalResult(result)

	case "update_issue":
		var p struct {
			IssueID string `json:"issueId"`
			issues.UpdatePayload
		}
		if err := json.Unmarshal(input, &p); err != nil {
			return fmt.Sprintf("invalid arguments: %v", err), true
		}
		result, err := svc.Update(ctx, p.IssueID, p.UpdatePayload)
		if err != nil {
			return err.Error(), true
		}
		return marshalResult(result)

	case "search_issues":
		var p issues.SearchPayload
		if err := json.Unmarshal(input, &p); err != nil {
			return fmt.Sprintf("invalid arguments: %v", err), true
		}
		result, err := svc.Search(ctx, p)
		if err != nil {
			return err.Error(), true
		}
		return marshalResult(result)

	case "get_issue":
		var p struct {
			IssueID string `json:"issueId"`
		}
		if err := json.Unmarshal(input, &p); err != nil {
			return fmt.Sprintf("invalid arguments: %v", err), true
		}
		result, err := svc.Get(ctx, p.IssueID)
		if err != nil {
			return err.Error(), true
		}
		return marshalResult(result)

	case "list_issues":
		var p struct {
			TeamID string `json:"teamId"`
			Limit  int    `json:"limit"`
		}
		if err := json.Unmarshal(input, &p); err != nil {
			return fmt.Sprintf("invalid arguments: %v", err), true
		}
		list, err := svc.List(ctx, p.Limit, 0, p.TeamID)
		if err != nil {
			return err.Error(), true
		}
		return marshalResult(list)
	}
	return fmt.Sprintf("unknown tool: %s", name), true
}

func marshalResult(v any) (string, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("marshal result: %v", err), true
	}
	return string(data), false
}
