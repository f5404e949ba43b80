package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultEndpoint is the public Linear GraphQL endpoint.
const DefaultEndpoint = "https://api.linear.app/graphql"

// Catalog is the remote issue-tracker contract: per-kind fetch-by-identifier
// and fetch-collection operations, plus issue-level primitives that accept
// resolved identifiers only.
type Catalog interface {
	Team(ctx context.Context, id string) (*Team, error)
	Teams(ctx context.Context) ([]Team, error)
	User(ctx context.Context, id string) (*User, error)
	Users(ctx context.Context) ([]User, error)
	Project(ctx context.Context, id string) (*Project, error)
	Projects(ctx context.Context) ([]Project, error)
	WorkflowState(ctx context.Context, id string) (*WorkflowState, error)
	// WorkflowStates returns all states, or only the given team's states
	// when teamID is non-empty.
	WorkflowStates(ctx context.Context, teamID string) ([]WorkflowState, error)

	Issue(ctx context.Context, id string) (*Issue, error)
	Issues(ctx context.Context, filter IssueFilter, first int) ([]Issue, error)
	CreateIssue(ctx context.Context, input IssueInput) (*Issue, error)
	UpdateIssue(ctx context.Context, id string, update IssueUpdate) (*Issue, error)
}

// Client implements Catalog against the Linear GraphQL API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient creates a Linear client. An empty endpoint selects the public API.
func NewClient(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{},
	}
}

const issueFields = `id identifier title description priority url createdAt updatedAt
	team { id name key }
	assignee { id name displayName email }
	project { id name }
	state { id name type color }`

type graphQLError struct {
	Message string `json:"message"`
}

// do executes one GraphQL request and decodes the "data" object into out.
// No retries, no backoff: failures surface directly to the caller.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("linear request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("linear API status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("linear API: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// --- Teams ---

func (c *Client) Team(ctx context.Context, id string) (*Team, error) {
	var data struct {
		Team *Team `json:"team"`
	}
	err := c.do(ctx, `query($id: String!) { team(id: $id) { id name key } }`,
		map[string]any{"id": id}, &data)
	if err != nil {
		return nil, err
	}
	if data.Team == nil {
		return nil, fmt.Errorf("team not found: %s", id)
	}
	return data.Team, nil
}

func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var data struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	}
	err := c.do(ctx, `query { teams { nodes { id name key } } }`, nil, &data)
	if err != nil {
		return nil, err
	}
	return data.Teams.Nodes, nil
}

// --- Users ---

func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var data struct {
		User *User `json:"user"`
	}
	err := c.do(ctx, `query($id: String!) { user(id: $id) { id name displayName email } }`,
		map[string]any{"id": id}, &data)
	if err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	return data.User, nil
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var data struct {
		Users struct {
			Nodes []User `json:"nodes"`
		} `json:"users"`
	}
	err := c.do(ctx, `query { users { nodes { id name displayName email } } }`, nil, &data)
	if err != nil {
		return nil, err
	}
	return data.Users.Nodes, nil
}

// --- Projects ---

func (c *Client) Project(ctx context.Context, id string) (*Project, error) {
	var data struct {
		Project *Project `json:"project"`
	}
	err := c.do(ctx, `query($id: String!) { project(id: $id) { id name } }`,
		map[string]any{"id": id}, &data)
	if err != nil {
		return nil, err
	}
	if data.Project == nil {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	return data.Project, nil
}

func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var data struct {
		Projects struct {
			Nodes []Project `json:"nodes"`
		} `json:"projects"`
	}
	err := c.do(ctx, `query { projects { nodes { id name } } }`, nil, &data)
	if err != nil {
		return nil, err
	}
	return data.Projects.Nodes, nil
}

// --- Workflow states ---

func (c *Client) WorkflowState(ctx context.Context, id string) (*WorkflowState, error) {
	var data struct {
		WorkflowState *WorkflowState `json:"workflowState"`
	}
	err := c.do(ctx, `query($id: String!) { workflowState(id: $id) { id name type color } }`,
		map[string]any{"id": id}, &data)
	if err != nil {
		return nil, err
	}
	if data.WorkflowState == nil {
		return nil, fmt.Errorf("workflow state not found: %s", id)
	}
	return data.WorkflowState, nil
}

func (c *Client) WorkflowStates(ctx context.Context, teamID string) ([]WorkflowState, error) {
	query := `query { workflowStates { nodes { id name type color } } }`
	var variables map[string]any
	if teamID != "" {
		query = `query($teamId: ID) { workflowStates(filter: { team: { id: { eq: $teamId } } }) { nodes { id name type color } } }`
		variables = map[string]any{"teamId": teamID}
	}
	var data struct {
		WorkflowStates struct {
			Nodes []WorkflowState `json:"nodes"`
		} `json:"workflowStates"`
	}
	if err := c.do(ctx, query, variables, &data); err != nil {
		return nil, err
	}
	return data.WorkflowStates.Nodes, nil
}

// --- Issues ---

func (c *Client) Issue(ctx context.Context, id string) (*Issue, error) {
	var data struct {
		Issue *Issue `json:"issue"`
	}
	err := c.do(ctx, `query($id: String!) { issue(id: $id) { `+issueFields+` } }`,
		map[string]any{"id": id}, &data)
	if err != nil {
		return nil, err
	}
	if data.Issue == nil {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	return data.Issue, nil
}

// buildFilter translates an IssueFilter into Linear's filter expression,
// one {field: {id: {eq: resolvedID}}} comparator per provided field.
func buildFilter(f IssueFilter) map[string]any {
	filter := map[string]any{}
	if f.TeamID != "" {
		filter["team"] = map[string]any{"id": map[string]any{"eq": f.TeamID}}
	}
	if f.AssigneeID != "" {
		filter["assignee"] = map[string]any{"id": map[string]any{"eq": f.AssigneeID}}
	}
	if f.ProjectID != "" {
		filter["project"] = map[string]any{"id": map[string]any{"eq": f.ProjectID}}
	}
	if f.StateID != "" {
		filter["state"] = map[string]any{"id": map[string]any{"eq": f.StateID}}
	}
	if f.Query != "" {
		filter["or"] = []map[string]any{
			{"title": map[string]any{"containsIgnoreCase": f.Query}},
			{"description": map[string]any{"containsIgnoreCase": f.Query}},
		}
	}
	return filter
}

func (c *Client) Issues(ctx context.Context, filter IssueFilter, first int) ([]Issue, error) {
	if first <= 0 {
		first = 50
	}
	var data struct {
		Issues struct {
			Nodes []Issue `json:"nodes"`
		} `json:"issues"`
	}
	err := c.do(ctx,
		`query($filter: IssueFilter, $first: Int) { issues(filter: $filter, first: $first) { nodes { `+issueFields+` } } }`,
		map[string]any{"filter": buildFilter(filter), "first": first}, &data)
	if err != nil {
		return nil, err
	}
	return data.Issues.Nodes, nil
}

func (c *Client) CreateIssue(ctx context.Context, input IssueInput) (*Issue, error) {
	in := map[string]any{
		"title":  input.Title,
		"teamId": input.TeamID,
	}
	if input.Description != "" {
		in["description"] = input.Description
	}
	if input.AssigneeID != "" {
		in["assigneeId"] = input.AssigneeID
	}
	if input.ProjectID != "" {
		in["projectId"] = input.ProjectID
	}
	if input.StateID != "" {
		in["stateId"] = input.StateID
	}
	if input.Priority != nil {
		in["priority"] = *input.Priority
	}
	if len(input.LabelIDs) > 0 {
		in["labelIds"] = input.LabelIDs
	}

	var data struct {
		IssueCreate struct {
			Success bool   `json:"success"`
			Issue   *Issue `json:"issue"`
		} `json:"issueCreate"`
	}
	err := c.do(ctx,
		`mutation($input: IssueCreateInput!) { issueCreate(input: $input) { success issue { `+issueFields+` } } }`,
		map[string]any{"input": in}, &data)
	if err != nil {
		return nil, err
	}
	if !data.IssueCreate.Success || data.IssueCreate.Issue == nil {
		return nil, fmt.Errorf("issue create was not accepted")
	}
	return data.IssueCreate.Issue, nil
}

func (c *Client) UpdateIssue(ctx context.Context, id string, update IssueUpdate) (*Issue, error) {
	in := map[string]any{}
	if update.Title != "" {
		in["title"] = update.Title
	}
	if update.Description != "" {
		in["description"] = update.Description
	}
	if update.AssigneeID != "" {
		in["assigneeId"] = update.AssigneeID
	}
	if update.ProjectID != "" {
		in["projectId"] = update.ProjectID
	}
	if update.StateID != "" {
		in["stateId"] = update.StateID
	}
	if update.Priority != nil {
		in["priority"] = *update.Priority
	}
	if len(update.LabelIDs) > 0 {
		in["labelIds"] = update.LabelIDs
	}

	var data struct {
		IssueUpdate struct {
			Success bool   `json:"success"`
			Issue   *Issue `json:"issue"`
		} `json:"issueUpdate"`
	}
	err := c.do(ctx,
		`mutation($id: String!, $input: IssueUpdateInput!) { issueUpdate(id: $id, input: $input) { success issue { `+issueFields+` } } }`,
		map[string]any{"id": id, "input": in}, &data)
	if err != nil {
		return nil, err
	}
	if !data.IssueUpdate.Success || data.IssueUpdate.Issue == nil {
		return nil, fmt.Errorf("issue update was not accepted")
	}
	return data.IssueUpdate.Issue, nil
}
