package issues

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackgate/internal/linear"
	"trackgate/internal/resolver"
)

const (
	teamUUID    = "11111111-1111-1111-1111-111111111111"
	userUUID    = "22222222-2222-2222-2222-222222222222"
	projectUUID = "33333333-3333-3333-3333-333333333333"
	stateUUID   = "44444444-4444-4444-4444-444444444444"
	issueUUID   = "55555555-5555-5555-5555-555555555555"
)

// fakeCatalog is an in-memory Linear with recording of the mutating and
// query primitives.
type fakeCatalog struct {
	teams    []linear.Team
	users    []linear.User
	projects []linear.Project
	states   []linear.WorkflowState
	issues   map[string]*linear.Issue

	createCalls  int
	updateCalls  int
	lastInput    linear.IssueInput
	lastUpdate   linear.IssueUpdate
	lastFilter   linear.IssueFilter
	stateTeamIDs []string
}

func newFakeCatalog() *fakeCatalog {
	f := &fakeCatalog{issues: make(map[string]*linear.Issue)}
	f.teams = []linear.Team{{ID: teamUUID, Name: "Engineering", Key: "ENG"}}
	f.users = []linear.User{{ID: userUUID, Name: "John Doe", DisplayName: "John", Email: "john@example.com"}}
	f.projects = []linear.Project{
		{ID: projectUUID, Name: "Roadmap"},
		{ID: "66666666-6666-6666-6666-666666666666", Name: "Backlog"},
	}
	f.states = []linear.WorkflowState{{ID: stateUUID, Name: "In Progress", Type: "started"}}
	return f
}

func (f *fakeCatalog) Team(ctx context.Context, id string) (*linear.Team, error) {
	for _, t := range f.teams {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("team not found: %s", id)
}

func (f *fakeCatalog) Teams(ctx context.Context) ([]linear.Team, error) { return f.teams, nil }

func (f *fakeCatalog) User(ctx context.Context, id string) (*linear.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %s", id)
}

func (f *fakeCatalog) Users(ctx context.Context) ([]linear.User, error) { return f.users, nil }

func (f *fakeCatalog) Project(ctx context.Context, id string) (*linear.Project, error) {
	for _, p := range f.projects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("project not found: %s", id)
}

func (f *fakeCatalog) Projects(ctx context.Context) ([]linear.Project, error) {
	return f.projects, nil
}

func (f *fakeCatalog) WorkflowState(ctx context.Context, id string) (*linear.WorkflowState, error) {
	for _, s := range f.states {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("workflow state not found: %s", id)
}

func (f *fakeCatalog) WorkflowStates(ctx context.Context, teamID string) ([]linear.WorkflowState, error) {
	f.stateTeamIDs = append(f.stateTeamIDs, teamID)
	return f.states, nil
}

func (f *fakeCatalog) Issue(ctx context.Context, id string) (*linear.Issue, error) {
	if issue, ok := f.issues[id]; ok {
		return issue, nil
	}
	return nil, fmt.Errorf("issue not found: %s", id)
}

func (f *fakeCatalog) Issues(ctx context.Context, filter linear.IssueFilter, first int) ([]linear.Issue, error) {
	f.lastFilter = filter
	var out []linear.Issue
	for _, issue := range f.issues {
		out = append(out, *issue)
	}
	if first > 0 && len(out) > first {
		out = out[:first]
	}
	return out, nil
}

func (f *fakeCatalog) CreateIssue(ctx context.Context, input linear.IssueInput) (*linear.Issue, error) {
	f.createCalls++
	f.lastInput = input
	issue := &linear.Issue{
		ID:          issueUUID,
		Identifier:  "ENG-42",
		Title:       input.Title,
		Description: input.Description,
		Team:        &f.teams[0],
	}
	if input.Priority != nil {
		issue.Priority = *input.Priority
	}
	if input.AssigneeID != "" {
		issue.Assignee = &f.users[0]
	}
	if input.ProjectID != "" {
		for i := range f.projects {
			if f.projects[i].ID == input.ProjectID {
				issue.Project = &f.projects[i]
			}
		}
	}
	if input.StateID != "" {
		issue.State = &f.states[0]
	}
	f.issues[issue.ID] = issue
	return issue, nil
}

func (f *fakeCatalog) UpdateIssue(ctx context.Context, id string, update linear.IssueUpdate) (*linear.Issue, error) {
	f.updateCalls++
	f.lastUpdate = update
	issue, ok := f.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	if update.Title != "" {
		issue.Title = update.Title
	}
	if update.StateID != "" {
		issue.State = &f.states[0]
	}
	return issue, nil
}

func newTestService(t *testing.T, f *fakeCatalog, opts ...Option) *Service {
	t.Helper()
	res := resolver.New(f)
	return NewService(f, res, opts...)
}

func seedIssue(f *fakeCatalog) *linear.Issue {
	issue := &linear.Issue{
		ID:         issueUUID,
		Identifier: "ENG-7",
		Title:      "Existing issue",
		Team:       &f.teams[0],
	}
	f.issues[issue.ID] = issue
	return issue
}

// --- Create ---

func TestCreateResolvesTeamByName(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)

	result, err := svc.Create(context.Background(), CreatePayload{
		Title:  "Fix bug",
		TeamID: "Engineering",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.createCalls)
	assert.Equal(t, teamUUID, f.lastInput.TeamID)
	assert.Equal(t, "ENG-42", result.Issue.Identifier)
	require.NotNil(t, result.Team)
	assert.Equal(t, "Engineering", result.Team.Name)
}

func TestCreateUnknownTeamNeverCallsCreate(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)

	_, err := svc.Create(context.Background(), CreatePayload{
		Title:  "Fix bug",
		TeamID: "NonExistentTeam",
	})
	require.Error(t, err)

	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, resolver.KindTeam, nfe.Kind)
	assert.Contains(t, err.Error(), "Team 'NonExistentTeam' not found.")
	assert.Zero(t, f.createCalls, "remote create must not run after a resolution failure")
}

func TestCreateFailureOrderIsFixed(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)

	// Both team and assignee are unresolvable; only the team failure is
	// reported.
	_, err := svc.Create(context.Background(), CreatePayload{
		Title:      "Fix bug",
		TeamID:     "NoSuchTeam",
		AssigneeID: "NoSuchUser",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Team 'NoSuchTeam' not found.")
	assert.NotContains(t, err.Error(), "NoSuchUser")
}

func TestCreateValidation(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)
	ctx := context.Background()

	t.Run("empty title", func(t *testing.T) {
		_, err := svc.Create(ctx, CreatePayload{TeamID: "ENG"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("title too long", func(t *testing.T) {
		_, err := svc.Create(ctx, CreatePayload{Title: strings.Repeat("x", 256), TeamID: "ENG"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, err.Error(), "255")
	})

	t.Run("priority out of range", func(t *testing.T) {
		p := 5
		_, err := svc.Create(ctx, CreatePayload{Title: "ok", TeamID: "ENG", Priority: &p})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("missing team", func(t *testing.T) {
		_, err := svc.Create(ctx, CreatePayload{Title: "ok"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	assert.Zero(t, f.createCalls, "validation failures must precede any remote call")
}

func TestCreateDefaultProjectFallback(t *testing.T) {
	t.Run("no projectId uses configured default", func(t *testing.T) {
		f := newFakeCatalog()
		svc := newTestService(t, f, WithDefaultProject("Roadmap"))

		_, err := svc.Create(context.Background(), CreatePayload{Title: "Fix bug", TeamID: "ENG"})
		require.NoError(t, err)
		assert.Equal(t, projectUUID, f.lastInput.ProjectID)
	})

	t.Run("explicit projectId wins over default", func(t *testing.T) {
		f := newFakeCatalog()
		svc := newTestService(t, f, WithDefaultProject("Roadmap"))

		_, err := svc.Create(context.Background(), CreatePayload{
			Title:     "Fix bug",
			TeamID:    "ENG",
			ProjectID: "Backlog",
		})
		require.NoError(t, err)
		assert.Equal(t, "66666666-6666-6666-6666-666666666666", f.lastInput.ProjectID)
	})

	t.Run("no default leaves project unset", func(t *testing.T) {
		f := newFakeCatalog()
		svc := newTestService(t, f)

		_, err := svc.Create(context.Background(), CreatePayload{Title: "Fix bug", TeamID: "ENG"})
		require.NoError(t, err)
		assert.Empty(t, f.lastInput.ProjectID)
	})
}

func TestCreateResolvesAllFields(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)
	priority := 2

	result, err := svc.Create(context.Background(), CreatePayload{
		Title:      "Fix bug",
		TeamID:     "ENG",
		AssigneeID: "john@example.com",
		ProjectID:  "Roadmap",
		StateID:    "In Progress",
		Priority:   &priority,
	})
	require.NoError(t, err)

	assert.Equal(t, teamUUID, f.lastInput.TeamID)
	assert.Equal(t, userUUID, f.lastInput.AssigneeID)
	assert.Equal(t, projectUUID, f.lastInput.ProjectID)
	assert.Equal(t, stateUUID, f.lastInput.StateID)
	require.NotNil(t, f.lastInput.Priority)
	assert.Equal(t, 2, *f.lastInput.Priority)

	require.NotNil(t, result.Assignee)
	assert.Equal(t, "john@example.com", result.Assignee.Email)
	require.NotNil(t, result.State)
	assert.Equal(t, "In Progress", result.State.Name)
}

// --- Update ---

func TestUpdateScopesStateToIssueTeam(t *testing.T) {
	f := newFakeCatalog()
	seedIssue(f)
	svc := newTestService(t, f)

	_, err := svc.Update(context.Background(), issueUUID, UpdatePayload{StateID: "In Progress"})
	require.NoError(t, err)

	require.NotEmpty(t, f.stateTeamIDs)
	assert.Equal(t, teamUUID, f.stateTeamIDs[0], "state lookup must be scoped to the issue's team")
	assert.Equal(t, stateUUID, f.lastUpdate.StateID)
}

func TestUpdateEmptyPayloadIsNoOpWrite(t *testing.T) {
	f := newFakeCatalog()
	seedIssue(f)
	svc := newTestService(t, f)

	result, err := svc.Update(context.Background(), issueUUID, UpdatePayload{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.updateCalls)
	assert.Equal(t, "Existing issue", result.Issue.Title)
}

func TestUpdateMissingIssue(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)

	_, err := svc.Update(context.Background(), issueUUID, UpdatePayload{Title: "New"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue not found")
	assert.Zero(t, f.updateCalls)
}

func TestUpdateUnknownStateNeverCallsUpdate(t *testing.T) {
	f := newFakeCatalog()
	seedIssue(f)
	svc := newTestService(t, f)

	_, err := svc.Update(context.Background(), issueUUID, UpdatePayload{StateID: "Shipped"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "State 'Shipped' not found.")
	assert.Zero(t, f.updateCalls)
}

// --- Get ---

func TestGet(t *testing.T) {
	f := newFakeCatalog()
	seedIssue(f)
	svc := newTestService(t, f)

	result, err := svc.Get(context.Background(), issueUUID)
	require.NoError(t, err)
	assert.Equal(t, "ENG-7", result.Issue.Identifier)
	require.NotNil(t, result.Team)
	assert.Equal(t, "ENG", result.Team.Key)

	_, err = svc.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue not found")
}

// --- Search ---

func TestSearchBuildsResolvedFilter(t *testing.T) {
	f := newFakeCatalog()
	seedIssue(f)
	svc := newTestService(t, f)

	result, err := svc.Search(context.Background(), SearchPayload{
		AssigneeID: userUUID,
		TeamID:     "ENG",
		Query:      "crash",
	})
	require.NoError(t, err)

	assert.Equal(t, userUUID, f.lastFilter.AssigneeID, "filter must carry the resolved id")
	assert.Equal(t, teamUUID, f.lastFilter.TeamID)
	assert.Equal(t, "crash", f.lastFilter.Query)

	require.NotNil(t, result.AppliedFilters.Assignee)
	assert.Equal(t, "John Doe", result.AppliedFilters.Assignee.Name)
	require.NotNil(t, result.AppliedFilters.Team)
	assert.Equal(t, "Engineering", result.AppliedFilters.Team.Name)
	assert.Nil(t, result.AppliedFilters.Project)
}

func TestSearchUnknownAssignee(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)

	_, err := svc.Search(context.Background(), SearchPayload{AssigneeID: "ghost@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User 'ghost@example.com' not found.")
}

func TestSearchNoFilters(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)

	result, err := svc.Search(context.Background(), SearchPayload{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.NotNil(t, result.Issues)
}

// --- List ---

func TestListWithTeamFilter(t *testing.T) {
	f := newFakeCatalog()
	seedIssue(f)
	svc := newTestService(t, f)

	issues, err := svc.List(context.Background(), 10, 0, "ENG")
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Equal(t, teamUUID, f.lastFilter.TeamID)
}

func TestListUnknownTeam(t *testing.T) {
	f := newFakeCatalog()
	svc := newTestService(t, f)

	_, err := svc.List(context.Background(), 10, 0, "Ops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Team 'Ops' not found.")
}

func TestListOffsetBeyondResults(t *testing.T) {
	f := newFakeCatalog()
	seedIssue(f)
	svc := newTestService(t, f)

	issues, err := svc.List(context.Background(), 10, 5, "")
	require.NoError(t, err)
	assert.Empty(t, issues)
}
