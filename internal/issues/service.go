// Package issues implements issue create/update/get/search/list against the
// Linear catalog, resolving every entity reference field by name or ID before
// any remote primitive is called.
package issues

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"trackgate/internal/linear"
	"trackgate/internal/resolver"
)

// NotFoundError reports an entity reference that matched nothing. Message is
// display-ready and enumerates valid alternatives.
type NotFoundError struct {
	Kind    resolver.Kind
	Value   string
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError reports a payload that violates field constraints. It is
// raised before any remote call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// maxTitleLen is the remote tracker's title limit.
const maxTitleLen = 255

// Service composes the entity resolver with the remote issue primitives.
type Service struct {
	catalog        linear.Catalog
	resolver       *resolver.Resolver
	defaultProject string
	log            *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultProject sets the project reference used when a create payload
// carries no projectId.
func WithDefaultProject(ref string) Option {
	return func(s *Service) { s.defaultProject = ref }
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates the issue operations service.
func NewService(catalog linear.Catalog, res *resolver.Resolver, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		resolver: res,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePayload is the caller input for Create. Entity fields accept either
// canonical IDs or human-readable names/keys/emails.
type CreatePayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	TeamID      string   `json:"teamId"`
	AssigneeID  string   `json:"assigneeId,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
	StateID     string   `json:"stateId,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	LabelIDs    []string `json:"labelIds,omitempty"`
}

// UpdatePayload is the caller input for Update. All fields are optional; an
// empty payload is a no-op write.
type UpdatePayload struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	AssigneeID  string   `json:"assigneeId,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
	StateID     string   `json:"stateId,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	LabelIDs    []string `json:"labelIds,omitempty"`
}

// IssueResult carries the raw issue fields plus resolved-entity summaries,
// each nullable when not set on the issue.
type IssueResult struct {
	Issue    *linear.Issue    `json:"issue"`
	Team     *resolver.Entity `json:"team"`
	Assignee *resolver.Entity `json:"assignee"`
	Project  *resolver.Entity `json:"project"`
	State    *resolver.Entity `json:"state"`
}

func newIssueResult(issue *linear.Issue) *IssueResult {
	r := &IssueResult{Issue: issue}
	if issue.Team != nil {
		e := resolver.FromTeam(*issue.Team)
		r.Team = &e
	}
	if issue.Assignee != nil {
		e := resolver.FromUser(*issue.Assignee)
		r.Assignee = &e
	}
	if issue.Project != nil {
		e := resolver.FromProject(*issue.Project)
		r.Project = &e
	}
	if issue.State != nil {
		e := resolver.FromState(*issue.State)
		r.State = &e
	}
	return r
}

// lookup is one pending entity resolution. Resolutions for a single call run
// concurrently, but failures are reported in the lookups' declared order.
type lookup struct {
	kind   resolver.Kind
	ref    string
	teamID string

	entity *resolver.Entity
	ok     bool
}

func (s *Service) resolveAll(ctx context.Context, lookups []*lookup) *NotFoundError {
	var wg sync.WaitGroup
	for _, l := range lookups {
		if l.ref == "" {
			l.ok = true
			continue
		}
		wg.Add(1)
		go func(l *lookup) {
			defer wg.Done()
			l.entity, l.ok = s.resolver.Resolve(ctx, l.kind, l.ref, l.teamID)
		}(l)
	}
	wg.Wait()

	for _, l := range lookups {
		if !l.ok {
			return &NotFoundError{
				Kind:    l.kind,
				Value:   l.ref,
				Message: s.resolver.NotFoundMessage(ctx, l.kind, l.ref),
			}
		}
	}
	return nil
}

func validateTitle(title string, required bool) error {
	n := utf8.RuneCountInString(title)
	if n == 0 {
		if required {
			return &ValidationError{Message: "title is required"}
		}
		return nil
	}
	if n > maxTitleLen {
		return &ValidationError{Message: fmt.Sprintf("title must be at most %d characters", maxTitleLen)}
	}
	return nil
}

func validatePriority(p *int) error {
	if p != nil && (*p < 0 || *p > 4) {
		return &ValidationError{Message: "priority must be between 0 and 4"}
	}
	return nil
}

// Create validates the payload, resolves team/assignee/project/state
// concurrently, and only then calls the remote create primitive. When the
// payload has no projectId, the configured default project reference is
// resolved instead. Resolution failures are reported one at a time in the
// fixed order team, assignee, project, state.
func (s *Service) Create(ctx context.Context, p CreatePayload) (*IssueResult, error) {
	if err := validateTitle(p.Title, true); err != nil {
		return nil, err
	}
	if err := validatePriority(p.Priority); err != nil {
		return nil, err
	}
	if p.TeamID == "" {
		return nil, &ValidationError{Message: "teamId is required"}
	}

	projectRef := p.ProjectID
	if projectRef == "" {
		projectRef = s.defaultProject
	}

	team := &lookup{kind: resolver.KindTeam, ref: p.TeamID}
	assignee := &lookup{kind: resolver.KindUser, ref: p.AssigneeID}
	project := &lookup{kind: resolver.KindProject, ref: projectRef}
	state := &lookup{kind: resolver.KindState, ref: p.StateID}

	if nfe := s.resolveAll(ctx, []*lookup{team, assignee, project, state}); nfe != nil {
		return nil, nfe
	}

	input := linear.IssueInput{
		Title:       p.Title,
		Description: p.Description,
		TeamID:      team.entity.ID,
		Priority:    p.Priority,
		LabelIDs:    p.LabelIDs,
	}
	if assignee.entity != nil {
		input.AssigneeID = assignee.entity.ID
	}
	if project.entity != nil {
		input.ProjectID = project.entity.ID
	}
	if state.entity != nil {
		input.StateID = state.entity.ID
	}

	issue, err := s.catalog.CreateIssue(ctx, input)
	if err != nil {
		return nil, err
	}

	s.log.Info("issue created", "id", issue.ID, "identifier", issue.Identifier, "team", team.entity.Name)
	return newIssueResult(issue), nil
}

// Update fetches the issue first, resolves any provided entity references
// (state resolution is scoped to the issue's team, since workflow states are
// team-scoped), and calls the remote update primitive. An empty payload still
// succeeds as a no-op write.
func (s *Service) Update(ctx context.Context, issueID string, p UpdatePayload) (*IssueResult, error) {
	if err := validateTitle(p.Title, false); err != nil {
		return nil, err
	}
	if err := validatePriority(p.Priority); err != nil {
		return nil, err
	}

	issue, err := s.catalog.Issue(ctx, issueID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("issue not found: %s", issueID)
		}
		return nil, err
	}

	var teamID string
	if issue.Team != nil {
		teamID = issue.Team.ID
	}

	assignee := &lookup{kind: resolver.KindUser, ref: p.AssigneeID}
	project := &lookup{kind: resolver.KindProject, ref: p.ProjectID}
	state := &lookup{kind: resolver.KindState, ref: p.StateID, teamID: teamID}

	if nfe := s.resolveAll(ctx, []*lookup{assignee, project, state}); nfe != nil {
		return nil, nfe
	}

	update := linear.IssueUpdate{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
		LabelIDs:    p.LabelIDs,
	}
	if assignee.entity != nil {
		update.AssigneeID = assignee.entity.ID
	}
	if project.entity != nil {
		update.ProjectID = project.entity.ID
	}
	if state.entity != nil {
		update.StateID = state.entity.ID
	}

	updated, err := s.catalog.UpdateIssue(ctx, issueID, update)
	if err != nil {
		return nil, err
	}

	s.log.Info("issue updated", "id", updated.ID, "identifier", updated.Identifier)
	return newIssueResult(updated), nil
}

// Get fetches one issue by its canonical id.
func (s *Service) Get(ctx context.Context, issueID string) (*IssueResult, error) {
	issue, err := s.catalog.Issue(ctx, issueID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("issue not found: %s", issueID)
		}
		return nil, err
	}
	return newIssueResult(issue), nil
}

// SearchPayload is the caller input for Search. Entity fields accept names
// or IDs; Query is free text matched against title and description.
type SearchPayload struct {
	TeamID     string `json:"teamId,omitempty"`
	AssigneeID string `json:"assigneeId,omitempty"`
	ProjectID  string `json:"projectId,omitempty"`
	StateID    string `json:"stateId,omitempty"`
	Query      string `json:"query,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// AppliedFilters echoes the resolved-entity summaries a search actually
// filtered on, so callers can see how each reference was interpreted.
type AppliedFilters struct {
	Team     *resolver.Entity `json:"team,omitempty"`
	Assignee *resolver.Entity `json:"assignee,omitempty"`
	Project  *resolver.Entity `json:"project,omitempty"`
	State    *resolver.Entity `json:"state,omitempty"`
	Query    string           `json:"query,omitempty"`
}

// SearchResult is the response payload for Search.
type SearchResult struct {
	Issues         []linear.Issue `json:"issues"`
	Count          int            `json:"count"`
	AppliedFilters AppliedFilters `json:"appliedFilters"`
}

// Search resolves each provided filter field to an identifier and queries
// the remote collection with an {id: {eq: ...}} comparator per field.
func (s *Service) Search(ctx context.Context, p SearchPayload) (*SearchResult, error) {
	team := &lookup{kind: resolver.KindTeam, ref: p.TeamID}
	assignee := &lookup{kind: resolver.KindUser, ref: p.AssigneeID}
	project := &lookup{kind: resolver.KindProject, ref: p.ProjectID}
	state := &lookup{kind: resolver.KindState, ref: p.StateID}

	if nfe := s.resolveAll(ctx, []*lookup{team, assignee, project, state}); nfe != nil {
		return nil, nfe
	}

	filter := linear.IssueFilter{Query: p.Query}
	applied := AppliedFilters{Query: p.Query}
	if team.entity != nil {
		filter.TeamID = team.entity.ID
		applied.Team = team.entity
	}
	if assignee.entity != nil {
		filter.AssigneeID = assignee.entity.ID
		applied.Assignee = assignee.entity
	}
	if project.entity != nil {
		filter.ProjectID = project.entity.ID
		applied.Project = project.entity
	}
	if state.entity != nil {
		filter.StateID = state.entity.ID
		applied.State = state.entity
	}

	issues, err := s.catalog.Issues(ctx, filter, p.Limit)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []linear.Issue{}
	}

	return &SearchResult{
		Issues:         issues,
		Count:          len(issues),
		AppliedFilters: applied,
	}, nil
}

// List returns a page of issues, optionally filtered by a team reference.
// The remote API pages by cursor, so the offset is applied client-side over
// an offset+limit fetch.
func (s *Service) List(ctx context.Context, limit, offset int, teamRef string) ([]linear.Issue, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var filter linear.IssueFilter
	if teamRef != "" {
		team, ok := s.resolver.Resolve(ctx, resolver.KindTeam, teamRef, "")
		if !ok {
			return nil, &NotFoundError{
				Kind:    resolver.KindTeam,
				Value:   teamRef,
				Message: s.resolver.NotFoundMessage(ctx, resolver.KindTeam, teamRef),
			}
		}
		filter.TeamID = team.ID
	}

	issues, err := s.catalog.Issues(ctx, filter, offset+limit)
	if err != nil {
		return nil, err
	}
	if offset >= len(issues) {
		return []linear.Issue{}, nil
	}
	return issues[offset:], nil
}
