package linear

// Team is a Linear team.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// User is a Linear workspace member.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Project is a Linear project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WorkflowState is a team-scoped issue state (e.g. Todo, In Progress, Done).
type WorkflowState struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

// Issue is the canonical issue record. Embedded entities are denormalized
// snapshots taken at fetch time.
type Issue struct {
	ID          string         `json:"id"`
	Identifier  string         `json:"identifier"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Priority    int            `json:"priority"`
	URL         string         `json:"url,omitempty"`
	Team        *Team          `json:"team,omitempty"`
	Assignee    *User          `json:"assignee,omitempty"`
	Project     *Project       `json:"project,omitempty"`
	State       *WorkflowState `json:"state,omitempty"`
	CreatedAt   string         `json:"createdAt,omitempty"`
	UpdatedAt   string         `json:"updatedAt,omitempty"`
}

// IssueInput carries resolved identifiers only. Name-to-ID resolution happens
// upstream; this package never resolves references itself.
type IssueInput struct {
	Title       string
	Description string
	TeamID      string
	AssigneeID  string
	ProjectID   string
	StateID     string
	Priority    *int
	LabelIDs    []string
}

// IssueUpdate carries the fields to change. Nil/empty fields are left alone.
type IssueUpdate struct {
	Title       string
	Description string
	AssigneeID  string
	ProjectID   string
	StateID     string
	Priority    *int
	LabelIDs    []string
}

// IssueFilter specifies resolved-ID filters for querying issues.
// Every non-empty field becomes an {id: {eq: ...}} comparator in the
// remote filter expression; Query is matched against title/description.
type IssueFilter struct {
	TeamID     string
	AssigneeID string
	ProjectID  string
	StateID    string
	Query      string
}
