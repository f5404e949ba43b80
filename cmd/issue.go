package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"trackgate/internal/issues"
	"trackgate/internal/linear"
	"trackgate/internal/output"
)

var (
	issueTitle    string
	issueDesc     string
	issueTeam     string
	issueAssignee string
	issueProject  string
	issueState    string
	issuePriority int
	issueQuery    string
	issueLimit    int
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage Linear issues",
	Long:  "Create, update, and browse Linear issues. Entity flags accept names, team keys, or emails.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun("")
	},
}

var issueCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueCreateRun(cmd)
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list [team]",
	Aliases: []string{"ls"},
	Short:   "List recent issues",
	Long:    "List recent issues, optionally filtered by a team name, key, or ID.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var teamRef string
		if len(args) > 0 {
			teamRef = args[0]
		}
		return issueListRun(teamRef)
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd, args[0])
	},
	Args: cobra.ExactArgs(1),
}

var issueSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search issues by entity filters and free text",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueSearchRun()
	},
}

func init() {
	issueCreateCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueCreateCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description")
	issueCreateCmd.Flags().StringVar(&issueTeam, "team", "", "Team name, key, or ID (required)")
	issueCreateCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Assignee name, email, or ID")
	issueCreateCmd.Flags().StringVar(&issueProject, "project", "", "Project name or ID")
	issueCreateCmd.Flags().StringVar(&issueState, "state", "", "Workflow state name or ID")
	issueCreateCmd.Flags().IntVar(&issuePriority, "priority", -1, "Priority: 0 (none) to 4 (low)")
	_ = issueCreateCmd.MarkFlagRequired("title")
	_ = issueCreateCmd.MarkFlagRequired("team")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueDesc, "desc", "", "New description")
	issueUpdateCmd.Flags().StringVar(&issueAssignee, "assignee", "", "New assignee")
	issueUpdateCmd.Flags().StringVar(&issueProject, "project", "", "New project")
	issueUpdateCmd.Flags().StringVar(&issueState, "state", "", "New workflow state")
	issueUpdateCmd.Flags().IntVar(&issuePriority, "priority", -1, "New priority")

	issueSearchCmd.Flags().StringVar(&issueTeam, "team", "", "Filter by team")
	issueSearchCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Filter by assignee")
	issueSearchCmd.Flags().StringVar(&issueProject, "project", "", "Filter by project")
	issueSearchCmd.Flags().StringVar(&issueState, "state", "", "Filter by workflow state")
	issueSearchCmd.Flags().StringVar(&issueQuery, "query", "", "Free text matched against title/description")
	issueSearchCmd.Flags().IntVar(&issueLimit, "limit", 0, "Maximum number of results")

	issueListCmd.Flags().IntVar(&issueLimit, "limit", 0, "Maximum number of results")

	issueCmd.AddCommand(issueCreateCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueSearchCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueCreateRun(cmd *cobra.Command) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	payload := issues.CreatePayload{
		Title:       issueTitle,
		Description: issueDesc,
		TeamID:      issueTeam,
		AssigneeID:  issueAssignee,
		ProjectID:   issueProject,
		StateID:     issueState,
	}
	if issuePriority >= 0 {
		p := issuePriority
		payload.Priority = &p
	}

	result, err := svc.Create(context.Background(), payload)
	if err != nil {
		return err
	}

	ui.Success("Created %s: %s", output.Cyan(result.Issue.Identifier), result.Issue.Title)
	printIssueResult(result)
	return nil
}

func issueUpdateRun(cmd *cobra.Command, issueID string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	payload := issues.UpdatePayload{
		Title:       issueTitle,
		Description: issueDesc,
		AssigneeID:  issueAssignee,
		ProjectID:   issueProject,
		StateID:     issueState,
	}
	if issuePriority >= 0 {
		p := issuePriority
		payload.Priority = &p
	}

	result, err := svc.Update(context.Background(), issueID, payload)
	if err != nil {
		return err
	}

	ui.Success("Updated %s", output.Cyan(result.Issue.Identifier))
	printIssueResult(result)
	return nil
}

func issueShowRun(issueID string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	result, err := svc.Get(context.Background(), issueID)
	if err != nil {
		return err
	}

	printIssueResult(result)
	if result.Issue.Description != "" {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, result.Issue.Description)
	}
	return nil
}

func issueListRun(teamRef string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	list, err := svc.List(context.Background(), issueLimit, 0, teamRef)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.Info("No issues found")
		return nil
	}

	printIssueTable(list)
	return nil
}

func issueSearchRun() error {
	svc, err := newService()
	if err != nil {
		return err
	}

	result, err := svc.Search(context.Background(), issues.SearchPayload{
		TeamID:     issueTeam,
		AssigneeID: issueAssignee,
		ProjectID:  issueProject,
		StateID:    issueState,
		Query:      issueQuery,
		Limit:      issueLimit,
	})
	if err != nil {
		return err
	}

	if af := result.AppliedFilters; af.Team != nil || af.Assignee != nil || af.Project != nil || af.State != nil {
		var parts []string
		if af.Team != nil {
			parts = append(parts, "team="+af.Team.Name)
		}
		if af.Assignee != nil {
			parts = append(parts, "assignee="+af.Assignee.DisplayName)
		}
		if af.Project != nil {
			parts = append(parts, "project="+af.Project.Name)
		}
		if af.State != nil {
			parts = append(parts, "state="+af.State.Name)
		}
		ui.VerboseLog("Resolved filters: %v", parts)
	}

	if result.Count == 0 {
		ui.Info("No issues matched")
		return nil
	}
	printIssueTable(result.Issues)
	return nil
}

func printIssueTable(list []linear.Issue) {
	table := ui.Table([]string{"ID", "Title", "State", "Assignee", "Priority"})
	for _, issue := range list {
		state, assignee := "", ""
		if issue.State != nil {
			state = output.StateColor(issue.State.Name, issue.State.Type)
		}
		if issue.Assignee != nil {
			assignee = issue.Assignee.DisplayName
		}
		table.Append([]string{
			output.Cyan(issue.Identifier),
			issue.Title,
			state,
			assignee,
			output.PriorityLabel(issue.Priority),
		})
	}
	_ = table.Render()
}

func printIssueResult(r *issues.IssueResult) {
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "ID", r.Issue.Identifier)
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Title", r.Issue.Title)
	if r.Team != nil {
		fmt.Fprintf(ui.Out, "  %-10s %s (%s)\n", "Team", r.Team.Name, r.Team.Key)
	}
	if r.Assignee != nil {
		fmt.Fprintf(ui.Out, "  %-10s %s\n", "Assignee", r.Assignee.DisplayName)
	}
	if r.Project != nil {
		fmt.Fprintf(ui.Out, "  %-10s %s\n", "Project", r.Project.Name)
	}
	if r.State != nil {
		fmt.Fprintf(ui.Out, "  %-10s %s\n", "State", output.StateColor(r.State.Name, r.State.Type))
	}
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Priority", output.PriorityLabel(r.Issue.Priority))
	if r.Issue.URL != "" {
		fmt.Fprintf(ui.Out, "  %-10s %s\n", "URL", r.Issue.URL)
	}
}
