package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trackgate/internal/output"
)

var (
	runsLimit  int
	runsOffset int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse recorded agent runs",
	Long:  "List and inspect agent runs persisted by the orchestrator.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsListRun()
	},
}

var runsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsListRun()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its full event trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsShowRun(args[0])
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs")
	runsListCmd.Flags().IntVar(&runsOffset, "offset", 0, "Number of runs to skip")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runsListRun() error {
	store, err := getTraceStore()
	if err != nil {
		return err
	}

	runs, err := store.ListRuns(context.Background(), runsLimit, runsOffset)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded")
		return nil
	}

	table := ui.Table([]string{"ID", "Status", "Started", "Prompt"})
	for _, run := range runs {
		prompt := run.Prompt
		if len(prompt) > 60 {
			prompt = prompt[:57] + "..."
		}
		table.Append([]string{
			output.Cyan(run.ID),
			output.RunStatusColor(string(run.Status)),
			run.StartedAt.Format(time.RFC3339),
			prompt,
		})
	}
	return table.Render()
}

func runsShowRun(runID string) error {
	store, err := getTraceStore()
	if err != nil {
		return err
	}

	run, err := store.GetRun(context.Background(), runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Run", run.ID)
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Status", output.RunStatusColor(string(run.Status)))
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Started", run.StartedAt.Format(time.RFC3339))
	if run.EndedAt != nil {
		fmt.Fprintf(ui.Out, "  %-10s %s\n", "Ended", run.EndedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Prompt", run.Prompt)
	if run.Response != "" {
		fmt.Fprintf(ui.Out, "  %-10s %s\n", "Response", run.Response)
	}
	if run.Error != "" {
		fmt.Fprintf(ui.Out, "  %-10s %s\n", "Error", output.Red(run.Error))
	}

	if len(run.Events) == 0 {
		return nil
	}
	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Seq", "Kind", "Payload"})
	for _, ev := range run.Events {
		payload := ev.Payload
		if len(payload) > 100 {
			payload = payload[:97] + "..."
		}
		table.Append([]string{
			fmt.Sprintf("%d", ev.Seq),
			ev.Kind,
			payload,
		})
	}
	return table.Render()
}
