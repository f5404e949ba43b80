// Package agents routes free-text prompts to LLM agents and records their
// execution as a trace. The coordinator either answers directly or hands off
// to the issue agent, which works the issue tools in a tool-use loop.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"trackgate/internal/issues"
	"trackgate/internal/trace"
)

const coordinatorSystem = `You are the coordinator for an issue-tracking assistant.
Decide how to handle the user's request:
- If it involves issues, teams, assignees, projects, or workflow states in any
  way (creating, updating, finding, listing), call the route_to_issue_agent tool.
- Otherwise answer the question directly and briefly.`

const issueAgentSystem = `You are an issue-management agent for a Linear workspace.
Use the available tools to carry out the user's request. Entity fields accept
human-readable names, team keys, or emails; they are resolved for you. When a
tool reports that an entity was not found, relay the listed alternatives to
the user instead of retrying blindly. Finish with a short summary of what was
done, including issue identifiers.`

// maxTurns bounds the issue agent's tool-use loop.
const maxTurns = 8

// RunResult is the outcome of one orchestrated prompt.
type RunResult struct {
	RunID    string `json:"runId"`
	Agent    string `json:"agent"`
	Response string `json:"response"`
}

// Orchestrator wires the Anthropic API to the issue operations service and
// the trace store. It does no scheduling of its own: call the API, loop on
// tool use, await the result.
type Orchestrator struct {
	api    *anthropic.Client
	model  anthropic.Model
	issues *issues.Service
	traces trace.Store
	log    *slog.Logger
}

// NewOrchestrator creates an orchestrator with the given API key and model.
func NewOrchestrator(apiKey, model string, svc *issues.Service, traces trace.Store) *Orchestrator {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Orchestrator{
		api:    &client,
		model:  anthropic.Model(model),
		issues: svc,
		traces: traces,
		log:    slog.Default(),
	}
}

// record appends a trace event; trace failures never fail the run.
func (o *Orchestrator) record(ctx context.Context, runID, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		o.log.Warn("marshal trace event", "kind", kind, "error", err)
		return
	}
	if err := o.traces.AppendEvent(ctx, runID, kind, string(data)); err != nil {
		o.log.Warn("append trace event", "kind", kind, "error", err)
	}
}

// Run routes one prompt. The run and all intermediate steps are persisted to
// the trace store; the run is finished as completed or failed before return.
func (o *Orchestrator) Run(ctx context.Context, prompt string) (*RunResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	run, err := o.traces.CreateRun(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	o.record(ctx, run.ID, trace.EventPrompt, map[string]string{"prompt": prompt})

	agent, response, err := o.coordinate(ctx, run.ID, prompt)
	if err != nil {
		o.record(ctx, run.ID, trace.EventError, map[string]string{"error": err.Error()})
		if ferr := o.traces.FinishRun(ctx, run.ID, trace.RunStatusFailed, "", err.Error()); ferr != nil {
			o.log.Warn("finish run", "run", run.ID, "error", ferr)
		}
		return nil, err
	}

	if err := o.traces.FinishRun(ctx, run.ID, trace.RunStatusCompleted, response, ""); err != nil {
		o.log.Warn("finish run", "run", run.ID, "error", err)
	}
	return &RunResult{RunID: run.ID, Agent: agent, Response: response}, nil
}

// coordinate asks the coordinator to either answer or hand the prompt to the
// issue agent.
func (o *Orchestrator) coordinate(ctx context.Context, runID, prompt string) (agent, response string, err error) {
	handoff := anthropic.ToolParam{
		Name:        "route_to_issue_agent",
		Description: anthropic.String("Hand the request to the issue-management agent."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"reason": map[string]any{"type": "string", "description": "Why this request needs the issue agent"},
			},
		},
	}

	msg, err := o.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: coordinatorSystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &handoff}},
	})
	if err != nil {
		return "", "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			if text == "" {
				text = variant.Text
			}
		case anthropic.ToolUseBlock:
			if variant.Name == "route_to_issue_agent" {
				reason, _ := json.Marshal(variant.Input)
				o.record(ctx, runID, trace.EventHandoff, map[string]string{
					"from": "coordinator", "to": "issues", "input": string(reason),
				})
				response, err := o.runIssueAgent(ctx, runID, prompt)
				return "issues", response, err
			}
		}
	}

	if text == "" {
		return "", "", fmt.Errorf("no text content in API response")
	}
	o.record(ctx, runID, trace.EventMessage, map[string]string{"agent": "coordinator", "text": text})
	return "coordinator", text, nil
}

// runIssueAgent drives the tool-use loop until the model stops calling tools
// or the turn budget runs out.
func (o *Orchestrator) runIssueAgent(ctx context.Context, runID, prompt string) (string, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}
	tools := issueTools()

	var finalText string
	for turn := 0; turn < maxTurns; turn++ {
		msg, err := o.api.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     o.model,
			MaxTokens: 4096,
			System: []anthropic.TextBlockParam{
				{Text: issueAgentSystem},
			},
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("anthropic API call: %w", err)
		}

		messages = append(messages, msg.ToParam())

		var toolResults []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				finalText = variant.Text
				o.record(ctx, runID, trace.EventMessage, map[string]string{"agent": "issues", "text": variant.Text})
			case anthropic.ToolUseBlock:
				input, _ := json.Marshal(variant.Input)
				o.record(ctx, runID, trace.EventToolCall, map[string]string{
					"tool": variant.Name, "input": string(input),
				})

				result, isError := executeTool(ctx, o.issues, variant.Name, input)
				o.record(ctx, runID, trace.EventToolResult, map[string]any{
					"tool": variant.Name, "result": result, "isError": isError,
				})
				toolResults = append(toolResults, anthropic.NewToolResultBlock(variant.ID, result, isError))
			}
		}

		if len(toolResults) == 0 {
			break
		}
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}

	if finalText == "" {
		return "", fmt.Errorf("no text content in API response")
	}
	return finalText, nil
}
