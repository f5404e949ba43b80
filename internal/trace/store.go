// Package trace persists agent runs and their events for later inspection.
package trace

import (
	"context"
	"time"
)

// RunStatus represents the lifecycle state of an agent run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one agent orchestration execution: the submitted prompt, its final
// response, and the status of the run.
type Run struct {
	ID        string     `json:"id"`
	Prompt    string     `json:"prompt"`
	Status    RunStatus  `json:"status"`
	Response  string     `json:"response,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Events    []Event    `json:"events,omitempty"`
}

// Event is one recorded step of a run: a handoff, a model message, a tool
// call, or a tool result. Payload is a JSON document.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	Seq       int       `json:"seq"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event kinds recorded by the orchestrator.
const (
	EventPrompt     = "prompt"
	EventHandoff    = "handoff"
	EventMessage    = "message"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventError      = "error"
)

// Store defines the persistence interface for agent run traces.
type Store interface {
	CreateRun(ctx context.Context, prompt string) (*Run, error)
	FinishRun(ctx context.Context, id string, status RunStatus, response, errMsg string) error
	AppendEvent(ctx context.Context, runID, kind, payload string) error

	// GetRun returns the run with its events in sequence order.
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns run summaries (no events) newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
