package agentloop

import (
	"context"
	"encoding/json"

	"github.com/martinemde/toolloop/backend"
)

// TurnRequest is the input of one turn.
type TurnRequest struct {
	ID           string            `json:"id"`
	Prompt       string            `json:"prompt"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	History      []backend.Message `json:"history,omitempty"`
	Model        string            `json:"model,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	WorkingDir   string            `json:"working_dir,omitempty"`

	// SubAgent marks a turn run on behalf of another agent. Its usage is
	// left to the parent to aggregate.
	SubAgent bool `json:"sub_agent,omitempty"`
}

// ToolCallResult is what the model sees for one executed (or rejected) call.
type ToolCallResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// PromptContext is the state a PromptBuilder renders.
type PromptContext struct {
	Request TurnRequest
	Rounds  []*ToolCallRound
	Results map[string]ToolCallResult
}

// Prompt is a rendered model request.
type Prompt struct {
	Messages       []backend.Message
	Tools          []backend.ToolDefinition
	StatefulMarker string
}

// FetchResult is one model exchange.
type FetchResult struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *backend.Usage
	Thinking  []ThinkingDelta

	// Continue asks for another round even without tool calls, e.g. when
	// the response was cut off by the output limit.
	Continue       bool
	StatefulMarker string
}

// PromptBuilder renders the round history into a model request.
type PromptBuilder interface {
	BuildPrompt(ctx context.Context, pc PromptContext) (Prompt, error)
}

// Fetcher performs one request/response exchange with a model. Retries and
// streaming are its own concern.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint Endpoint, prompt Prompt) (FetchResult, error)
}

// Endpoint is a resolved model backend.
type Endpoint interface {
	Model() string
	Provider() string
}

// EndpointProvider selects the backend for a turn.
type EndpointProvider interface {
	Resolve(ctx context.Context, req TurnRequest) (Endpoint, error)
}

// ToolExecutor runs one tool.
type ToolExecutor interface {
	Invoke(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// ToolValidator checks raw arguments against a tool's schema.
type ToolValidator interface {
	Validate(name, rawInput string) (json.RawMessage, error)
}

// HookDispatcher runs the hooks registered for a lifecycle event and
// returns their results in invocation order.
type HookDispatcher interface {
	Dispatch(ctx context.Context, hookType HookType, input HookInput) ([]HookResult, error)
}

// OutputSink receives what the user sees during a turn.
type OutputSink interface {
	Text(text string)
	Warning(message string)
	ToolStart(call ToolCall)
	ToolEnd(call ToolCall, output string, err error)
}

// UsageSink receives token counts, at most once per completed round.
type UsageSink interface {
	Report(promptTokens, completionTokens int)
}

type discardSink struct{}

func (discardSink) Text(string)                     {}
func (discardSink) Warning(string)                  {}
func (discardSink) ToolStart(ToolCall)              {}
func (discardSink) ToolEnd(ToolCall, string, error) {}
