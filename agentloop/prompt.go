package agentloop

import (
	"context"
	"encoding/json"

	"github.com/martinemde/toolloop/backend"
)

// ToolLister supplies tool definitions to a prompt.
type ToolLister interface {
	Definitions() []backend.ToolDefinition
}

// HistoryPromptBuilder renders the system prompt, prior conversation, user
// request and this turn's rounds as backend messages.
type HistoryPromptBuilder struct {
	Tools ToolLister
}

// BuildPrompt implements PromptBuilder.
func (b HistoryPromptBuilder) BuildPrompt(_ context.Context, pc PromptContext) (Prompt, error) {
	var msgs []backend.Message
	if pc.Request.SystemPrompt != "" {
		msgs = append(msgs, backend.SystemMessage(pc.Request.SystemPrompt))
	}
	msgs = append(msgs, pc.Request.History...)
	msgs = append(msgs, backend.UserMessage(pc.Request.Prompt))

	var marker string
	for _, round := range pc.Rounds {
		assistant := backend.AssistantMessage(round.Response())
		for _, call := range round.ToolCalls() {
			args := json.RawMessage(call.Arguments)
			if !json.Valid(args) {
				// Keep the request well-formed; the hint in the result
				// tells the model what was wrong.
				args = json.RawMessage("{}")
			}
			assistant.Content = append(assistant.Content, backend.ToolCallPart(call.ID, call.Name, args))
		}
		msgs = append(msgs, assistant)

		for _, call := range round.ToolCalls() {
			res, ok := pc.Results[call.ID]
			if !ok {
				res = ToolCallResult{CallID: call.ID, Content: "Tool was not run.", IsError: true}
			}
			msgs = append(msgs, backend.ToolResultMessage(call.ID, res.Content, res.IsError))
		}
		if round.StatefulMarker() != "" {
			marker = round.StatefulMarker()
		}
	}

	prompt := Prompt{Messages: msgs, StatefulMarker: marker}
	if b.Tools != nil {
		prompt.Tools = b.Tools.Definitions()
	}
	return prompt, nil
}
