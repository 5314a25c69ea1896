package backend

import (
	"encoding/json"
	"strings"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind tags a ContentPart.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
	PartThinking   PartKind = "thinking"
)

// ToolCallData is a tool invocation requested by the model.
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResultData carries a tool's output back to the model.
type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// ThinkingData is reasoning content returned alongside a response.
type ThinkingData struct {
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"`
	Encrypted string `json:"encrypted,omitempty"`
}

// ContentPart is one tagged piece of a message.
type ContentPart struct {
	Kind       PartKind        `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolCall   *ToolCallData   `json:"tool_call,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
	Thinking   *ThinkingData   `json:"thinking,omitempty"`
}

// TextPart creates a text part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// ToolCallPart creates a tool call part.
func ToolCallPart(id, name string, args json.RawMessage) ContentPart {
	return ContentPart{
		Kind:     PartToolCall,
		ToolCall: &ToolCallData{ID: id, Name: name, Arguments: args},
	}
}

// ThinkingPart creates a reasoning part.
func ThinkingPart(text, signature string) ContentPart {
	return ContentPart{
		Kind:     PartThinking,
		Thinking: &ThinkingData{Text: text, Signature: signature},
	}
}

// Message is a single conversation entry.
type Message struct {
	Role       Role          `json:"role"`
	Content    []ContentPart `json:"content"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// TextContent concatenates the text parts of the message.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, part := range m.Content {
		if part.Kind == PartText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool call parts of the message in order.
func (m Message) ToolCalls() []ToolCallData {
	var calls []ToolCallData
	for _, part := range m.Content {
		if part.Kind == PartToolCall && part.ToolCall != nil {
			calls = append(calls, *part.ToolCall)
		}
	}
	return calls
}

// SystemMessage creates a system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

// UserMessage creates a user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// AssistantMessage creates an assistant message. Empty text yields no text part
// so that a tool-call-only turn round-trips cleanly.
func AssistantMessage(text string) Message {
	msg := Message{Role: RoleAssistant}
	if text != "" {
		msg.Content = append(msg.Content, TextPart(text))
	}
	return msg
}

// ToolResultMessage creates a tool result message.
func ToolResultMessage(toolCallID, content string, isError bool) Message {
	return Message{
		Role: RoleTool,
		Content: []ContentPart{{
			Kind:       PartToolResult,
			ToolResult: &ToolResultData{ToolCallID: toolCallID, Content: content, IsError: isError},
		}},
		ToolCallID: toolCallID,
	}
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolChoice controls tool usage.
type ToolChoice struct {
	Mode     string `json:"mode"` // "auto", "none", "required", "named"
	ToolName string `json:"tool_name,omitempty"`
}

// FinishReason says why generation stopped.
type FinishReason struct {
	Reason string `json:"reason"` // "stop", "length", "tool_calls", "content_filter", "error"
	Raw    string `json:"raw,omitempty"`
}

// Usage tracks token consumption for one exchange.
type Usage struct {
	InputTokens     int  `json:"input_tokens"`
	OutputTokens    int  `json:"output_tokens"`
	TotalTokens     int  `json:"total_tokens"`
	ReasoningTokens *int `json:"reasoning_tokens,omitempty"`
}

// Add sums two usages.
func (u Usage) Add(other Usage) Usage {
	sum := Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
	if u.ReasoningTokens != nil || other.ReasoningTokens != nil {
		n := 0
		if u.ReasoningTokens != nil {
			n += *u.ReasoningTokens
		}
		if other.ReasoningTokens != nil {
			n += *other.ReasoningTokens
		}
		sum.ReasoningTokens = &n
	}
	return sum
}

// Request is the input of Complete.
type Request struct {
	Model           string                 `json:"model"`
	Provider        string                 `json:"provider,omitempty"`
	Messages        []Message              `json:"messages"`
	ToolDefs        []ToolDefinition       `json:"tools,omitempty"`
	ToolChoice      *ToolChoice            `json:"tool_choice,omitempty"`
	Temperature     *float64               `json:"temperature,omitempty"`
	MaxTokens       *int                   `json:"max_tokens,omitempty"`
	ReasoningEffort string                 `json:"reasoning_effort,omitempty"`
	PreviousID      string                 `json:"previous_response_id,omitempty"`
	ProviderOptions map[string]interface{} `json:"provider_options,omitempty"`
}

// Response is the output of Complete.
type Response struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Provider     string       `json:"provider"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`

	// StateID is set only by backends that keep conversation state on the
	// server. It is sent back as Request.PreviousID on the next call.
	StateID string `json:"state_id,omitempty"`
}

// Text returns the response's text content.
func (r Response) Text() string {
	return r.Message.TextContent()
}

// ToolCalls returns the tool calls requested by the response.
func (r Response) ToolCalls() []ToolCallData {
	return r.Message.ToolCalls()
}

// Thinking returns the reasoning parts of the response in order.
func (r Response) Thinking() []ThinkingData {
	var out []ThinkingData
	for _, part := range r.Message.Content {
		if part.Kind == PartThinking && part.Thinking != nil {
			out = append(out, *part.Thinking)
		}
	}
	return out
}
