package agentloop

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// ToolCall is one action requested by the model. Arguments is the raw
// serialized input, usually JSON text.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// key identifies a call for repetition tracking. Arguments are compared as
// exact strings.
func (c ToolCall) key() string {
	return c.Name + ":" + c.Arguments
}

// RoundData is the plain form of a ToolCallRound.
type RoundData struct {
	ID             string            `json:"id,omitempty"`
	Response       string            `json:"response"`
	ToolCalls      []ToolCall        `json:"tool_calls,omitempty"`
	ToolInputRetry int               `json:"tool_input_retry"`
	StatefulMarker string            `json:"stateful_marker,omitempty"`
	Thinking       *ThinkingDataItem `json:"thinking,omitempty"`
	Summary        string            `json:"summary,omitempty"`
}

// ToolCallRound records one model response and the tool calls it requested.
// Only the summary can change after construction.
type ToolCallRound struct {
	id             string
	response       string
	toolCalls      []ToolCall
	toolInputRetry int
	statefulMarker string
	thinking       *ThinkingDataItem
	summary        string
}

// NewToolCallRound builds a round from its plain data, generating an ID when
// none is given.
func NewToolCallRound(data RoundData) *ToolCallRound {
	id := data.ID
	if id == "" {
		id = uuid.New().String()
	}
	calls := make([]ToolCall, len(data.ToolCalls))
	copy(calls, data.ToolCalls)
	return &ToolCallRound{
		id:             id,
		response:       data.Response,
		toolCalls:      calls,
		toolInputRetry: data.ToolInputRetry,
		statefulMarker: data.StatefulMarker,
		thinking:       data.Thinking,
		summary:        data.Summary,
	}
}

// ID returns the round's unique identifier.
func (r *ToolCallRound) ID() string { return r.id }

// Response returns the model's text for the round, possibly empty.
func (r *ToolCallRound) Response() string { return r.response }

// ToolInputRetry returns how many consecutive corrective rounds preceded
// this one.
func (r *ToolCallRound) ToolInputRetry() int { return r.toolInputRetry }

// StatefulMarker returns the backend's conversation-state token, if any.
func (r *ToolCallRound) StatefulMarker() string { return r.statefulMarker }

// Summary returns the label set with SetSummary.
func (r *ToolCallRound) Summary() string { return r.summary }

// Thinking returns the reasoning accumulator, or nil.
func (r *ToolCallRound) Thinking() *ThinkingDataItem { return r.thinking }

// ToolCalls returns a copy of the requested calls in request order.
func (r *ToolCallRound) ToolCalls() []ToolCall {
	out := make([]ToolCall, len(r.toolCalls))
	copy(out, r.toolCalls)
	return out
}

// SetSummary attaches a human-readable label to the round.
func (r *ToolCallRound) SetSummary(summary string) {
	r.summary = summary
}

// Data returns the plain form of the round.
func (r *ToolCallRound) Data() RoundData {
	return RoundData{
		ID:             r.id,
		Response:       r.response,
		ToolCalls:      r.ToolCalls(),
		ToolInputRetry: r.toolInputRetry,
		StatefulMarker: r.statefulMarker,
		Thinking:       r.thinking,
		Summary:        r.summary,
	}
}

// ThinkingDelta is one incremental piece of reasoning. A non-nil Segments
// marks a sequence delta; otherwise Text is a single chunk.
type ThinkingDelta struct {
	ID        string
	Text      string
	Segments  []string
	Metadata  map[string]interface{}
	Encrypted string
}

// ThinkingDataItem accumulates reasoning deltas for a round.
type ThinkingDataItem struct {
	ID        string                 `json:"id"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Tokens    int                    `json:"tokens,omitempty"`
	Encrypted string                 `json:"encrypted,omitempty"`

	text     []string
	sequence bool
}

// NewThinkingDataItem creates an empty accumulator.
func NewThinkingDataItem(id string) *ThinkingDataItem {
	if id == "" {
		id = uuid.New().String()
	}
	return &ThinkingDataItem{ID: id}
}

// Update merges a delta into the item.
//
// Scalar chunks concatenate until a sequence arrives. A sequence arriving
// after a non-empty scalar turns that scalar into the first element. Once the
// text is a sequence, every later chunk is appended as its own element.
// Encrypted deltas only replace the ciphertext.
func (t *ThinkingDataItem) Update(delta ThinkingDelta) {
	if delta.ID != "" {
		t.ID = delta.ID
	}
	for k, v := range delta.Metadata {
		if t.Metadata == nil {
			t.Metadata = make(map[string]interface{}, len(delta.Metadata))
		}
		t.Metadata[k] = v
	}
	if delta.Encrypted != "" {
		t.Encrypted = delta.Encrypted
		return
	}

	switch {
	case delta.Segments != nil:
		t.sequence = true
		t.text = append(t.text, delta.Segments...)
	case delta.Text == "":
	case t.sequence:
		t.text = append(t.text, delta.Text)
	case len(t.text) == 0:
		t.text = []string{delta.Text}
	default:
		t.text[0] += delta.Text
	}
}

// SetTokens records the reasoning token count once.
func (t *ThinkingDataItem) SetTokens(n int) {
	if t.Tokens == 0 {
		t.Tokens = n
	}
}

// IsSequence reports whether the text is held as a sequence of chunks.
func (t *ThinkingDataItem) IsSequence() bool { return t.sequence }

// Segments returns the text chunks in arrival order. A scalar text is a
// single element.
func (t *ThinkingDataItem) Segments() []string {
	out := make([]string, len(t.text))
	copy(out, t.text)
	return out
}

// Text returns the accumulated text joined without separators.
func (t *ThinkingDataItem) Text() string {
	return strings.Join(t.text, "")
}

type thinkingFields ThinkingDataItem

// MarshalJSON encodes the text as a string, or as an array once it has
// become a sequence.
func (t *ThinkingDataItem) MarshalJSON() ([]byte, error) {
	out := struct {
		*thinkingFields
		Text json.RawMessage `json:"text,omitempty"`
	}{thinkingFields: (*thinkingFields)(t)}

	var err error
	switch {
	case t.sequence:
		out.Text, err = json.Marshal(t.text)
	case len(t.text) > 0:
		out.Text, err = json.Marshal(t.text[0])
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the form written by MarshalJSON.
func (t *ThinkingDataItem) UnmarshalJSON(data []byte) error {
	*t = ThinkingDataItem{}
	in := struct {
		*thinkingFields
		Text json.RawMessage `json:"text,omitempty"`
	}{thinkingFields: (*thinkingFields)(t)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	raw := strings.TrimSpace(string(in.Text))
	switch {
	case raw == "" || raw == "null":
	case raw[0] == '[':
		var segments []string
		if err := json.Unmarshal(in.Text, &segments); err != nil {
			return err
		}
		t.sequence = true
		t.text = segments
	default:
		var text string
		if err := json.Unmarshal(in.Text, &text); err != nil {
			return err
		}
		if text != "" {
			t.text = []string{text}
		}
	}
	return nil
}
