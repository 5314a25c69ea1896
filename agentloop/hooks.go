package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HookType names a lifecycle event.
type HookType string

const (
	HookSessionStart     HookType = "SessionStart"
	HookUserPromptSubmit HookType = "UserPromptSubmit"
	HookPreToolUse       HookType = "PreToolUse"
	HookPostToolUse      HookType = "PostToolUse"
	HookSubagentStart    HookType = "SubagentStart"
	HookSubagentStop     HookType = "SubagentStop"
	HookStop             HookType = "Stop"
)

// HookResultKind classifies a hook outcome.
type HookResultKind string

const (
	HookSuccess HookResultKind = "success"
	HookWarning HookResultKind = "warning"
	HookError   HookResultKind = "error"
)

// HookInput is the payload handed to hooks.
type HookInput struct {
	HookType   HookType        `json:"hook_event_name"`
	SessionID  string          `json:"session_id,omitempty"`
	Cwd        string          `json:"cwd,omitempty"`
	Prompt     string          `json:"prompt,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_use_id,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	ToolOutput string          `json:"tool_response,omitempty"`
	FinalText  string          `json:"last_assistant_message,omitempty"`
}

// HookResult is the outcome of one hook invocation. A non-empty StopReason
// requests an abort regardless of Kind.
type HookResult struct {
	StopReason     string         `json:"stop_reason,omitempty"`
	Kind           HookResultKind `json:"kind"`
	WarningMessage string         `json:"warning_message,omitempty"`
	Output         interface{}    `json:"output,omitempty"`
}

// HookAbortError ends the turn. It carries the hook type and the reason to
// show the user.
type HookAbortError struct {
	HookType HookType
	Reason   string
}

func (e *HookAbortError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s hook aborted the turn", e.HookType)
	}
	return fmt.Sprintf("%s hook aborted the turn: %s", e.HookType, e.Reason)
}

// ProcessHookResults applies a batch of results in order. A stop reason or
// an error result returns a *HookAbortError at once and the rest of the batch
// is skipped. Success outputs go to onSuccess as they are seen. Warnings are
// emitted to the sink as one message once the batch completes.
func ProcessHookResults(hookType HookType, results []HookResult, sink OutputSink, onSuccess func(output interface{})) error {
	var warnings []string
	for _, r := range results {
		switch {
		case r.StopReason != "":
			return &HookAbortError{HookType: hookType, Reason: r.StopReason}
		case r.Kind == HookWarning:
			warnings = append(warnings, r.WarningMessage)
		case r.Kind == HookSuccess:
			if onSuccess != nil {
				onSuccess(r.Output)
			}
		case r.Kind == HookError:
			return &HookAbortError{HookType: hookType, Reason: errorOutput(r.Output)}
		}
	}

	if len(warnings) > 0 && sink != nil {
		sink.Warning(formatWarnings(warnings))
	}
	return nil
}

func formatWarnings(warnings []string) string {
	if len(warnings) == 1 {
		return warnings[0]
	}
	lines := make([]string, len(warnings))
	for i, w := range warnings {
		lines[i] = fmt.Sprintf("%d. %s", i+1, w)
	}
	return strings.Join(lines, "\n")
}

func errorOutput(output interface{}) string {
	switch v := output.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return ""
	}
}
