package agentloop

import (
	"fmt"

	"github.com/martinemde/toolloop/backend"
)

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeAborted            Outcome = "aborted"
	OutcomeCancelled          Outcome = "cancelled"
	OutcomeBudgetExceeded     Outcome = "budget_exceeded"
	OutcomeRepetitionDetected Outcome = "repetition_detected"
)

// RepetitionKind says which detector fired.
type RepetitionKind string

const (
	RepetitionTool RepetitionKind = "tool"
	RepetitionText RepetitionKind = "text"
)

// Repetition carries the detector output for a repetition_detected turn.
// Exactly one of ToolLoop and TextLoop is set, matching Kind.
type Repetition struct {
	Kind     RepetitionKind         `json:"kind"`
	ToolLoop *ToolCallLoopDetection `json:"tool_loop,omitempty"`
	TextLoop *TextLoopDetection     `json:"text_loop,omitempty"`
}

// TurnResult is the terminal state of a turn.
type TurnResult struct {
	Outcome Outcome `json:"outcome"`

	// FinalText is set on success.
	FinalText string `json:"final_text,omitempty"`

	// HookType and Reason are set when a hook aborted the turn.
	HookType HookType `json:"hook_type,omitempty"`
	Reason   string   `json:"reason,omitempty"`

	Repetition *Repetition `json:"repetition,omitempty"`

	Rounds []*ToolCallRound `json:"-"`
	Usage  backend.Usage    `json:"usage"`
}

// Summary renders the result in one line for display.
func (r TurnResult) Summary() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return r.FinalText
	case OutcomeAborted:
		return fmt.Sprintf("aborted by %s hook: %s", r.HookType, r.Reason)
	case OutcomeRepetitionDetected:
		if r.Repetition != nil && r.Repetition.Kind == RepetitionText {
			return "stopped: the model kept repeating the same text"
		}
		return "stopped: the model kept repeating the same tool calls"
	case OutcomeBudgetExceeded:
		return fmt.Sprintf("stopped: round budget exhausted after %d rounds", len(r.Rounds))
	default:
		return string(r.Outcome)
	}
}

// ToolInputError is a tool call whose input failed validation. Its hint is
// fed back to the model so it can correct itself.
type ToolInputError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ToolInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input for tool %s: %s: %v", e.Tool, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid input for tool %s: %s", e.Tool, e.Reason)
}

func (e *ToolInputError) Unwrap() error { return e.Err }

// Hint is the corrective message shown to the model.
func (e *ToolInputError) Hint() string {
	return e.Error() + ". The tool was not run. Correct the arguments to match the tool's parameter schema and call it again."
}

// ToolValidationError ends a turn after the model kept producing invalid
// tool input.
type ToolValidationError struct {
	Retries int
	Last    error
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool input still invalid after %d corrective rounds: %v", e.Retries, e.Last)
}

func (e *ToolValidationError) Unwrap() error { return e.Last }
