package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode selects which part of an oversized output is kept.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultToolOutputLimit is the character budget for one tool result.
const DefaultToolOutputLimit = 30000

// TruncateOutput shortens output to maxChars. The model gets a notice in
// place of what was removed; the sink still receives the full text.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars
	if mode == TruncateTail {
		return fmt.Sprintf("[output truncated: the first %d characters were removed]\n\n", removed) +
			output[len(output)-maxChars:]
	}
	half := maxChars / 2
	return output[:half] +
		fmt.Sprintf("\n\n[output truncated: %d characters were removed from the middle. "+
			"Re-run the tool with narrower arguments to see them.]\n\n", removed) +
		output[len(output)-(maxChars-half):]
}

// TruncateLines keeps the first and last lines of output, maxLines in total.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}
	head := maxLines / 2
	tail := maxLines - head
	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", len(lines)-maxLines) +
		strings.Join(lines[len(lines)-tail:], "\n")
}

// truncateToolResult applies the character limit, then the line limit.
func truncateToolResult(output string, cfg LoopConfig) string {
	return TruncateLines(TruncateOutput(output, cfg.ToolOutputLimit, TruncateHeadTail), cfg.ToolLineLimit)
}
