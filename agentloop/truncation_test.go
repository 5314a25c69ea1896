package agentloop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateOutput(t *testing.T) {
	assert.Equal(t, "short", TruncateOutput("short", 10, TruncateHeadTail))
	assert.Equal(t, "anything", TruncateOutput("anything", 0, TruncateHeadTail))

	out := TruncateOutput("0123456789abcdefghij", 10, TruncateHeadTail)
	assert.True(t, strings.HasPrefix(out, "01234"))
	assert.True(t, strings.HasSuffix(out, "fghij"))
	assert.Contains(t, out, "10 characters were removed from the middle")

	out = TruncateOutput("0123456789abcdefghij", 10, TruncateTail)
	assert.True(t, strings.HasSuffix(out, "abcdefghij"))
	assert.Contains(t, out, "the first 10 characters were removed")
}

func TestTruncateLines(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = string(rune('a' + i))
	}
	text := strings.Join(lines, "\n")

	assert.Equal(t, text, TruncateLines(text, 0))
	assert.Equal(t, text, TruncateLines(text, 10))
	assert.Equal(t, "a\nb\n[... 6 lines omitted ...]\ni\nj", TruncateLines(text, 4))
}

func TestTruncateToolResultAppliesBothLimits(t *testing.T) {
	cfg := LoopConfig{ToolOutputLimit: 1000, ToolLineLimit: 2}
	out := truncateToolResult("one\ntwo\nthree", cfg)
	assert.Equal(t, "one\n[... 1 lines omitted ...]\nthree", out)
}
